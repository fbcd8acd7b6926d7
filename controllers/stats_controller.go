package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	config "github.com/mahfuz/blood-bridge-go/config"
	models "github.com/mahfuz/blood-bridge-go/models"
)

// ---------------- DASHBOARD (admin) ----------------
func GetStats(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		col := cfg.MongoClient.Database(cfg.DBName).Collection("donors")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		now := time.Now()
		startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		endOfMonth := startOfMonth.AddDate(0, 1, 0)

		totalDonors, err := col.CountDocuments(ctx, bson.M{"is_approved": true})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute stats"})
			return
		}

		thisMonthDonors, err := col.CountDocuments(ctx, bson.M{
			"is_approved": true,
			"created_at":  bson.M{"$gte": startOfMonth, "$lt": endOfMonth},
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute stats"})
			return
		}

		// all-time donation count: sum of the per-donor counters
		cursor, err := col.Aggregate(ctx, []bson.M{
			{"$match": bson.M{"is_approved": true}},
			{"$group": bson.M{
				"_id":   nil,
				"total": bson.M{"$sum": bson.M{"$ifNull": []interface{}{"$total_donations", 0}}},
			}},
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute stats"})
			return
		}
		var grouped []struct {
			Total int `bson:"total"`
		}
		if err := cursor.All(ctx, &grouped); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute stats"})
			return
		}
		totalDonations := 0
		if len(grouped) > 0 {
			totalDonations = grouped[0].Total
		}

		thisMonthDonations, err := col.CountDocuments(ctx, bson.M{
			"is_approved":        true,
			"last_donation_date": bson.M{"$gte": startOfMonth, "$lt": endOfMonth},
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute stats"})
			return
		}

		// top 3 most active donors
		opts := options.Find().
			SetSort(bson.D{{Key: "total_donations", Value: -1}}).
			SetLimit(3)
		leaderCursor, err := col.Find(ctx, bson.M{
			"is_approved":     true,
			"total_donations": bson.M{"$gt": 0},
		}, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute stats"})
			return
		}
		var leaders []models.Donor
		if err := leaderCursor.All(ctx, &leaders); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not compute stats"})
			return
		}

		leaderboard := make([]gin.H, 0, len(leaders))
		for _, d := range leaders {
			leaderboard = append(leaderboard, gin.H{
				"id":              d.ID.Hex(),
				"name":            d.Name,
				"blood_group":     d.BloodGroup,
				"total_donations": d.TotalDonations,
				"profile_image":   d.ProfileImage,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"stats": gin.H{
				"total_donors":         totalDonors,
				"this_month_donors":    thisMonthDonors,
				"total_donations":      totalDonations,
				"this_month_donations": thisMonthDonations,
			},
			"leaderboard": leaderboard,
		})
	}
}
