package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	config "github.com/mahfuz/blood-bridge-go/config"
	engine "github.com/mahfuz/blood-bridge-go/engine"
	models "github.com/mahfuz/blood-bridge-go/models"
)

// ---------------- COMPLETE ----------------
// POST /admin/requests/:id/donate marks the request fulfilled by the
// donor in the body. All validation and the atomic dual update live in
// the engine; this handler only maps error kinds to status codes.
func CompleteDonation(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			DonorID string `json:"donor_id"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		err := eng.CompleteDonation(ctx, c.Param("id"), input.DonorID)
		if err != nil {
			status := http.StatusInternalServerError
			switch engine.KindOf(err) {
			case engine.KindInvalidInput:
				status = http.StatusBadRequest
			case engine.KindNotFound:
				status = http.StatusNotFound
			case engine.KindAlreadyCompleted:
				status = http.StatusConflict
			case engine.KindDonorNotEligible:
				status = http.StatusUnprocessableEntity
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "donation completed"})
	}
}

// ---------------- HISTORY (admin) ----------------
func ListDonations(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		col := cfg.MongoClient.Database(cfg.DBName).Collection("donations")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		filter := bson.M{}
		if donorID := c.Query("donor_id"); donorID != "" {
			oid, err := primitive.ObjectIDFromHex(donorID)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid donor id"})
				return
			}
			filter["donor_id"] = oid
		}

		opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
		cursor, err := col.Find(ctx, filter, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch donations"})
			return
		}

		var records []models.DonationRecord
		if err := cursor.All(ctx, &records); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not decode donations"})
			return
		}

		if len(records) == 0 {
			c.JSON(http.StatusOK, []models.DonationRecord{})
			return
		}

		c.JSON(http.StatusOK, records)
	}
}
