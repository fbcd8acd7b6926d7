package controllers

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	config "github.com/mahfuz/blood-bridge-go/config"
	models "github.com/mahfuz/blood-bridge-go/models"
	utils "github.com/mahfuz/blood-bridge-go/utils"
)

// search responses are capped to keep the donor-selection step snappy
const maxSearchResults = 50

// ---------------- LIST (admin) ----------------
func ListDonors(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		col := cfg.MongoClient.Database(cfg.DBName).Collection("donors")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
		cursor, err := col.Find(ctx, bson.M{}, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch donors"})
			return
		}

		var donors []models.Donor
		if err := cursor.All(ctx, &donors); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not decode donors"})
			return
		}

		if len(donors) == 0 {
			c.JSON(http.StatusOK, []models.Donor{})
			return
		}

		// --- Pick the most recently updated donor for caching headers ---
		latest := donors[0]
		for _, d := range donors {
			if d.UpdatedAt.After(latest.UpdatedAt) {
				latest = d
			}
		}

		etag := utils.GenerateETag(latest.ID, latest.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)
		c.Header("Last-Modified", latest.UpdatedAt.UTC().Format(http.TimeFormat))

		c.JSON(http.StatusOK, donors)
	}
}

// ---------------- GET (admin) ----------------
func GetDonor(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid donor id"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var donor models.Donor
		err = cfg.MongoClient.Database(cfg.DBName).
			Collection("donors").
			FindOne(ctx, bson.M{"_id": oid}).
			Decode(&donor)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "donor not found"})
			return
		}

		etag := utils.GenerateETag(donor.ID, donor.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)

		c.JSON(http.StatusOK, donor)
	}
}

// ---------------- APPROVE / BAN (admin) ----------------
func UpdateDonorStatus(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid donor id"})
			return
		}

		var input struct {
			IsApproved *bool `json:"is_approved"`
			IsBanned   *bool `json:"is_banned"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		update := bson.M{"updated_at": time.Now()}
		if input.IsApproved != nil {
			update["is_approved"] = *input.IsApproved
		}
		if input.IsBanned != nil {
			update["is_banned"] = *input.IsBanned
		}
		if len(update) == 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
			return
		}

		col := cfg.MongoClient.Database(cfg.DBName).Collection("donors")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		res, err := col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": update})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update donor"})
			return
		}
		if res.MatchedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "donor not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "donor updated", "id": oid.Hex()})
	}
}

// ---------------- SEARCH (admin) ----------------
// Returns approved, non-banned donors of the given blood group, the
// most active first. Feeds the donor-selection step before completion.
func SearchDonors(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		bloodGroup := c.Query("blood_group")
		if bloodGroup == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "blood_group is required"})
			return
		}

		filter := bson.M{
			"blood_group": bloodGroup,
			"is_approved": true,
			"is_banned":   bson.M{"$ne": true},
		}

		if query := strings.TrimSpace(c.Query("query")); query != "" {
			regex := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
			filter["$or"] = []bson.M{
				{"name": regex},
				{"mobile": regex},
				{"email": regex},
			}
		}

		col := cfg.MongoClient.Database(cfg.DBName).Collection("donors")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		opts := options.Find().
			SetSort(bson.D{{Key: "total_donations", Value: -1}, {Key: "created_at", Value: -1}}).
			SetLimit(maxSearchResults)

		cursor, err := col.Find(ctx, filter, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not search donors"})
			return
		}

		var donors []models.Donor
		if err := cursor.All(ctx, &donors); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not decode donors"})
			return
		}

		results := make([]gin.H, 0, len(donors))
		for _, d := range donors {
			results = append(results, gin.H{
				"id":                 d.ID.Hex(),
				"name":               d.Name,
				"email":              d.Email,
				"mobile":             d.Mobile,
				"blood_group":        d.BloodGroup,
				"total_donations":    d.TotalDonations,
				"last_donation_date": d.LastDonationDate,
			})
		}

		c.JSON(http.StatusOK, gin.H{"data": results})
	}
}

// ---------------- PROFILE ----------------
func GetProfile(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := primitive.ObjectIDFromHex(c.GetString("user_id"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var donor models.Donor
		err = cfg.MongoClient.Database(cfg.DBName).
			Collection("donors").
			FindOne(ctx, bson.M{"_id": oid}).
			Decode(&donor)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}

		c.JSON(http.StatusOK, donor)
	}
}

func UpdateProfile(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := primitive.ObjectIDFromHex(c.GetString("user_id"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
			return
		}

		var input struct {
			Name       string `json:"name"`
			Mobile     string `json:"mobile"`
			Address    string `json:"address"`
			BloodGroup string `json:"blood_group"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		update := bson.M{"updated_at": time.Now()}
		if input.Name != "" {
			update["name"] = input.Name
		}
		if input.Mobile != "" {
			if !mobileRegex.MatchString(input.Mobile) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "mobile must be a valid number (01XXXXXXXXX)"})
				return
			}
			update["mobile"] = input.Mobile
		}
		if input.Address != "" {
			update["address"] = input.Address
		}
		if input.BloodGroup != "" {
			update["blood_group"] = input.BloodGroup
		}
		if len(update) == 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
			return
		}

		col := cfg.MongoClient.Database(cfg.DBName).Collection("donors")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		res, err := col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": update})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update profile"})
			return
		}
		if res.MatchedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "profile updated"})
	}
}

// ---------------- PROFILE IMAGE ----------------
func UploadProfileImage(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := primitive.ObjectIDFromHex(c.GetString("user_id"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid user id"})
			return
		}

		fileHeader, err := c.FormFile("image")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open file"})
			return
		}
		defer file.Close()

		url, err := utils.UploadProfileImage(file, fileHeader)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload image"})
			return
		}

		col := cfg.MongoClient.Database(cfg.DBName).Collection("donors")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var previous models.Donor
		_ = col.FindOne(ctx, bson.M{"_id": oid}).Decode(&previous)

		res, err := col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
			"profile_image": url,
			"updated_at":    time.Now(),
		}})
		if err != nil || res.MatchedCount == 0 {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save image"})
			return
		}

		// old image is orphaned otherwise
		if previous.ProfileImage != "" {
			go func(old string) {
				_ = utils.DeleteProfileImage(old)
			}(previous.ProfileImage)
		}

		c.JSON(http.StatusOK, gin.H{"message": "image uploaded", "url": url})
	}
}
