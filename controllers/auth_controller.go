package controllers

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	config "github.com/mahfuz/blood-bridge-go/config"
	models "github.com/mahfuz/blood-bridge-go/models"
)

// Bangladeshi mobile format: 01 followed by nine digits
var mobileRegex = regexp.MustCompile(`^01[0-9]{9}$`)

// ---------------- REGISTER ----------------
func Register(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Name            string `json:"name"`
			Email           string `json:"email"`
			Password        string `json:"password"`
			ConfirmPassword string `json:"confirm_password"`
			Mobile          string `json:"mobile"`
			BloodGroup      string `json:"blood_group"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		name := strings.TrimSpace(input.Name)
		email := strings.ToLower(strings.TrimSpace(input.Email))
		mobile := strings.TrimSpace(input.Mobile)
		bloodGroup := strings.TrimSpace(input.BloodGroup)

		if name == "" || email == "" || input.Password == "" || mobile == "" || bloodGroup == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name, email, password, mobile and blood_group are required"})
			return
		}
		if input.Password != input.ConfirmPassword {
			c.JSON(http.StatusBadRequest, gin.H{"error": "passwords do not match"})
			return
		}
		if len(input.Password) < 6 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 6 characters"})
			return
		}
		if !mobileRegex.MatchString(mobile) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mobile must be a valid number (01XXXXXXXXX)"})
			return
		}

		col := cfg.MongoClient.Database(cfg.DBName).Collection("donors")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := col.FindOne(ctx, bson.M{"email": email}).Err(); err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "an account with this email already exists"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create account"})
			return
		}

		now := time.Now()
		donor := models.Donor{
			ID:           primitive.NewObjectID(),
			Name:         name,
			Email:        email,
			Mobile:       mobile,
			BloodGroup:   bloodGroup,
			PasswordHash: string(hash),
			// new donors wait for admin approval
			IsApproved: false,
			IsAdmin:    false,
			IsBanned:   false,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		if _, err := col.InsertOne(ctx, donor); err != nil {
			// the unique email index catches registrations that raced
			// past the pre-check above
			if mongo.IsDuplicateKeyError(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "an account with this email already exists"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create account"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":      donor.ID.Hex(),
			"message": "registration successful, awaiting approval",
		})
	}
}

// ---------------- LOGIN ----------------
func Login(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		email := strings.ToLower(strings.TrimSpace(input.Email))
		if email == "" || input.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
			return
		}

		col := cfg.MongoClient.Database(cfg.DBName).Collection("donors")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var donor models.Donor
		if err := col.FindOne(ctx, bson.M{"email": email}).Decode(&donor); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong email or password"})
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(donor.PasswordHash), []byte(input.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "wrong email or password"})
			return
		}

		if donor.IsBanned {
			c.JSON(http.StatusForbidden, gin.H{"error": "this account is banned"})
			return
		}
		if !donor.IsApproved && !donor.IsAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "your registration has not been approved yet"})
			return
		}

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id":  donor.ID.Hex(),
			"is_admin": donor.IsAdmin,
			"exp":      time.Now().Add(cfg.TokenTTL).Unix(),
		})
		signed, err := token.SignedString([]byte(cfg.JWTSecret))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not sign token"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": signed,
			"user": gin.H{
				"id":          donor.ID.Hex(),
				"name":        donor.Name,
				"email":       donor.Email,
				"mobile":      donor.Mobile,
				"blood_group": donor.BloodGroup,
				"is_admin":    donor.IsAdmin,
			},
		})
	}
}
