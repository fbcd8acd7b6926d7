package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Config struct {
	MongoClient *mongo.Client
	DBName      string

	JWTSecret string
	TokenTTL  time.Duration

	Port string
}

// Load reads .env (if present), connects to MongoDB and returns the
// shared application config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment")
	}

	uri := os.Getenv("MONGODB_URI")
	dbName := os.Getenv("MONGODB_DB")
	secret := os.Getenv("JWT_SECRET")

	if uri == "" {
		return nil, fmt.Errorf("MONGODB_URI is required")
	}
	if dbName == "" {
		return nil, fmt.Errorf("MONGODB_DB is required")
	}
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	if err := ensureIndexes(ctx, client.Database(dbName)); err != nil {
		return nil, err
	}

	ttl := 7 * 24 * time.Hour
	if raw := os.Getenv("TOKEN_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
		}
		ttl = parsed
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		MongoClient: client,
		DBName:      dbName,
		JWTSecret:   secret,
		TokenTTL:    ttl,
		Port:        port,
	}, nil
}

// ensureIndexes creates the indexes the handlers rely on. The unique
// email index is what actually enforces one account per address;
// registration only pre-checks for a friendlier message.
func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("donors").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("ensure donors email index: %w", err)
	}
	return nil
}
