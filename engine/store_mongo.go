package engine

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	models "github.com/mahfuz/blood-bridge-go/models"
)

// MongoStore persists completions in MongoDB. The requests and donors
// collections are independent, so Complete wraps both writes plus the
// history insert in a multi-document session transaction; the driver
// rolls everything back if any step fails.
type MongoStore struct {
	client *mongo.Client
	dbName string
}

func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	return &MongoStore{client: client, dbName: dbName}
}

func (s *MongoStore) requests() *mongo.Collection {
	return s.client.Database(s.dbName).Collection("blood_requests")
}

func (s *MongoStore) donors() *mongo.Collection {
	return s.client.Database(s.dbName).Collection("donors")
}

func (s *MongoStore) donations() *mongo.Collection {
	return s.client.Database(s.dbName).Collection("donations")
}

func (s *MongoStore) FindRequest(ctx context.Context, id primitive.ObjectID) (*models.BloodRequest, error) {
	var request models.BloodRequest
	err := s.requests().FindOne(ctx, bson.M{"_id": id}).Decode(&request)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (s *MongoStore) FindDonor(ctx context.Context, id primitive.ObjectID) (*models.Donor, error) {
	var donor models.Donor
	err := s.donors().FindOne(ctx, bson.M{"_id": id}).Decode(&donor)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &donor, nil
}

func (s *MongoStore) Complete(ctx context.Context, c Completion) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		// Compare-and-set on status: the filter refuses a request that
		// is already completed, so of two racing transactions only the
		// first one matches.
		res, err := s.requests().UpdateOne(sc,
			bson.M{"_id": c.RequestID, "status": bson.M{"$ne": models.StatusCompleted}},
			bson.M{"$set": bson.M{"status": models.StatusCompleted, "updated_at": c.Now}},
		)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			n, err := s.requests().CountDocuments(sc, bson.M{"_id": c.RequestID})
			if err != nil {
				return nil, err
			}
			if n == 0 {
				return nil, ErrNotFound
			}
			return nil, ErrAlreadyCompleted
		}

		res, err = s.donors().UpdateOne(sc,
			bson.M{"_id": c.DonorID},
			bson.M{
				"$inc": bson.M{"total_donations": 1},
				"$set": bson.M{
					"last_donation_date":  c.Date,
					"last_donation_place": c.Place,
					"updated_at":          c.Now,
				},
			},
		)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			return nil, ErrNotFound
		}

		record := models.DonationRecord{
			ID:         primitive.NewObjectID(),
			DonorID:    c.DonorID,
			RequestID:  c.RequestID,
			DonorName:  c.DonorName,
			BloodGroup: c.BloodGroup,
			Units:      c.Units,
			Date:       c.Date,
			Location:   c.Place,
			CreatedAt:  c.Now,
		}
		if _, err := s.donations().InsertOne(sc, record); err != nil {
			return nil, err
		}

		return nil, nil
	})
	return err
}
