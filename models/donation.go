package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DonationRecord is the append-only history entry written when a
// request is completed. Records are never updated or deleted.
type DonationRecord struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DonorID    primitive.ObjectID `bson:"donor_id" json:"donor_id"`
	RequestID  primitive.ObjectID `bson:"request_id" json:"request_id"`
	DonorName  string             `bson:"donor_name" json:"donor_name"`
	BloodGroup string             `bson:"blood_group" json:"blood_group"`
	Units      int                `bson:"units" json:"units"`
	Date       time.Time          `bson:"date" json:"date"`
	Location   string             `bson:"location,omitempty" json:"location,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
}
