package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Donor struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	Mobile       string             `bson:"mobile" json:"mobile"`
	BloodGroup   string             `bson:"blood_group" json:"blood_group"`
	PasswordHash string             `bson:"password_hash" json:"-"`

	IsApproved bool `bson:"is_approved" json:"is_approved"`
	IsAdmin    bool `bson:"is_admin" json:"is_admin"`
	IsBanned   bool `bson:"is_banned" json:"is_banned"`

	Address           string     `bson:"address,omitempty" json:"address,omitempty"`
	TotalDonations    int        `bson:"total_donations" json:"total_donations"`
	LastDonationDate  *time.Time `bson:"last_donation_date,omitempty" json:"last_donation_date,omitempty"`
	LastDonationPlace string     `bson:"last_donation_place,omitempty" json:"last_donation_place,omitempty"`
	ProfileImage      string     `bson:"profile_image,omitempty" json:"profile_image,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
