package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BloodRequest struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BloodGroup       string             `bson:"blood_group" json:"blood_group"`
	DonationDateTime *time.Time         `bson:"donation_date_time,omitempty" json:"donation_date_time,omitempty"`
	Units            int                `bson:"units" json:"units"`

	RequesterName       string `bson:"requester_name" json:"requester_name"`
	RelationWithPatient string `bson:"relation_with_patient,omitempty" json:"relation_with_patient,omitempty"`
	RequesterPhone      string `bson:"requester_phone" json:"requester_phone"`

	PatientName   string  `bson:"patient_name" json:"patient_name"`
	PatientAge    int     `bson:"patient_age,omitempty" json:"patient_age,omitempty"`
	PatientGender string  `bson:"patient_gender,omitempty" json:"patient_gender,omitempty"` // male, female, other
	Hemoglobin    float64 `bson:"hemoglobin,omitempty" json:"hemoglobin,omitempty"`
	MedicalReason string  `bson:"medical_reason,omitempty" json:"medical_reason,omitempty"`

	PrimaryPhone    string `bson:"primary_phone" json:"primary_phone"`
	AlternatePhone  string `bson:"alternate_phone,omitempty" json:"alternate_phone,omitempty"`
	HospitalAddress string `bson:"hospital_address" json:"hospital_address"`

	Status     RequestStatus `bson:"status" json:"status"`
	ApprovedAt *time.Time    `bson:"approved_at,omitempty" json:"approved_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
