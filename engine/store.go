package engine

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/mahfuz/blood-bridge-go/models"
)

var (
	// ErrNotFound is returned by store lookups when no document
	// matches the given id.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyCompleted is returned by Complete when the request's
	// status was completed at commit time.
	ErrAlreadyCompleted = errors.New("request already completed")
)

// Completion carries everything the store needs to apply the dual
// update. The engine fills it after all preconditions passed.
type Completion struct {
	RequestID primitive.ObjectID
	DonorID   primitive.ObjectID

	DonorName  string
	BloodGroup string
	Units      int
	Date       time.Time
	Place      string
	Now        time.Time
}

// Store is the persistence boundary of the donation engine.
//
// Complete must apply the whole completion as one atomic unit: the
// request's status flips to completed, the donor's counter is
// incremented and its last-donation fields refreshed, and a
// DonationRecord is appended — all together, or nothing at all. The
// status check and the status write must be the same compare-and-set:
// of two concurrent completions against one request exactly one may
// commit, the other gets ErrAlreadyCompleted.
type Store interface {
	FindRequest(ctx context.Context, id primitive.ObjectID) (*models.BloodRequest, error)
	FindDonor(ctx context.Context, id primitive.ObjectID) (*models.Donor, error)
	Complete(ctx context.Context, c Completion) error
}
