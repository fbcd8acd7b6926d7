package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/mahfuz/blood-bridge-go/models"
)

// ErrorKind classifies completion failures for the transport layer.
type ErrorKind string

const (
	KindInvalidInput     ErrorKind = "invalid_input"
	KindNotFound         ErrorKind = "not_found"
	KindAlreadyCompleted ErrorKind = "already_completed"
	KindDonorNotEligible ErrorKind = "donor_not_eligible"
	KindInternal         ErrorKind = "internal"
)

// Error is the typed failure returned by CompleteDonation. Message is
// safe to show to the caller.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

// KindOf extracts the error kind, defaulting to internal for anything
// the engine did not produce itself.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func failure(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Engine validates a (request, donor) pairing and performs the atomic
// state transition that completes a request and credits the donor. It
// is the sole writer of the completed transition and the donation
// counter increment.
type Engine struct {
	store Store
	now   func() time.Time
}

func New(store Store) (*Engine, error) {
	if store == nil {
		return nil, errors.New("donation store is required")
	}
	return &Engine{store: store, now: time.Now}, nil
}

// CompleteDonation marks the request completed and increments the
// donor's statistics as one atomic unit. Every precondition failure is
// reported before any write; only the final commit can fail afterwards,
// and a failed commit leaves both documents untouched. The engine never
// retries on its own.
func (e *Engine) CompleteDonation(ctx context.Context, requestID, donorID string) error {
	reqID, err := primitive.ObjectIDFromHex(requestID)
	if err != nil {
		return failure(KindInvalidInput, "invalid request id")
	}
	donID, err := primitive.ObjectIDFromHex(donorID)
	if err != nil {
		return failure(KindInvalidInput, "invalid donor id")
	}

	request, err := e.store.FindRequest(ctx, reqID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return failure(KindNotFound, "request not found")
		}
		return failure(KindInternal, "could not load request")
	}
	if request.Status == models.StatusCompleted {
		return failure(KindAlreadyCompleted, "this request was already fulfilled")
	}

	donor, err := e.store.FindDonor(ctx, donID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return failure(KindNotFound, "donor not found")
		}
		return failure(KindInternal, "could not load donor")
	}
	if !donor.IsApproved {
		return failure(KindDonorNotEligible, "donor is not approved yet")
	}
	if donor.IsBanned {
		return failure(KindDonorNotEligible, "donor is banned")
	}

	now := e.now()
	date := now
	if request.DonationDateTime != nil && !request.DonationDateTime.IsZero() {
		date = *request.DonationDateTime
	} else {
		log.Printf("request %s has no scheduled donation time, falling back to now", requestID)
	}

	completion := Completion{
		RequestID:  reqID,
		DonorID:    donID,
		DonorName:  donor.Name,
		BloodGroup: request.BloodGroup,
		Units:      request.Units,
		Date:       date,
		Place:      request.HospitalAddress,
		Now:        now,
	}

	if err := e.store.Complete(ctx, completion); err != nil {
		switch {
		case errors.Is(err, ErrAlreadyCompleted):
			// lost the race against a concurrent completion
			return failure(KindAlreadyCompleted, "this request was already fulfilled")
		case errors.Is(err, ErrNotFound):
			return failure(KindNotFound, "request or donor no longer exists")
		default:
			log.Printf("donation completion for request %s failed to commit: %v", requestID, err)
			return failure(KindInternal, "could not complete donation, please try again")
		}
	}

	return nil
}
