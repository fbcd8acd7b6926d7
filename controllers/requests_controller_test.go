package controllers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/mahfuz/blood-bridge-go/models"
)

func pendingRequest() models.BloodRequest {
	return models.BloodRequest{
		ID:          primitive.NewObjectID(),
		BloodGroup:  "B+",
		Units:       2,
		PatientName: "Patient",
		Status:      models.StatusPending,
	}
}

// newWriteSpec mirrors how UpdateRequest seeds the filter and update
// before resolving a status change.
func newWriteSpec(existing *models.BloodRequest, now time.Time) (bson.M, bson.M) {
	filter := bson.M{"_id": existing.ID, "status": existing.Status}
	update := bson.M{"updated_at": now}
	return filter, update
}

func TestResolveStatusChangeFirstApproval(t *testing.T) {
	existing := pendingRequest()
	now := time.Now()
	filter, update := newWriteSpec(&existing, now)

	firstApproval, code, _ := resolveStatusChange(&existing, "approved", now, filter, update)
	require.Zero(t, code)
	assert.True(t, firstApproval)

	assert.Equal(t, models.StatusApproved, update["status"])
	assert.Equal(t, now, update["approved_at"])

	// the write must be conditional on what the handler read
	assert.Equal(t, models.StatusPending, filter["status"])
	val, ok := filter["approved_at"]
	require.True(t, ok)
	assert.Nil(t, val)
}

func TestResolveStatusChangeRacedApprovalCannotMatchTwice(t *testing.T) {
	// Two admins read the same pending request and both PATCH it to
	// approved. Whichever write lands first flips the document; the
	// loser's filter, built from the stale read, must no longer match
	// it, so only one approval can trigger the fan-out.
	stale := pendingRequest()
	now := time.Now()

	winnerFilter, winnerUpdate := newWriteSpec(&stale, now)
	firstApproval, code, _ := resolveStatusChange(&stale, "approved", now, winnerFilter, winnerUpdate)
	require.Zero(t, code)
	require.True(t, firstApproval)

	// state after the winner's update lands
	landed := stale
	landed.Status = models.StatusApproved
	approvedAt := now
	landed.ApprovedAt = &approvedAt

	loserFilter, loserUpdate := newWriteSpec(&stale, now)
	firstApproval, code, _ = resolveStatusChange(&stale, "approved", now, loserFilter, loserUpdate)
	require.Zero(t, code)
	require.True(t, firstApproval)

	assert.Equal(t, models.StatusApproved, loserUpdate["status"])
	assert.Equal(t, models.StatusPending, loserFilter["status"])
	assert.NotEqual(t, loserFilter["status"], landed.Status)
	val, ok := loserFilter["approved_at"]
	require.True(t, ok)
	assert.Nil(t, val)
	assert.NotNil(t, landed.ApprovedAt)
}

func TestResolveStatusChangeReapproveIsNoOp(t *testing.T) {
	approvedAt := time.Now().Add(-time.Hour)
	existing := pendingRequest()
	existing.Status = models.StatusApproved
	existing.ApprovedAt = &approvedAt

	now := time.Now()
	filter, update := newWriteSpec(&existing, now)

	firstApproval, code, _ := resolveStatusChange(&existing, "approved", now, filter, update)
	assert.Zero(t, code)
	assert.False(t, firstApproval)
	assert.NotContains(t, update, "status")
	assert.NotContains(t, update, "approved_at")
	assert.NotContains(t, filter, "approved_at")
}

func TestResolveStatusChangeRejectAfterApproval(t *testing.T) {
	approvedAt := time.Now().Add(-time.Hour)
	existing := pendingRequest()
	existing.Status = models.StatusApproved
	existing.ApprovedAt = &approvedAt

	now := time.Now()
	filter, update := newWriteSpec(&existing, now)

	firstApproval, code, _ := resolveStatusChange(&existing, "rejected", now, filter, update)
	assert.Zero(t, code)
	assert.False(t, firstApproval)
	assert.Equal(t, models.StatusRejected, update["status"])
	assert.NotContains(t, filter, "approved_at")
}

func TestResolveStatusChangeRejections(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name     string
		from     models.RequestStatus
		raw      string
		wantCode int
	}{
		{"unknown status", models.StatusPending, "bogus", http.StatusBadRequest},
		{"completion reserved for donation endpoint", models.StatusPending, "completed", http.StatusUnprocessableEntity},
		{"rejected cannot be approved", models.StatusRejected, "approved", http.StatusConflict},
		{"approved cannot go back to pending", models.StatusApproved, "pending", http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			existing := pendingRequest()
			existing.Status = tc.from
			filter, update := newWriteSpec(&existing, now)

			firstApproval, code, msg := resolveStatusChange(&existing, tc.raw, now, filter, update)
			assert.False(t, firstApproval)
			assert.Equal(t, tc.wantCode, code)
			assert.NotEmpty(t, msg)
			assert.NotContains(t, update, "status")
		})
	}
}

func TestToRequestRow(t *testing.T) {
	scheduled := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	created := time.Date(2024, 4, 20, 8, 30, 0, 0, time.UTC)

	r := models.BloodRequest{
		ID:               primitive.NewObjectID(),
		BloodGroup:       "O-",
		DonationDateTime: &scheduled,
		Units:            3,
		RequesterPhone:   "01700000000",
		PatientName:      "Patient",
		MedicalReason:    "surgery",
		PrimaryPhone:     "01800000000",
		HospitalAddress:  "City Hospital",
		Status:           models.StatusApproved,
		CreatedAt:        created,
		UpdatedAt:        created,
	}

	row := toRequestRow(r)
	assert.Equal(t, r.ID.Hex(), row.ID)
	assert.Equal(t, "O-", row.BloodGroup)
	assert.Equal(t, 3, row.Units)
	assert.Equal(t, "2024-05-01T10:00:00Z", row.DonationDateTime)
	assert.Equal(t, "2024-04-20T08:30:00Z", row.CreatedAt)
	assert.Equal(t, models.StatusApproved, row.Status)

	// no scheduled slot leaves the field empty instead of a zero time
	r.DonationDateTime = nil
	assert.Empty(t, toRequestRow(r).DonationDateTime)
}
