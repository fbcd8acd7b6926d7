package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/mahfuz/blood-bridge-go/models"
)

type EngineSuite struct {
	suite.Suite
	store  *MemoryStore
	engine *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.store = NewMemoryStore()

	var err error
	s.engine, err = New(s.store)
	s.Require().NoError(err)
}

func (s *EngineSuite) seedRequest(status models.RequestStatus, donationTime *time.Time) models.BloodRequest {
	r := models.BloodRequest{
		ID:               primitive.NewObjectID(),
		BloodGroup:       "O+",
		DonationDateTime: donationTime,
		Units:            2,
		PatientName:      "Test Patient",
		HospitalAddress:  "City Hospital",
		Status:           status,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	s.store.PutRequest(r)
	return r
}

func (s *EngineSuite) seedDonor(approved, banned bool, total int) models.Donor {
	d := models.Donor{
		ID:             primitive.NewObjectID(),
		Name:           "Test Donor",
		Email:          "donor@example.com",
		BloodGroup:     "O+",
		IsApproved:     approved,
		IsBanned:       banned,
		TotalDonations: total,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	s.store.PutDonor(d)
	return d
}

func (s *EngineSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil)
		s.Error(err)
	})
}

func (s *EngineSuite) TestCompleteDonation() {
	ctx := context.Background()

	s.Run("completes request and credits donor", func() {
		scheduled := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		request := s.seedRequest(models.StatusPending, &scheduled)
		donor := s.seedDonor(true, false, 3)

		err := s.engine.CompleteDonation(ctx, request.ID.Hex(), donor.ID.Hex())
		s.Require().NoError(err)

		gotReq, err := s.store.FindRequest(ctx, request.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusCompleted, gotReq.Status)

		gotDonor, err := s.store.FindDonor(ctx, donor.ID)
		s.Require().NoError(err)
		s.Equal(4, gotDonor.TotalDonations)
		s.Equal("City Hospital", gotDonor.LastDonationPlace)
		s.Require().NotNil(gotDonor.LastDonationDate)
		s.True(gotDonor.LastDonationDate.Equal(scheduled))
	})

	s.Run("appends one donation record", func() {
		request := s.seedRequest(models.StatusApproved, nil)
		donor := s.seedDonor(true, false, 0)

		s.Require().NoError(s.engine.CompleteDonation(ctx, request.ID.Hex(), donor.ID.Hex()))

		records := s.store.Donations()
		s.Require().Len(records, 1)
		s.Equal(donor.ID, records[0].DonorID)
		s.Equal(request.ID, records[0].RequestID)
		s.Equal("O+", records[0].BloodGroup)
		s.Equal(2, records[0].Units)
	})

	s.Run("missing scheduled time falls back to now", func() {
		request := s.seedRequest(models.StatusPending, nil)
		donor := s.seedDonor(true, false, 0)

		before := time.Now()
		s.Require().NoError(s.engine.CompleteDonation(ctx, request.ID.Hex(), donor.ID.Hex()))
		after := time.Now()

		gotDonor, err := s.store.FindDonor(ctx, donor.ID)
		s.Require().NoError(err)
		s.Require().NotNil(gotDonor.LastDonationDate)
		s.False(gotDonor.LastDonationDate.Before(before))
		s.False(gotDonor.LastDonationDate.After(after))
	})
}

func (s *EngineSuite) TestIdempotencyGuard() {
	ctx := context.Background()

	request := s.seedRequest(models.StatusPending, nil)
	donor := s.seedDonor(true, false, 3)

	s.Require().NoError(s.engine.CompleteDonation(ctx, request.ID.Hex(), donor.ID.Hex()))

	err := s.engine.CompleteDonation(ctx, request.ID.Hex(), donor.ID.Hex())
	s.Require().Error(err)
	s.Equal(KindAlreadyCompleted, KindOf(err))

	gotDonor, err := s.store.FindDonor(ctx, donor.ID)
	s.Require().NoError(err)
	s.Equal(4, gotDonor.TotalDonations)
	s.Len(s.store.Donations(), 1)
}

func (s *EngineSuite) TestIneligibleDonor() {
	ctx := context.Background()

	cases := []struct {
		name     string
		approved bool
		banned   bool
	}{
		{"unapproved donor", false, false},
		{"banned donor", true, true},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			request := s.seedRequest(models.StatusPending, nil)
			donor := s.seedDonor(tc.approved, tc.banned, 5)

			err := s.engine.CompleteDonation(ctx, request.ID.Hex(), donor.ID.Hex())
			s.Require().Error(err)
			s.Equal(KindDonorNotEligible, KindOf(err))

			gotReq, err := s.store.FindRequest(ctx, request.ID)
			s.Require().NoError(err)
			s.Equal(models.StatusPending, gotReq.Status)

			gotDonor, err := s.store.FindDonor(ctx, donor.ID)
			s.Require().NoError(err)
			s.Equal(5, gotDonor.TotalDonations)
		})
	}
}

func (s *EngineSuite) TestNotFound() {
	ctx := context.Background()

	s.Run("unknown request", func() {
		donor := s.seedDonor(true, false, 0)
		err := s.engine.CompleteDonation(ctx, primitive.NewObjectID().Hex(), donor.ID.Hex())
		s.Require().Error(err)
		s.Equal(KindNotFound, KindOf(err))
	})

	s.Run("unknown donor", func() {
		request := s.seedRequest(models.StatusPending, nil)
		err := s.engine.CompleteDonation(ctx, request.ID.Hex(), primitive.NewObjectID().Hex())
		s.Require().Error(err)
		s.Equal(KindNotFound, KindOf(err))

		gotReq, err := s.store.FindRequest(ctx, request.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusPending, gotReq.Status)
	})

	s.Run("malformed ids", func() {
		err := s.engine.CompleteDonation(ctx, "not-an-id", primitive.NewObjectID().Hex())
		s.Equal(KindInvalidInput, KindOf(err))

		err = s.engine.CompleteDonation(ctx, primitive.NewObjectID().Hex(), "")
		s.Equal(KindInvalidInput, KindOf(err))
	})
}

func (s *EngineSuite) TestCommitFailureLeavesStateUnchanged() {
	ctx := context.Background()

	request := s.seedRequest(models.StatusApproved, nil)
	donor := s.seedDonor(true, false, 7)

	s.store.FailComplete(errors.New("write conflict"))

	err := s.engine.CompleteDonation(ctx, request.ID.Hex(), donor.ID.Hex())
	s.Require().Error(err)
	s.Equal(KindInternal, KindOf(err))

	gotReq, err := s.store.FindRequest(ctx, request.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, gotReq.Status)

	gotDonor, err := s.store.FindDonor(ctx, donor.ID)
	s.Require().NoError(err)
	s.Equal(7, gotDonor.TotalDonations)
	s.Nil(gotDonor.LastDonationDate)
	s.Empty(s.store.Donations())

	// A later attempt with the fault cleared succeeds.
	s.store.FailComplete(nil)
	s.Require().NoError(s.engine.CompleteDonation(ctx, request.ID.Hex(), donor.ID.Hex()))
}

func (s *EngineSuite) TestConcurrentCompletionSingleWinner() {
	ctx := context.Background()

	request := s.seedRequest(models.StatusApproved, nil)
	donor := s.seedDonor(true, false, 0)

	const attempts = 8
	results := make([]error, attempts)

	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			results[i] = s.engine.CompleteDonation(ctx, request.ID.Hex(), donor.ID.Hex())
		}(i)
	}
	start.Done()
	done.Wait()

	var wins, losses int
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		s.Equal(KindAlreadyCompleted, KindOf(err))
		losses++
	}
	s.Equal(1, wins)
	s.Equal(attempts-1, losses)

	gotDonor, err := s.store.FindDonor(ctx, donor.ID)
	s.Require().NoError(err)
	s.Equal(1, gotDonor.TotalDonations)
	s.Len(s.store.Donations(), 1)
}
