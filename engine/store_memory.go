package engine

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/mahfuz/blood-bridge-go/models"
)

// MemoryStore is an in-process Store used by unit tests and local
// development. A single mutex makes each Complete call atomic; the
// failComplete hook simulates a commit that aborts before any write.
type MemoryStore struct {
	mu        sync.Mutex
	requests  map[primitive.ObjectID]*models.BloodRequest
	donors    map[primitive.ObjectID]*models.Donor
	donations []models.DonationRecord

	failComplete error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[primitive.ObjectID]*models.BloodRequest),
		donors:   make(map[primitive.ObjectID]*models.Donor),
	}
}

func (s *MemoryStore) PutRequest(r models.BloodRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = &r
}

func (s *MemoryStore) PutDonor(d models.Donor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.donors[d.ID] = &d
}

// FailComplete forces every following Complete call to return err
// without touching any document, as a transaction abort would. Pass
// nil to clear the fault.
func (s *MemoryStore) FailComplete(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failComplete = err
}

func (s *MemoryStore) Donations() []models.DonationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DonationRecord, len(s.donations))
	copy(out, s.donations)
	return out
}

func (s *MemoryStore) FindRequest(ctx context.Context, id primitive.ObjectID) (*models.BloodRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) FindDonor(ctx context.Context, id primitive.ObjectID) (*models.Donor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donors[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *MemoryStore) Complete(ctx context.Context, c Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failComplete != nil {
		return s.failComplete
	}

	request, ok := s.requests[c.RequestID]
	if !ok {
		return ErrNotFound
	}
	if request.Status == models.StatusCompleted {
		return ErrAlreadyCompleted
	}
	donor, ok := s.donors[c.DonorID]
	if !ok {
		return ErrNotFound
	}

	request.Status = models.StatusCompleted
	request.UpdatedAt = c.Now

	donor.TotalDonations++
	date := c.Date
	donor.LastDonationDate = &date
	donor.LastDonationPlace = c.Place
	donor.UpdatedAt = c.Now

	s.donations = append(s.donations, models.DonationRecord{
		ID:         primitive.NewObjectID(),
		DonorID:    c.DonorID,
		RequestID:  c.RequestID,
		DonorName:  c.DonorName,
		BloodGroup: c.BloodGroup,
		Units:      c.Units,
		Date:       c.Date,
		Location:   c.Place,
		CreatedAt:  c.Now,
	})
	return nil
}
