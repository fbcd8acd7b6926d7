package controllers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	engine "github.com/mahfuz/blood-bridge-go/engine"
	models "github.com/mahfuz/blood-bridge-go/models"
)

func donationRouter(t *testing.T, store *engine.MemoryStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	eng, err := engine.New(store)
	require.NoError(t, err)

	r := gin.New()
	r.POST("/admin/requests/:id/donate", CompleteDonation(eng))
	return r
}

func postDonate(r *gin.Engine, requestID, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/requests/"+requestID+"/donate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestCompleteDonationHandler(t *testing.T) {
	scheduled := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	newFixtures := func() (*engine.MemoryStore, models.BloodRequest, models.Donor) {
		store := engine.NewMemoryStore()
		request := models.BloodRequest{
			ID:               primitive.NewObjectID(),
			BloodGroup:       "A+",
			DonationDateTime: &scheduled,
			Units:            1,
			HospitalAddress:  "City Hospital",
			Status:           models.StatusApproved,
		}
		donor := models.Donor{
			ID:         primitive.NewObjectID(),
			Name:       "Donor",
			IsApproved: true,
		}
		store.PutRequest(request)
		store.PutDonor(donor)
		return store, request, donor
	}

	t.Run("success returns 200", func(t *testing.T) {
		store, request, donor := newFixtures()
		r := donationRouter(t, store)

		w := postDonate(r, request.ID.Hex(), `{"donor_id":"`+donor.ID.Hex()+`"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "donation completed")
	})

	t.Run("second completion returns 409", func(t *testing.T) {
		store, request, donor := newFixtures()
		r := donationRouter(t, store)

		body := `{"donor_id":"` + donor.ID.Hex() + `"}`
		assert.Equal(t, http.StatusOK, postDonate(r, request.ID.Hex(), body).Code)
		assert.Equal(t, http.StatusConflict, postDonate(r, request.ID.Hex(), body).Code)
	})

	t.Run("malformed ids return 400", func(t *testing.T) {
		store, _, donor := newFixtures()
		r := donationRouter(t, store)

		assert.Equal(t, http.StatusBadRequest, postDonate(r, "nope", `{"donor_id":"`+donor.ID.Hex()+`"}`).Code)
	})

	t.Run("unknown request returns 404", func(t *testing.T) {
		store, _, donor := newFixtures()
		r := donationRouter(t, store)

		w := postDonate(r, primitive.NewObjectID().Hex(), `{"donor_id":"`+donor.ID.Hex()+`"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("banned donor returns 422", func(t *testing.T) {
		store, request, _ := newFixtures()
		banned := models.Donor{ID: primitive.NewObjectID(), IsApproved: true, IsBanned: true}
		store.PutDonor(banned)
		r := donationRouter(t, store)

		w := postDonate(r, request.ID.Hex(), `{"donor_id":"`+banned.ID.Hex()+`"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}
