package controllers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	config "github.com/mahfuz/blood-bridge-go/config"
	models "github.com/mahfuz/blood-bridge-go/models"
	utils "github.com/mahfuz/blood-bridge-go/utils"
)

// open requests shown to donors are capped like the donor search
const maxOpenRequests = 100

func isValidPhone(v string) bool {
	return len(strings.TrimSpace(v)) >= 6
}

// requestRow is the projection served by the list endpoints; it leaves
// out the patient's medical details that only the detail view needs.
type requestRow struct {
	ID               string               `json:"id"`
	PatientName      string               `json:"patient_name"`
	MedicalReason    string               `json:"medical_reason,omitempty"`
	DonationDateTime string               `json:"donation_date_time,omitempty"`
	HospitalAddress  string               `json:"hospital_address"`
	PrimaryPhone     string               `json:"primary_phone"`
	RequesterPhone   string               `json:"requester_phone"`
	BloodGroup       string               `json:"blood_group"`
	Units            int                  `json:"units"`
	Status           models.RequestStatus `json:"status"`
	CreatedAt        string               `json:"created_at"`
	UpdatedAt        string               `json:"updated_at"`
}

func toRequestRow(r models.BloodRequest) requestRow {
	row := requestRow{
		ID:              r.ID.Hex(),
		PatientName:     r.PatientName,
		MedicalReason:   r.MedicalReason,
		HospitalAddress: r.HospitalAddress,
		PrimaryPhone:    r.PrimaryPhone,
		RequesterPhone:  r.RequesterPhone,
		BloodGroup:      r.BloodGroup,
		Units:           r.Units,
		Status:          r.Status,
		CreatedAt:       r.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       r.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if r.DonationDateTime != nil {
		row.DonationDateTime = r.DonationDateTime.UTC().Format(time.RFC3339)
	}
	return row
}

func parseDonationTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	// datetime-local and date-only forms from the request form
	layouts := []string{"2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", raw)
}

// ---------------- CREATE ----------------
func CreateRequest(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			BloodGroup       string `json:"blood_group"`
			DonationDateTime string `json:"donation_date_time"`
			Units            int    `json:"units"`

			RequesterName       string `json:"requester_name"`
			RelationWithPatient string `json:"relation_with_patient"`
			RequesterPhone      string `json:"requester_phone"`

			PatientName   string  `json:"patient_name"`
			PatientAge    int     `json:"patient_age"`
			PatientGender string  `json:"patient_gender"`
			Hemoglobin    float64 `json:"hemoglobin"`
			MedicalReason string  `json:"medical_reason"`

			PrimaryPhone    string `json:"primary_phone"`
			AlternatePhone  string `json:"alternate_phone"`
			HospitalAddress string `json:"hospital_address"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if input.BloodGroup == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "blood_group is required"})
			return
		}
		if input.DonationDateTime == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "donation_date_time is required"})
			return
		}
		if input.Units <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "units must be greater than 0"})
			return
		}
		if input.RequesterName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "requester_name is required"})
			return
		}
		if !isValidPhone(input.RequesterPhone) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "requester_phone is required"})
			return
		}
		if input.PatientName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "patient_name is required"})
			return
		}
		if !isValidPhone(input.PrimaryPhone) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "primary_phone is required"})
			return
		}
		if input.HospitalAddress == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hospital_address is required"})
			return
		}

		donationTime, err := parseDonationTime(input.DonationDateTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid donation_date_time, use RFC3339 or YYYY-MM-DDTHH:MM"})
			return
		}

		now := time.Now()
		request := models.BloodRequest{
			ID:               primitive.NewObjectID(),
			BloodGroup:       input.BloodGroup,
			DonationDateTime: &donationTime,
			Units:            input.Units,

			RequesterName:       input.RequesterName,
			RelationWithPatient: input.RelationWithPatient,
			RequesterPhone:      input.RequesterPhone,

			PatientName:   input.PatientName,
			PatientAge:    input.PatientAge,
			PatientGender: input.PatientGender,
			Hemoglobin:    input.Hemoglobin,
			MedicalReason: input.MedicalReason,

			PrimaryPhone:    input.PrimaryPhone,
			AlternatePhone:  input.AlternatePhone,
			HospitalAddress: input.HospitalAddress,

			Status:    models.StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}

		col := cfg.MongoClient.Database(cfg.DBName).Collection("blood_requests")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := col.InsertOne(ctx, request); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create request"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":      request.ID.Hex(),
			"message": "blood request submitted",
		})
	}
}

// ---------------- LIST ----------------
func ListRequests(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		col := cfg.MongoClient.Database(cfg.DBName).Collection("blood_requests")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		filter := bson.M{}
		if status := c.Query("status"); status != "" {
			normalized, ok := models.NormalizeRequestStatus(status)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
				return
			}
			filter["status"] = normalized
		}

		opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
		cursor, err := col.Find(ctx, filter, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch requests"})
			return
		}

		var requests []models.BloodRequest
		if err := cursor.All(ctx, &requests); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not decode requests"})
			return
		}

		if len(requests) == 0 {
			c.JSON(http.StatusOK, []requestRow{})
			return
		}

		latest := requests[0]
		for _, r := range requests {
			if r.UpdatedAt.After(latest.UpdatedAt) {
				latest = r
			}
		}

		etag := utils.GenerateETag(latest.ID, latest.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)
		c.Header("Last-Modified", latest.UpdatedAt.UTC().Format(http.TimeFormat))

		rows := make([]requestRow, 0, len(requests))
		for _, r := range requests {
			rows = append(rows, toRequestRow(r))
		}
		c.JSON(http.StatusOK, rows)
	}
}

// ---------------- LIST OPEN ----------------
// Public board of approved requests still waiting for a donor,
// soonest donation slot first.
func ListOpenRequests(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		col := cfg.MongoClient.Database(cfg.DBName).Collection("blood_requests")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		opts := options.Find().
			SetSort(bson.D{{Key: "donation_date_time", Value: 1}, {Key: "created_at", Value: -1}}).
			SetLimit(maxOpenRequests)
		cursor, err := col.Find(ctx, bson.M{"status": models.StatusApproved}, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not fetch requests"})
			return
		}

		var requests []models.BloodRequest
		if err := cursor.All(ctx, &requests); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not decode requests"})
			return
		}

		rows := make([]requestRow, 0, len(requests))
		for _, r := range requests {
			rows = append(rows, toRequestRow(r))
		}
		c.JSON(http.StatusOK, rows)
	}
}

// ---------------- GET ----------------
func GetRequest(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var request models.BloodRequest
		err = cfg.MongoClient.Database(cfg.DBName).
			Collection("blood_requests").
			FindOne(ctx, bson.M{"_id": oid}).
			Decode(&request)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}

		etag := utils.GenerateETag(request.ID, request.UpdatedAt)
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)

		c.JSON(http.StatusOK, request)
	}
}

// resolveStatusChange validates a requested status change against the
// document the handler read and folds it into the write. The filter is
// extended so the update is a compare-and-set: it only lands while the
// document still has that status, and a first approval additionally
// requires approved_at to be unset, so two racing approvals can never
// both trigger the notification fan-out. A non-zero code is the HTTP
// status to reject with.
func resolveStatusChange(existing *models.BloodRequest, raw string, now time.Time, filter, update bson.M) (firstApproval bool, code int, msg string) {
	newStatus, ok := models.NormalizeRequestStatus(raw)
	if !ok {
		return false, http.StatusBadRequest, "unknown status"
	}
	if newStatus == models.StatusCompleted {
		return false, http.StatusUnprocessableEntity, "use the donation endpoint to complete a request"
	}
	if newStatus == existing.Status {
		// idempotent re-apply, nothing to write and nobody to notify
		return false, 0, ""
	}
	if !models.CanTransition(existing.Status, newStatus) {
		return false, http.StatusConflict,
			fmt.Sprintf("cannot change status from %s to %s", existing.Status, newStatus)
	}
	update["status"] = newStatus
	if newStatus == models.StatusApproved && existing.ApprovedAt == nil {
		// first approval only; re-approving later never re-notifies
		filter["approved_at"] = nil
		update["approved_at"] = now
		return true, 0, ""
	}
	return false, 0, ""
}

// ---------------- UPDATE ----------------
// Status changes pass through the lifecycle table; a request can never
// be flipped to completed here, only via the donation endpoint.
func UpdateRequest(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
			return
		}

		var input struct {
			Units            int    `json:"units"`
			DonationDateTime string `json:"donation_date_time"`
			HospitalAddress  string `json:"hospital_address"`
			Status           string `json:"status"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		col := cfg.MongoClient.Database(cfg.DBName).Collection("blood_requests")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var existing models.BloodRequest
		if err := col.FindOne(ctx, bson.M{"_id": oid}).Decode(&existing); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}

		now := time.Now()
		filter := bson.M{"_id": oid, "status": existing.Status}
		update := bson.M{"updated_at": now}

		if input.Units > 0 {
			update["units"] = input.Units
		}
		if input.DonationDateTime != "" {
			dt, err := parseDonationTime(input.DonationDateTime)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid donation_date_time"})
				return
			}
			update["donation_date_time"] = dt
		}
		if input.HospitalAddress != "" {
			update["hospital_address"] = input.HospitalAddress
		}

		firstApproval := false
		if input.Status != "" {
			fa, code, msg := resolveStatusChange(&existing, input.Status, now, filter, update)
			if code != 0 {
				c.JSON(code, gin.H{"error": msg})
				return
			}
			firstApproval = fa
		}

		if len(update) == 1 && input.Status == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
			return
		}

		res, err := col.UpdateOne(ctx, filter, bson.M{"$set": update})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update request"})
			return
		}
		if res.MatchedCount == 0 {
			// either deleted meanwhile, or another writer changed the
			// status between our read and the filtered update
			if err := col.FindOne(ctx, bson.M{"_id": oid}).Err(); err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
				return
			}
			c.JSON(http.StatusConflict, gin.H{"error": "request was changed by another operation, reload and retry"})
			return
		}

		if firstApproval {
			if err := notifyApprovedRequest(ctx, cfg, &existing); err != nil {
				// the approval itself stands
				log.Printf("notification fan-out for request %s failed: %v", oid.Hex(), err)
			}
		}

		c.JSON(http.StatusOK, gin.H{"message": "request updated", "id": oid.Hex()})
	}
}

// ---------------- DELETE ----------------
func DeleteRequest(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		oid, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
			return
		}

		col := cfg.MongoClient.Database(cfg.DBName).Collection("blood_requests")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		res, err := col.DeleteOne(ctx, bson.M{"_id": oid})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete request"})
			return
		}
		if res.DeletedCount == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "request deleted", "id": oid.Hex()})
	}
}

// notifyApprovedRequest fans a notification out to every eligible
// donor and fires best-effort emails in the background.
func notifyApprovedRequest(ctx context.Context, cfg *config.Config, request *models.BloodRequest) error {
	db := cfg.MongoClient.Database(cfg.DBName)

	cursor, err := db.Collection("donors").Find(ctx, bson.M{
		"is_approved": true,
		"is_banned":   bson.M{"$ne": true},
	})
	if err != nil {
		return err
	}

	var donors []models.Donor
	if err := cursor.All(ctx, &donors); err != nil {
		return err
	}
	if len(donors) == 0 {
		return nil
	}

	location := strings.TrimSpace(request.HospitalAddress)
	if location == "" {
		location = "location not specified"
	}

	title := "New blood request approved"
	message := fmt.Sprintf("A %s blood request for patient %s has been approved. Donation place: %s",
		request.BloodGroup, request.PatientName, location)

	now := time.Now()
	docs := make([]interface{}, 0, len(donors))
	for _, d := range donors {
		docs = append(docs, models.Notification{
			ID:        primitive.NewObjectID(),
			UserID:    d.ID,
			Title:     title,
			Message:   message,
			RequestID: request.ID,
			IsRead:    false,
			CreatedAt: now,
		})
	}

	if _, err := db.Collection("notifications").InsertMany(ctx, docs); err != nil {
		return err
	}

	go func(donors []models.Donor) {
		for _, d := range donors {
			if d.Email == "" {
				continue
			}
			if err := utils.SendEmail(d.Email, d.Name, title, "<p>"+message+"</p>"); err != nil {
				log.Printf("approval email to %s failed: %v", d.Email, err)
			}
		}
	}(donors)

	return nil
}
