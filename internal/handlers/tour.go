package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/auth"
	"github.com/markjakearzadon/realestate-gobackend/internal/models"
)

type TourHandler struct {
	tours      TourStore
	properties PropertyStore
	messages   MessageStore
	log        *zap.SugaredLogger
	now        func() time.Time
}

func NewTourHandler(d *Dependencies) *TourHandler {
	return &TourHandler{tours: d.Tours, properties: d.Properties, messages: d.Messages, log: d.Log, now: d.Now}
}

// AvailableProperties lists properties open for booking.
func (h *TourHandler) AvailableProperties(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	pageNum, limit, skip := page(r, 10)
	q := models.PropertyQuery{
		ActiveOnly: true,
		Statuses:   []string{models.StatusAvailable},
		City:       strings.TrimSpace(v.Get("city")),
		Skip:       skip,
		Limit:      limit,
	}
	if t := v.Get("propertyType"); t != "" {
		q.PropertyType = t
	}
	if f, ok := queryFloat(v, "minPrice"); ok {
		q.MinPrice = &f
	}
	if f, ok := queryFloat(v, "maxPrice"); ok {
		q.MaxPrice = &f
	}

	listings, err := h.properties.List(r.Context(), q)
	if err != nil {
		writeServerError(w, h.log, "Failed to get properties", err)
		return
	}
	total, err := h.properties.Count(r.Context(), q)
	if err != nil {
		writeServerError(w, h.log, "Failed to get properties", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"count":      len(listings),
		"properties": listings,
		"pagination": pagination(pageNum, limit, total),
	})
}

func (h *TourHandler) AvailableProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "property")
	if !ok {
		return
	}
	listing, err := h.properties.Listing(r.Context(), id, true)
	if err != nil {
		writeServiceError(w, h.log, err, "Property not found or no longer available", "Failed to get property details")
		return
	}
	if listing.Status != models.StatusAvailable {
		writeError(w, http.StatusBadRequest, "This property is not available for tours at the moment")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "property": listing})
}

type scheduleRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required"`
	TourDate   string `json:"tourDate" validate:"required"`
	TourTime   string `json:"tourTime" validate:"required"`
	PropertyID string `json:"propertyId" validate:"required"`
	Message    string `json:"message"`
}

// parseTourDate accepts a calendar date or an RFC 3339 timestamp.
func parseTourDate(s string, loc *time.Location) (time.Time, bool) {
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func (h *TourHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if !validBody(w, &req) {
		return
	}
	propertyID, err := primitive.ObjectIDFromHex(req.PropertyID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid property ID")
		return
	}

	property, err := h.properties.GetByID(r.Context(), propertyID)
	if err != nil || !property.IsActive {
		if err == nil {
			writeError(w, http.StatusNotFound, "Property not found or no longer available")
			return
		}
		writeServiceError(w, h.log, err, "Property not found or no longer available", "Failed to schedule tour")
		return
	}
	if !models.PublicStatus(property.Status) {
		writeError(w, http.StatusBadRequest, "This property is not available for tours at the moment")
		return
	}

	now := h.now()
	date, ok := parseTourDate(req.TourDate, now.Location())
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid tour date")
		return
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if date.Before(today) {
		writeError(w, http.StatusBadRequest, "Tour date must be in the future")
		return
	}

	tour := &models.Tour{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Message:  req.Message,
		TourDate: date,
		TourTime: req.TourTime,
		Property: property.ID,
		Agent:    property.Agent,
	}
	if err := h.tours.Create(r.Context(), tour); err != nil {
		writeServerError(w, h.log, "Failed to schedule tour", err)
		return
	}

	if text := strings.TrimSpace(req.Message); text != "" {
		agent := property.Agent
		msg := &models.Message{Tour: tour.ID, Sender: models.SenderUser, ReceiverID: &agent, Message: text}
		if err := h.messages.Create(r.Context(), msg); err != nil {
			h.log.Warnf("Failed to store initial message for tour %s: %v", tour.ID.Hex(), err)
		}
	}

	h.log.Infof("Tour %s scheduled for property %s", tour.ID.Hex(), property.ID.Hex())
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Tour scheduled successfully! We'll contact you soon to confirm.",
		"tour":    tour,
	})
}

func (h *TourHandler) listTours(w http.ResponseWriter, r *http.Request, q models.TourQuery) {
	if q.Status != "" && !models.ValidTourStatus(q.Status) {
		writeError(w, http.StatusBadRequest, "Invalid status. Must be one of: pending, confirmed, completed, cancelled")
		return
	}
	pageNum, limit, skip := page(r, 10)
	q.Skip, q.Limit = skip, limit
	tours, total, err := h.tours.List(r.Context(), q)
	if err != nil {
		writeServerError(w, h.log, "Failed to get tours", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"count":      len(tours),
		"tours":      tours,
		"pagination": pagination(pageNum, limit, total),
	})
}

func (h *TourHandler) MyTours(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	h.listTours(w, r, models.TourQuery{Agent: &user.ID, Status: r.URL.Query().Get("status")})
}

func (h *TourHandler) AllTours(w http.ResponseWriter, r *http.Request) {
	q := models.TourQuery{Status: r.URL.Query().Get("status")}
	if s := r.URL.Query().Get("agentId"); s != "" {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid agent ID")
			return
		}
		q.Agent = &id
	}
	h.listTours(w, r, q)
}

func (h *TourHandler) MyTourStats(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	now := h.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	stats, err := h.tours.AgentStats(r.Context(), user.ID, now, monthStart)
	if err != nil {
		writeServerError(w, h.log, "Failed to get tour statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stats": stats})
}

func (h *TourHandler) MyTour(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "tour")
	if !ok {
		return
	}
	tour, err := h.tours.Listing(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Tour not found", "Failed to get tour")
		return
	}
	user, _ := auth.UserFromContext(r.Context())
	if tour.Agent != user.ID {
		writeError(w, http.StatusForbidden, "You can only view your own tours")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "tour": tour})
}

// UpdateStatus validates the status before checking ownership.
func (h *TourHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "tour")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if !models.ValidTourStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "Invalid status. Must be one of: pending, confirmed, completed, cancelled")
		return
	}

	tour, err := h.tours.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Tour not found", "Failed to update tour")
		return
	}
	user, _ := auth.UserFromContext(r.Context())
	if tour.Agent != user.ID {
		writeError(w, http.StatusForbidden, "You can only update your own tours")
		return
	}

	updated, err := h.tours.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, h.log, err, "Tour not found", "Failed to update tour")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Tour status updated successfully", "tour": updated})
}

// ownTour loads the tour at {tourId} and checks the calling agent owns it.
func ownTour(w http.ResponseWriter, r *http.Request, tours TourStore, log *zap.SugaredLogger) (*models.Tour, bool) {
	id, ok := pathID(w, r, "tourId", "tour")
	if !ok {
		return nil, false
	}
	tour, err := tours.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, log, err, "Tour not found", "Failed to get tour")
		return nil, false
	}
	user, _ := auth.UserFromContext(r.Context())
	if tour.Agent != user.ID {
		writeError(w, http.StatusForbidden, "You can only access messages for your own tours")
		return nil, false
	}
	return tour, true
}
