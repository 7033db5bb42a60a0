package handlers

import (
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/auth"
	"github.com/markjakearzadon/realestate-gobackend/internal/models"
)

type ReviewHandler struct {
	reviews    ReviewStore
	properties PropertyStore
	log        *zap.SugaredLogger
}

func NewReviewHandler(d *Dependencies) *ReviewHandler {
	return &ReviewHandler{reviews: d.Reviews, properties: d.Properties, log: d.Log}
}

type reviewRequest struct {
	PropertyID string `json:"propertyId" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Comment    string `json:"comment" validate:"required"`
}

func (h *ReviewHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Comment = strings.TrimSpace(req.Comment)
	if !validBody(w, &req) {
		return
	}
	propertyID, err := primitive.ObjectIDFromHex(req.PropertyID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid property ID")
		return
	}
	property, err := h.properties.GetByID(r.Context(), propertyID)
	if err != nil {
		writeServiceError(w, h.log, err, "Property not found", "Failed to submit review")
		return
	}

	review := &models.Review{Property: property.ID, Agent: property.Agent, Name: req.Name, Comment: req.Comment}
	if err := h.reviews.Create(r.Context(), review); err != nil {
		writeServerError(w, h.log, "Failed to submit review", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "message": "Review submitted successfully", "review": review})
}

func (h *ReviewHandler) ByProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "propertyId", "property")
	if !ok {
		return
	}
	reviews, err := h.reviews.ByProperty(r.Context(), id)
	if err != nil {
		writeServerError(w, h.log, "Failed to fetch reviews", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "count": len(reviews), "reviews": reviews})
}

func (h *ReviewHandler) MyReviews(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	reviews, err := h.reviews.ByAgent(r.Context(), user.ID)
	if err != nil {
		writeServerError(w, h.log, "Failed to fetch reviews", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "count": len(reviews), "reviews": reviews})
}
