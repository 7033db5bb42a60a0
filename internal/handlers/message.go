package handlers

import (
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/auth"
	"github.com/markjakearzadon/realestate-gobackend/internal/models"
)

// MessageHandler serves tour conversations. Visitors have no account and
// prove who they are with the name and email they booked with.
type MessageHandler struct {
	tours    TourStore
	messages MessageStore
	log      *zap.SugaredLogger
}

func NewMessageHandler(d *Dependencies) *MessageHandler {
	return &MessageHandler{tours: d.Tours, messages: d.Messages, log: d.Log}
}

type userMessageRequest struct {
	TourID  string `json:"tourId" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required"`
}

type agentReplyRequest struct {
	TourID  string `json:"tourId" validate:"required"`
	Message string `json:"message" validate:"required"`
}

func (h *MessageHandler) tour(w http.ResponseWriter, r *http.Request, hex string) (*models.Tour, bool) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid tour ID")
		return nil, false
	}
	tour, err := h.tours.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Tour not found", "Failed to get tour")
		return nil, false
	}
	return tour, true
}

func (h *MessageHandler) UserSend(w http.ResponseWriter, r *http.Request) {
	var req userMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if !validBody(w, &req) {
		return
	}
	tour, ok := h.tour(w, r, req.TourID)
	if !ok {
		return
	}
	if !tour.Requester(req.Name, req.Email) {
		writeError(w, http.StatusForbidden, "Access denied")
		return
	}

	agent := tour.Agent
	msg := &models.Message{Tour: tour.ID, Sender: models.SenderUser, ReceiverID: &agent, Message: req.Message}
	if err := h.messages.Create(r.Context(), msg); err != nil {
		writeServerError(w, h.log, "Failed to send message", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "message": "Message sent successfully", "data": msg})
}

func (h *MessageHandler) UserTourMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "tourId", "tour")
	if !ok {
		return
	}
	listing, err := h.tours.Listing(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Tour not found", "Failed to get messages")
		return
	}
	q := r.URL.Query()
	if !listing.Requester(q.Get("name"), q.Get("email")) {
		writeError(w, http.StatusForbidden, "Access denied")
		return
	}
	h.writeThread(w, r, listing)
}

func (h *MessageHandler) UserTours(w http.ResponseWriter, r *http.Request) {
	name, email := r.URL.Query().Get("name"), r.URL.Query().Get("email")
	if name == "" || email == "" {
		writeError(w, http.StatusBadRequest, "Name and email are required")
		return
	}
	tours, _, err := h.tours.List(r.Context(), models.TourQuery{Name: name, Email: email})
	if err != nil {
		writeServerError(w, h.log, "Failed to get tours", err)
		return
	}
	if len(tours) == 0 {
		writeError(w, http.StatusNotFound, "No tours found for this user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "tours": tours})
}

func (h *MessageHandler) AgentReply(w http.ResponseWriter, r *http.Request) {
	var req agentReplyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if !validBody(w, &req) {
		return
	}
	tour, ok := h.tour(w, r, req.TourID)
	if !ok {
		return
	}
	user, _ := auth.UserFromContext(r.Context())
	if tour.Agent != user.ID {
		writeError(w, http.StatusForbidden, "You can only reply to your own tours")
		return
	}

	sender := user.ID
	msg := &models.Message{Tour: tour.ID, Sender: models.SenderAgent, SenderID: &sender, Message: req.Message}
	if err := h.messages.Create(r.Context(), msg); err != nil {
		writeServerError(w, h.log, "Failed to send reply", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "message": "Reply sent successfully", "data": msg})
}

// AgentTours is the agent inbox: every tour with its message counts.
func (h *MessageHandler) AgentTours(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	tours, _, err := h.tours.List(r.Context(), models.TourQuery{Agent: &user.ID})
	if err != nil {
		writeServerError(w, h.log, "Failed to get tours", err)
		return
	}
	threads := make([]models.TourThread, 0, len(tours))
	for _, t := range tours {
		total, unread, err := h.messages.Counts(r.Context(), t.ID)
		if err != nil {
			writeServerError(w, h.log, "Failed to get tours", err)
			return
		}
		threads = append(threads, models.TourThread{Tour: t, Total: total, Unread: unread})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "tours": threads})
}

func (h *MessageHandler) AgentTourMessages(w http.ResponseWriter, r *http.Request) {
	tour, ok := ownTour(w, r, h.tours, h.log)
	if !ok {
		return
	}
	listing, err := h.tours.Listing(r.Context(), tour.ID)
	if err != nil {
		writeServiceError(w, h.log, err, "Tour not found", "Failed to get messages")
		return
	}
	h.writeThread(w, r, listing)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	tour, ok := ownTour(w, r, h.tours, h.log)
	if !ok {
		return
	}
	n, err := h.messages.MarkRead(r.Context(), tour.ID)
	if err != nil {
		writeServerError(w, h.log, "Failed to mark messages as read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Messages marked as read", "updated": n})
}

func (h *MessageHandler) writeThread(w http.ResponseWriter, r *http.Request, tour *models.TourListing) {
	messages, err := h.messages.ByTour(r.Context(), tour.ID)
	if err != nil {
		writeServerError(w, h.log, "Failed to get messages", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "tour": tour, "messages": messages})
}
