package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/models"
	"github.com/markjakearzadon/realestate-gobackend/internal/subscription"
)

type AdminHandler struct {
	users      UserStore
	properties PropertyStore
	images     ImageStore
	log        *zap.SugaredLogger
	now        func() time.Time
}

func NewAdminHandler(d *Dependencies) *AdminHandler {
	return &AdminHandler{users: d.Users, properties: d.Properties, images: d.Images, log: d.Log, now: d.Now}
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.users.Dashboard(r.Context())
	if err != nil {
		writeServerError(w, h.log, "Failed to fetch dashboard stats", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stats": stats})
}

func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	roles := []string{models.RoleUser, models.RoleAgent}
	if role := r.URL.Query().Get("role"); role == models.RoleUser || role == models.RoleAgent {
		roles = []string{role}
	}
	users, err := h.users.ListByRole(r.Context(), roles...)
	if err != nil {
		writeServerError(w, h.log, "Failed to fetch users", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "count": len(users), "users": users})
}

func (h *AdminHandler) User(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "user")
	if !ok {
		return
	}
	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "User not found", "Failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "user": user})
}

type adminUserRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email" validate:"omitempty,email"`
	Role       string `json:"role" validate:"omitempty,oneof=user agent"`
	IsApproved *bool  `json:"isApproved"`
}

func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "user")
	if !ok {
		return
	}
	var req adminUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !validBody(w, &req) {
		return
	}

	target, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "User not found", "Failed to update user")
		return
	}
	if target.Role == models.RoleAdmin {
		writeError(w, http.StatusForbidden, "Cannot modify admin users")
		return
	}

	patch := models.UserPatch{IsApproved: req.IsApproved}
	if req.Name != "" {
		patch.Name = &req.Name
	}
	if req.Email != "" {
		patch.Email = &req.Email
	}
	if req.Role != "" {
		patch.Role = &req.Role
	}
	updated, err := h.users.Update(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, h.log, err, "User not found", "Failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "User updated successfully", "user": updated})
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "user")
	if !ok {
		return
	}
	target, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "User not found", "Failed to delete user")
		return
	}
	if target.Role == models.RoleAdmin {
		writeError(w, http.StatusForbidden, "Cannot delete admin users")
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.log, err, "User not found", "Failed to delete user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "User deleted successfully"})
}

func (h *AdminHandler) ApproveAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "user")
	if !ok {
		return
	}
	target, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "User not found", "Failed to approve agent")
		return
	}
	if target.Role != models.RoleAgent {
		writeError(w, http.StatusBadRequest, "User is not an agent")
		return
	}
	if target.IsApproved {
		writeError(w, http.StatusBadRequest, "Agent is already approved")
		return
	}

	approved := true
	updated, err := h.users.Update(r.Context(), id, models.UserPatch{IsApproved: &approved})
	if err != nil {
		writeServiceError(w, h.log, err, "User not found", "Failed to approve agent")
		return
	}
	h.log.Infof("Agent %s approved", updated.Email)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Agent approved successfully", "user": updated})
}

func (h *AdminHandler) Properties(w http.ResponseWriter, r *http.Request) {
	q := models.PropertyQuery{Statuses: models.PublicStatuses}
	listings, err := h.properties.List(r.Context(), q)
	if err != nil {
		writeServerError(w, h.log, "Failed to fetch properties", err)
		return
	}
	now := h.now()
	type row struct {
		models.PropertyListing
		AgentSubscribed bool `json:"agentHasActiveSubscription"`
	}
	rows := make([]row, 0, len(listings))
	for _, l := range listings {
		active := false
		if l.AgentRef != nil {
			active = subscription.Active(l.AgentRef.HasSubscription, l.AgentRef.SubscriptionExpiry, now)
		}
		rows = append(rows, row{PropertyListing: l, AgentSubscribed: active})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "count": len(rows), "properties": rows})
}

func (h *AdminHandler) DeleteProperty(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "property")
	if !ok {
		return
	}
	p, err := h.properties.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Property not found", "Failed to delete property")
		return
	}
	if err := h.properties.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.log, err, "Property not found", "Failed to delete property")
		return
	}
	if err := h.images.Remove(p.Images...); err != nil {
		h.log.Warnf("Failed to remove images for property %s: %v", id.Hex(), err)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Property deleted successfully"})
}

// ToggleFeatured sets isFeatured. Turning it on requires the owning agent to
// hold an active subscription at this moment.
func (h *AdminHandler) ToggleFeatured(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "property")
	if !ok {
		return
	}
	var req struct {
		IsFeatured *bool `json:"isFeatured" validate:"required"`
	}
	if !decodeJSON(w, r, &req) || !validBody(w, &req) {
		return
	}

	p, err := h.properties.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Property not found", "Failed to update property")
		return
	}
	if *req.IsFeatured {
		agent, err := h.users.GetByID(r.Context(), p.Agent)
		if err != nil {
			writeServiceError(w, h.log, err, "Property agent not found", "Failed to update property")
			return
		}
		if !subscription.UserActive(agent, h.now()) {
			writeError(w, http.StatusForbidden, "Agent does not have an active subscription")
			return
		}
	}

	if err := h.properties.SetFeatured(r.Context(), id, *req.IsFeatured); err != nil {
		writeServiceError(w, h.log, err, "Property not found", "Failed to update property")
		return
	}
	p.IsFeatured = *req.IsFeatured
	msg := "Property removed from featured"
	if p.IsFeatured {
		msg = "Property marked as featured"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": msg, "property": p})
}
