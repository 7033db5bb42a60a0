package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/auth"
	"github.com/markjakearzadon/realestate-gobackend/internal/mail"
	"github.com/markjakearzadon/realestate-gobackend/internal/models"
	"github.com/markjakearzadon/realestate-gobackend/internal/services"
)

const maxMultipartMemory = 32 << 20

type UserHandler struct {
	users       UserStore
	properties  PropertyStore
	tokens      *auth.TokenManager
	refresh     auth.RefreshStore
	mail        Notifier
	images      ImageStore
	log         *zap.SugaredLogger
	frontendURL string
}

func NewUserHandler(d *Dependencies) *UserHandler {
	return &UserHandler{
		users:       d.Users,
		properties:  d.Properties,
		tokens:      d.Tokens,
		refresh:     d.Refresh,
		mail:        d.Mail,
		images:      d.Images,
		log:         d.Log,
		frontendURL: strings.TrimRight(d.FrontendURL, "/"),
	}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=user agent"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	var files []*multipart.FileHeader
	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid form data")
			return
		}
		req = registerRequest{
			Name:     r.FormValue("name"),
			Email:    r.FormValue("email"),
			Password: r.FormValue("password"),
			Role:     r.FormValue("role"),
		}
		files = r.MultipartForm.File["profileImage"]
	} else if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !validBody(w, &req) {
		return
	}
	if req.Role == "" {
		req.Role = models.RoleUser
	}

	if _, err := h.users.GetByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusBadRequest, "User already exists with this email")
		return
	} else if !errors.Is(err, services.ErrNotFound) {
		writeServerError(w, h.log, "Failed to register user", err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeServerError(w, h.log, "Failed to register user", err)
		return
	}
	user := &models.User{
		Name:       req.Name,
		Email:      req.Email,
		HPassword:  hash,
		Role:       req.Role,
		IsApproved: req.Role != models.RoleAgent,
	}
	if len(files) > 0 {
		names, err := h.images.Save(files[:1])
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		user.ProfileImage = names[0]
	}

	if err := h.users.Create(r.Context(), user); err != nil {
		h.images.Remove(user.ProfileImage)
		if errors.Is(err, services.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "User already exists with this email")
			return
		}
		writeServerError(w, h.log, "Failed to register user", err)
		return
	}

	h.mail.Go(mail.Welcome(user.Name, user.Email, user.Role))

	msg := "User registered successfully"
	if user.Role == models.RoleAgent {
		msg = "Agent registered successfully. Your account is pending admin approval."
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"message": msg, "user": user})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !validBody(w, &req) {
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		writeServerError(w, h.log, "Failed to log in", err)
		return
	}
	if user == nil || !auth.CheckPassword(user.HPassword, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if user.Role == models.RoleAgent && !user.IsApproved {
		writeError(w, http.StatusForbidden, "Agent account not yet approved")
		return
	}

	access, refresh, err := h.issueTokens(r, user)
	if err != nil {
		writeServerError(w, h.log, "Failed to log in", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Login successful",
		"token":        access,
		"refreshToken": refresh,
		"user":         user,
	})
}

func (h *UserHandler) issueTokens(r *http.Request, user *models.User) (string, string, error) {
	access, err := h.tokens.IssueAccess(user)
	if err != nil {
		return "", "", err
	}
	refresh, err := h.tokens.IssueRefresh(user)
	if err != nil {
		return "", "", err
	}
	if err := h.refresh.Save(r.Context(), refresh, user.ID.Hex(), h.tokens.RefreshTTL()); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (h *UserHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) || !validBody(w, &req) {
		return
	}

	claims, err := h.tokens.Parse(req.RefreshToken, auth.PurposeRefresh)
	if err != nil {
		writeError(w, http.StatusForbidden, "Invalid refresh token")
		return
	}
	owner, err := h.refresh.Consume(r.Context(), req.RefreshToken)
	if errors.Is(err, auth.ErrRefreshNotFound) || (err == nil && owner != claims.UserID) {
		writeError(w, http.StatusForbidden, "Invalid refresh token")
		return
	}
	if err != nil {
		writeServerError(w, h.log, "Failed to refresh token", err)
		return
	}

	user, err := h.users.GetByID(r.Context(), claims.ObjectID())
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusForbidden, "Invalid refresh token")
			return
		}
		writeServerError(w, h.log, "Failed to refresh token", err)
		return
	}
	access, refresh, err := h.issueTokens(r, user)
	if err != nil {
		writeServerError(w, h.log, "Failed to refresh token", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": access, "refreshToken": refresh})
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if req.RefreshToken != "" {
		if err := h.refresh.Revoke(r.Context(), req.RefreshToken); err != nil {
			writeServerError(w, h.log, "Failed to log out", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, user)
}

type profileRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"omitempty,min=8"`
}

// UpdateProfile edits the caller's own name, email, password and picture.
// Role and approval are not editable here.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req profileRequest
	var files []*multipart.FileHeader
	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid form data")
			return
		}
		req = profileRequest{Name: r.FormValue("name"), Email: r.FormValue("email"), Password: r.FormValue("password")}
		files = r.MultipartForm.File["profileImage"]
	} else if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !validBody(w, &req) {
		return
	}

	var patch models.UserPatch
	if req.Name != "" {
		patch.Name = &req.Name
	}
	if req.Email != "" && req.Email != user.Email {
		patch.Email = &req.Email
	}
	if req.Password != "" {
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			writeServerError(w, h.log, "Failed to update profile", err)
			return
		}
		patch.HPassword = &hash
	}
	if len(files) > 0 {
		names, err := h.images.Save(files[:1])
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.ProfileImage = &names[0]
	}

	updated, err := h.users.Update(r.Context(), user.ID, patch)
	if err != nil {
		if patch.ProfileImage != nil {
			h.images.Remove(*patch.ProfileImage)
		}
		writeServiceError(w, h.log, err, "User not found", "Failed to update profile")
		return
	}
	if patch.ProfileImage != nil && user.ProfileImage != "" {
		if err := h.images.Remove(user.ProfileImage); err != nil {
			h.log.Warnf("Failed to remove old profile image %s: %v", user.ProfileImage, err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Profile updated successfully", "user": updated})
}

func (h *UserHandler) PublicAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.users.PublicAgents(r.Context())
	if err != nil {
		writeServerError(w, h.log, "Failed to fetch agents", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "count": len(agents), "agents": agents})
}

type favouriteRequest struct {
	PropertyID string `json:"propertyId" validate:"required"`
}

func (h *UserHandler) favouriteTarget(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	var req favouriteRequest
	if !decodeJSON(w, r, &req) || !validBody(w, &req) {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(req.PropertyID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid property ID")
		return primitive.NilObjectID, false
	}
	return id, true
}

func (h *UserHandler) AddFavourite(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	propertyID, ok := h.favouriteTarget(w, r)
	if !ok {
		return
	}
	if user.HasFavourite(propertyID) {
		writeError(w, http.StatusBadRequest, "Property already in favourites")
		return
	}
	if _, err := h.properties.Listing(r.Context(), propertyID, true); err != nil {
		writeServiceError(w, h.log, err, "Property not found", "Failed to add favourite")
		return
	}

	updated, err := h.users.AddFavourite(r.Context(), user.ID, propertyID)
	if err != nil {
		writeServiceError(w, h.log, err, "User not found", "Failed to add favourite")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Property added to favourites", "favourites": updated.Favourites})
}

func (h *UserHandler) RemoveFavourite(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	propertyID, ok := h.favouriteTarget(w, r)
	if !ok {
		return
	}

	updated, err := h.users.RemoveFavourite(r.Context(), user.ID, propertyID)
	if err != nil {
		writeServiceError(w, h.log, err, "User not found", "Failed to remove favourite")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Property removed from favourites", "favourites": updated.Favourites})
}

func (h *UserHandler) Favourites(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	if len(user.Favourites) == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{"favourites": []models.PropertyListing{}})
		return
	}
	q := models.PropertyQuery{IDs: user.Favourites, ActiveOnly: true, Limit: int64(len(user.Favourites))}
	listings, err := h.properties.List(r.Context(), q)
	if err != nil {
		writeServerError(w, h.log, "Failed to fetch favourites", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"favourites": listings})
}

func (h *UserHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if !validBody(w, &req) {
		return
	}

	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, h.log, err, "User not found", "Failed to process request")
		return
	}
	token, err := h.tokens.IssueReset(user)
	if err != nil {
		writeServerError(w, h.log, "Failed to process request", err)
		return
	}
	link := h.frontendURL + "/reset-password/" + token
	if err := h.mail.Send(r.Context(), mail.PasswordReset(user.Name, user.Email, link)); err != nil {
		writeServerError(w, h.log, "Failed to send reset email", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset link sent to your email"})
}

func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	claims, err := h.tokens.Parse(mux.Vars(r)["token"], auth.PurposeReset)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	var req struct {
		Password string `json:"password" validate:"required,min=8"`
	}
	if !decodeJSON(w, r, &req) || !validBody(w, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeServerError(w, h.log, "Failed to reset password", err)
		return
	}
	if _, err := h.users.Update(r.Context(), claims.ObjectID(), models.UserPatch{HPassword: &hash}); err != nil {
		writeServiceError(w, h.log, err, "User not found", "Failed to reset password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset successfully"})
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}
