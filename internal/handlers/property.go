package handlers

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/auth"
	"github.com/markjakearzadon/realestate-gobackend/internal/models"
	"github.com/markjakearzadon/realestate-gobackend/internal/services"
)

const maxImagesPerRequest = 5

type PropertyHandler struct {
	properties PropertyStore
	images     ImageStore
	log        *zap.SugaredLogger
	now        func() time.Time
}

func NewPropertyHandler(d *Dependencies) *PropertyHandler {
	return &PropertyHandler{properties: d.Properties, images: d.Images, log: d.Log, now: d.Now}
}

// publicQuery is the base for every anonymous listing.
func publicQuery() models.PropertyQuery {
	return models.PropertyQuery{ActiveOnly: true, Statuses: models.PublicStatuses, Limit: services.DefaultListLimit}
}

func (h *PropertyHandler) list(w http.ResponseWriter, r *http.Request, q models.PropertyQuery) {
	listings, err := h.properties.List(r.Context(), q)
	if err != nil {
		writeServerError(w, h.log, "Failed to fetch properties", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "count": len(listings), "properties": listings})
}

func (h *PropertyHandler) All(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, publicQuery())
}

func (h *PropertyHandler) Featured(w http.ResponseWriter, r *http.Request) {
	limit := int64(services.DefaultListLimit)
	if l, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64); err == nil && l > 0 && l < limit {
		limit = l
	}
	listings, err := h.properties.Featured(r.Context(), h.now(), limit)
	if err != nil {
		writeServerError(w, h.log, "Failed to fetch featured properties", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "count": len(listings), "properties": listings})
}

func (h *PropertyHandler) Search(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	q := publicQuery()
	q.City = strings.TrimSpace(v.Get("city"))
	q.Keyword = strings.TrimSpace(v.Get("keyword"))
	if t := v.Get("type"); t != "" {
		if !models.ValidPropertyType(t) {
			writeError(w, http.StatusBadRequest, "Invalid property type")
			return
		}
		q.PropertyType = t
	}
	if f, ok := queryFloat(v, "minPrice"); ok {
		q.MinPrice = &f
	}
	if f, ok := queryFloat(v, "maxPrice"); ok {
		q.MaxPrice = &f
	}
	q.MinBedrooms = queryInt(v, "bedrooms")
	q.MinBathrooms = queryInt(v, "bathrooms")
	q.MinYearBuilt = queryInt(v, "yearBuilt")
	if f, ok := queryFloat(v, "area"); ok {
		q.MinArea = f
	}
	if a := v.Get("amenities"); a != "" {
		for _, name := range strings.Split(a, ",") {
			name = strings.TrimSpace(name)
			if !validAmenity(name) {
				writeError(w, http.StatusBadRequest, "Unknown amenity: "+name)
				return
			}
			q.Amenities = append(q.Amenities, name)
		}
	}
	h.list(w, r, q)
}

func (h *PropertyHandler) ByType(w http.ResponseWriter, r *http.Request) {
	t := mux.Vars(r)["type"]
	if !models.ValidPropertyType(t) {
		writeError(w, http.StatusBadRequest, "Invalid property type")
		return
	}
	q := publicQuery()
	q.PropertyType = t
	h.list(w, r, q)
}

func (h *PropertyHandler) ByCity(w http.ResponseWriter, r *http.Request) {
	q := publicQuery()
	q.City = mux.Vars(r)["city"]
	h.list(w, r, q)
}

func (h *PropertyHandler) ByStatus(w http.ResponseWriter, r *http.Request) {
	status := mux.Vars(r)["status"]
	if !models.PublicStatus(status) {
		writeError(w, http.StatusBadRequest, "Status must be available or rented")
		return
	}
	q := publicQuery()
	q.Statuses = []string{status}
	h.list(w, r, q)
}

func (h *PropertyHandler) TypeCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.properties.TypeCounts(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		writeServerError(w, h.log, "Failed to fetch type counts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "counts": counts})
}

func (h *PropertyHandler) CityCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.properties.CityCounts(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		writeServerError(w, h.log, "Failed to fetch city counts", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "counts": counts})
}

func (h *PropertyHandler) Compare(w http.ResponseWriter, r *http.Request) {
	raw := strings.Split(r.URL.Query().Get("ids"), ",")
	var ids []primitive.ObjectID
	for _, s := range raw {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid property ID: "+s)
			return
		}
		ids = append(ids, id)
	}
	if len(ids) < 2 {
		writeError(w, http.StatusBadRequest, "At least two property IDs are required to compare")
		return
	}
	q := publicQuery()
	q.IDs = ids
	listings, err := h.properties.List(r.Context(), q)
	if err != nil {
		writeServerError(w, h.log, "Failed to compare properties", err)
		return
	}
	if len(listings) < 2 {
		writeError(w, http.StatusNotFound, "Not enough properties found to compare")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "count": len(listings), "properties": listings})
}

func (h *PropertyHandler) PublicByID(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id", "property")
	if !ok {
		return
	}
	listing, err := h.properties.Listing(r.Context(), id, true)
	if err != nil {
		writeServiceError(w, h.log, err, "Property not found", "Failed to fetch property")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "property": listing})
}

func (h *PropertyHandler) MyProperties(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	pageNum, limit, skip := page(r, 10)
	q := models.PropertyQuery{Agent: &user.ID, Skip: skip, Limit: limit}
	if s := r.URL.Query().Get("status"); s != "" {
		if !models.ValidPropertyStatus(s) {
			writeError(w, http.StatusBadRequest, "Invalid status")
			return
		}
		q.Statuses = []string{s}
	}
	if t := r.URL.Query().Get("type"); t != "" {
		if !models.ValidPropertyType(t) {
			writeError(w, http.StatusBadRequest, "Invalid property type")
			return
		}
		q.PropertyType = t
	}

	listings, err := h.properties.List(r.Context(), q)
	if err != nil {
		writeServerError(w, h.log, "Failed to fetch properties", err)
		return
	}
	total, err := h.properties.Count(r.Context(), q)
	if err != nil {
		writeServerError(w, h.log, "Failed to fetch properties", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"properties": listings,
		"pagination": pagination(pageNum, limit, total),
	})
}

func (h *PropertyHandler) Stats(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	stats, err := h.properties.AgentStats(r.Context(), user.ID)
	if err != nil {
		writeServerError(w, h.log, "Failed to fetch property stats", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stats": stats})
}

type createPropertyRequest struct {
	Title        string            `json:"title" validate:"required"`
	Description  string            `json:"description" validate:"required"`
	Price        *float64          `json:"price" validate:"required,gte=0"`
	PropertyType string            `json:"propertyType" validate:"required,oneof=house apartment office townhouse villa"`
	Status       string            `json:"status" validate:"omitempty,oneof=available sold pending rented"`
	Location     *models.Location  `json:"location" validate:"required"`
	Features     *models.Features  `json:"features"`
	Amenities    *models.Amenities `json:"amenities"`
}

type updatePropertyRequest struct {
	Title        *string           `json:"title" validate:"omitempty,min=1"`
	Description  *string           `json:"description" validate:"omitempty,min=1"`
	Price        *float64          `json:"price" validate:"omitempty,gte=0"`
	PropertyType string            `json:"propertyType" validate:"omitempty,oneof=house apartment office townhouse villa"`
	Status       string            `json:"status" validate:"omitempty,oneof=available sold pending rented"`
	Location     *models.Location  `json:"location"`
	Features     *models.Features  `json:"features"`
	Amenities    *models.Amenities `json:"amenities"`
	DeleteImages []string          `json:"deleteImages"`
}

// structured form fields arrive as JSON strings in multipart bodies.
var propertyJSONFields = map[string]bool{
	"price": true, "location": true, "features": true, "amenities": true, "deleteImages": true,
}

// readPropertyBody decodes a JSON or multipart property body into dst and
// returns any uploaded images. It writes the error response itself.
func readPropertyBody(w http.ResponseWriter, r *http.Request, dst interface{}) ([]*multipart.FileHeader, bool) {
	if !isMultipart(r) {
		return nil, decodeJSON(w, r, dst)
	}
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return nil, false
	}
	doc, err := formJSON(r.MultipartForm.Value)
	if err != nil || json.Unmarshal(doc, dst) != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data")
		return nil, false
	}
	files := r.MultipartForm.File["images"]
	if len(files) > maxImagesPerRequest {
		writeError(w, http.StatusBadRequest, "Maximum 5 images allowed")
		return nil, false
	}
	return files, true
}

func formJSON(values url.Values) ([]byte, error) {
	doc := map[string]json.RawMessage{}
	for key, vals := range values {
		if len(vals) == 0 || vals[0] == "" {
			continue
		}
		if propertyJSONFields[key] {
			if !json.Valid([]byte(vals[0])) {
				return nil, fmt.Errorf("field %s is not valid JSON", key)
			}
			doc[key] = json.RawMessage(vals[0])
			continue
		}
		b, err := json.Marshal(vals[0])
		if err != nil {
			return nil, err
		}
		doc[key] = b
	}
	return json.Marshal(doc)
}

func (h *PropertyHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	var req createPropertyRequest
	files, ok := readPropertyBody(w, r, &req)
	if !ok || !validBody(w, &req) {
		return
	}

	p := &models.Property{
		Title:        req.Title,
		Description:  req.Description,
		Price:        *req.Price,
		PropertyType: req.PropertyType,
		Status:       req.Status,
		Location:     *req.Location,
		Agent:        user.ID,
		IsActive:     true,
	}
	if p.Status == "" {
		p.Status = models.StatusAvailable
	}
	if req.Features != nil {
		p.Features = *req.Features
	}
	if req.Amenities != nil {
		p.Amenities = *req.Amenities
	}
	if len(files) > 0 {
		names, err := h.images.Save(files)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		p.Images = names
	}

	if err := h.properties.Create(r.Context(), p); err != nil {
		h.images.Remove(p.Images...)
		writeServerError(w, h.log, "Failed to create property", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "message": "Property created successfully", "property": p})
}

// owned loads the property at {id} and checks the caller owns it.
func (h *PropertyHandler) owned(w http.ResponseWriter, r *http.Request) (*models.Property, bool) {
	id, ok := pathID(w, r, "id", "property")
	if !ok {
		return nil, false
	}
	p, err := h.properties.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Property not found", "Failed to fetch property")
		return nil, false
	}
	user, _ := auth.UserFromContext(r.Context())
	if !canManage(user, p.Agent) {
		writeError(w, http.StatusForbidden, "You do not have permission to manage this property")
		return nil, false
	}
	return p, true
}

func (h *PropertyHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.owned(w, r)
	if !ok {
		return
	}
	listing, err := h.properties.Listing(r.Context(), p.ID, false)
	if err != nil {
		writeServiceError(w, h.log, err, "Property not found", "Failed to fetch property")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "property": listing})
}

func (h *PropertyHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := h.owned(w, r)
	if !ok {
		return
	}
	var req updatePropertyRequest
	files, ok := readPropertyBody(w, r, &req)
	if !ok || !validBody(w, &req) {
		return
	}

	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.PropertyType != "" {
		p.PropertyType = req.PropertyType
	}
	if req.Status != "" {
		p.Status = req.Status
	}
	if req.Location != nil {
		p.Location = *req.Location
	}
	if req.Features != nil {
		p.Features = *req.Features
	}
	if req.Amenities != nil {
		p.Amenities = *req.Amenities
	}

	var removed []string
	if len(req.DeleteImages) > 0 {
		drop := map[string]bool{}
		for _, name := range req.DeleteImages {
			drop[name] = true
		}
		kept := make([]string, 0, len(p.Images))
		for _, name := range p.Images {
			if drop[name] {
				removed = append(removed, name)
				continue
			}
			kept = append(kept, name)
		}
		p.Images = kept
	}
	var added []string
	if len(files) > 0 {
		names, err := h.images.Save(files)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		added = names
		p.Images = append(p.Images, names...)
	}

	if err := h.properties.Save(r.Context(), p); err != nil {
		h.images.Remove(added...)
		writeServiceError(w, h.log, err, "Property not found", "Failed to update property")
		return
	}
	if err := h.images.Remove(removed...); err != nil {
		h.log.Warnf("Failed to remove images for property %s: %v", p.ID.Hex(), err)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Property updated successfully", "property": p})
}

// Delete soft-deletes by default; ?hardDelete=true removes the document and its images.
func (h *PropertyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := h.owned(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("hardDelete") == "true" {
		if err := h.properties.Delete(r.Context(), p.ID); err != nil {
			writeServiceError(w, h.log, err, "Property not found", "Failed to delete property")
			return
		}
		if err := h.images.Remove(p.Images...); err != nil {
			h.log.Warnf("Failed to remove images for property %s: %v", p.ID.Hex(), err)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Property permanently deleted"})
		return
	}

	if err := h.properties.SetActive(r.Context(), p.ID, false); err != nil {
		writeServiceError(w, h.log, err, "Property not found", "Failed to delete property")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Property deactivated successfully"})
}

func (h *PropertyHandler) Restore(w http.ResponseWriter, r *http.Request) {
	p, ok := h.owned(w, r)
	if !ok {
		return
	}
	if p.IsActive {
		writeError(w, http.StatusBadRequest, "Property is already active")
		return
	}
	if err := h.properties.SetActive(r.Context(), p.ID, true); err != nil {
		writeServiceError(w, h.log, err, "Property not found", "Failed to restore property")
		return
	}
	p.IsActive = true
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": "Property restored successfully", "property": p})
}

// canManage reports whether user may mutate a resource owned by agent.
func canManage(user *models.User, agent primitive.ObjectID) bool {
	return user != nil && (user.Role == models.RoleAdmin || user.ID == agent)
}

func validAmenity(name string) bool {
	for _, k := range models.AmenityKeys {
		if k == name {
			return true
		}
	}
	return false
}

func queryFloat(v url.Values, key string) (float64, bool) {
	f, err := strconv.ParseFloat(v.Get(key), 64)
	return f, err == nil
}

func queryInt(v url.Values, key string) int {
	n, _ := strconv.Atoi(v.Get(key))
	return n
}
