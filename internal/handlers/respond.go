package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/services"
)

const maxJSONBody = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServerError logs err and surfaces it as the 500 details.
func writeServerError(w http.ResponseWriter, log *zap.SugaredLogger, msg string, err error) {
	log.Errorf("%s: %v", msg, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg, "details": err.Error()})
}

// writeServiceError maps the service sentinels onto 404/400 and anything else onto 500.
func writeServiceError(w http.ResponseWriter, log *zap.SugaredLogger, err error, notFound, failed string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, services.ErrDuplicate):
		writeError(w, http.StatusBadRequest, "A record with this email already exists")
	default:
		writeServerError(w, log, failed, err)
	}
}

// decodeJSON writes a 400 and returns false when the body is not valid JSON for dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// validBody writes a 400 with the first validation failure and returns false.
func validBody(w http.ResponseWriter, v interface{}) bool {
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

// validationMessage renders the first validator error as a sentence.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	}
	return fmt.Sprintf("%s is invalid", field)
}

// pathID reads an ObjectID path variable; it writes a 400 and returns false when malformed.
func pathID(w http.ResponseWriter, r *http.Request, key, what string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)[key])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid "+what+" ID")
		return primitive.NilObjectID, false
	}
	return id, true
}

// page reads ?page and ?limit with defaults and an upper bound.
func page(r *http.Request, defLimit int64) (pageNum, limit, skip int64) {
	pageNum, limit = 1, defLimit
	if p, err := strconv.ParseInt(r.URL.Query().Get("page"), 10, 64); err == nil && p > 0 {
		pageNum = p
	}
	if l, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64); err == nil && l > 0 {
		limit = l
	}
	if limit > services.DefaultListLimit {
		limit = services.DefaultListLimit
	}
	return pageNum, limit, (pageNum - 1) * limit
}

func pagination(pageNum, limit, total int64) map[string]int64 {
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	return map[string]int64{"page": pageNum, "limit": limit, "total": total, "pages": pages}
}
