package handlers

import (
	"net/http"
	"time"

	gorillahandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/auth"
	"github.com/markjakearzadon/realestate-gobackend/internal/metrics"
	"github.com/markjakearzadon/realestate-gobackend/internal/payments"
)

// Dependencies is everything the HTTP layer needs. Now defaults to time.Now.
type Dependencies struct {
	Users      UserStore
	Properties PropertyStore
	Tours      TourStore
	Messages   MessageStore
	Reviews    ReviewStore

	Tokens  *auth.TokenManager
	Refresh auth.RefreshStore
	Mail    Notifier
	Images  ImageStore
	Gateway payments.Gateway
	Events  EventApplier
	Metrics *metrics.Metrics
	Log     *zap.SugaredLogger

	FrontendURL   string
	WebhookSecret string
	Now           func() time.Time
}

const objectID = "{id:[0-9a-fA-F]{24}}"

func NewRouter(d *Dependencies) http.Handler {
	if d.Now == nil {
		d.Now = time.Now
	}
	users := NewUserHandler(d)
	admin := NewAdminHandler(d)
	properties := NewPropertyHandler(d)
	tours := NewTourHandler(d)
	messages := NewMessageHandler(d)
	reviews := NewReviewHandler(d)
	subs := NewSubscriptionHandler(d)

	authn := auth.NewMiddleware(d.Tokens, d.Users, d.Log)
	authed := func(h http.HandlerFunc) http.Handler { return authn.Authenticate(h) }
	adminOnly := func(h http.HandlerFunc) http.Handler { return authn.Authenticate(auth.RequireAdmin(h)) }
	agentOnly := func(h http.HandlerFunc) http.Handler { return authn.Authenticate(auth.RequireApprovedAgent(h)) }

	router := mux.NewRouter()
	router.Use(requestLogger(d.Log))
	if d.Metrics != nil {
		router.Use(d.Metrics.Middleware)
		router.Handle("/metrics", d.Metrics.Handler()).Methods("GET")
	}
	router.Use(securityHeaders)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET", "HEAD")
	router.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", d.Images.Handler())).Methods("GET", "HEAD")

	api := router.PathPrefix("/api").Subrouter()

	u := api.PathPrefix("/users").Subrouter()
	u.HandleFunc("/register", users.Register).Methods("POST")
	u.HandleFunc("/login", users.Login).Methods("POST")
	u.HandleFunc("/refresh", users.Refresh).Methods("POST")
	u.HandleFunc("/logout", users.Logout).Methods("POST")
	u.Handle("/profile", authed(users.Profile)).Methods("GET")
	u.Handle("/profile/update", authed(users.UpdateProfile)).Methods("PUT")
	u.HandleFunc("/public/agents", users.PublicAgents).Methods("GET")
	u.Handle("/favourites", authed(users.Favourites)).Methods("GET")
	u.Handle("/favourites/add", authed(users.AddFavourite)).Methods("POST")
	u.Handle("/favourites/remove", authed(users.RemoveFavourite)).Methods("POST")
	u.HandleFunc("/forgot-password", users.ForgotPassword).Methods("POST")
	u.HandleFunc("/reset-password/{token}", users.ResetPassword).Methods("POST")
	u.Handle("/approve/"+objectID, adminOnly(admin.ApproveAgent)).Methods("PUT")

	a := api.PathPrefix("/admin").Subrouter()
	a.Handle("/dashboard", adminOnly(admin.Dashboard)).Methods("GET")
	a.Handle("/users", adminOnly(admin.Users)).Methods("GET")
	a.Handle("/users/"+objectID, adminOnly(admin.User)).Methods("GET")
	a.Handle("/users/"+objectID, adminOnly(admin.UpdateUser)).Methods("PUT")
	a.Handle("/users/"+objectID, adminOnly(admin.DeleteUser)).Methods("DELETE")
	a.Handle("/approve/"+objectID, adminOnly(admin.ApproveAgent)).Methods("PUT")
	a.Handle("/properties", adminOnly(admin.Properties)).Methods("GET")
	a.Handle("/properties/"+objectID, adminOnly(admin.DeleteProperty)).Methods("DELETE")
	a.Handle("/properties/"+objectID+"/feature", adminOnly(admin.ToggleFeatured)).Methods("PUT")

	// Fixed paths first; /{id} must not shadow them.
	p := api.PathPrefix("/properties").Subrouter()
	p.HandleFunc("/all", properties.All).Methods("GET")
	p.HandleFunc("/featured", properties.Featured).Methods("GET")
	p.HandleFunc("/search", properties.Search).Methods("GET")
	p.HandleFunc("/type-counts", properties.TypeCounts).Methods("GET")
	p.HandleFunc("/type/{type}", properties.ByType).Methods("GET")
	p.HandleFunc("/city-counts", properties.CityCounts).Methods("GET")
	p.HandleFunc("/city/{city}", properties.ByCity).Methods("GET")
	p.HandleFunc("/status/{status}", properties.ByStatus).Methods("GET")
	p.HandleFunc("/compare", properties.Compare).Methods("GET")
	p.HandleFunc("/public/{id}", properties.PublicByID).Methods("GET")
	p.Handle("/my-properties", agentOnly(properties.MyProperties)).Methods("GET")
	p.Handle("/stats", agentOnly(properties.Stats)).Methods("GET")
	p.Handle("", agentOnly(properties.Create)).Methods("POST")
	p.Handle("/", agentOnly(properties.Create)).Methods("POST")
	p.Handle("/"+objectID, agentOnly(properties.Get)).Methods("GET")
	p.Handle("/"+objectID, agentOnly(properties.Update)).Methods("PUT")
	p.Handle("/"+objectID, agentOnly(properties.Delete)).Methods("DELETE")
	p.Handle("/"+objectID+"/restore", agentOnly(properties.Restore)).Methods("PATCH")

	t := api.PathPrefix("/tours").Subrouter()
	t.HandleFunc("/properties", tours.AvailableProperties).Methods("GET")
	t.HandleFunc("/properties/{id}", tours.AvailableProperty).Methods("GET")
	t.HandleFunc("/schedule", tours.Schedule).Methods("POST")
	t.Handle("/my-tours", agentOnly(tours.MyTours)).Methods("GET")
	t.Handle("/my-tours/stats", agentOnly(tours.MyTourStats)).Methods("GET")
	t.Handle("/my-tours/"+objectID, agentOnly(tours.MyTour)).Methods("GET")
	t.Handle("/my-tours/"+objectID+"/status", agentOnly(tours.UpdateStatus)).Methods("PUT")
	t.Handle("/all", adminOnly(tours.AllTours)).Methods("GET")

	m := api.PathPrefix("/messages").Subrouter()
	m.HandleFunc("/user/send", messages.UserSend).Methods("POST")
	m.HandleFunc("/user/tour/{tourId}", messages.UserTourMessages).Methods("GET")
	m.HandleFunc("/user/tours", messages.UserTours).Methods("GET")
	m.Handle("/agent/reply", agentOnly(messages.AgentReply)).Methods("POST")
	m.Handle("/agent/tours", agentOnly(messages.AgentTours)).Methods("GET")
	m.Handle("/agent/tour/{tourId}", agentOnly(messages.AgentTourMessages)).Methods("GET")
	m.Handle("/agent/tour/{tourId}/read", agentOnly(messages.MarkRead)).Methods("PUT")

	rv := api.PathPrefix("/reviews").Subrouter()
	rv.HandleFunc("/add", reviews.Add).Methods("POST")
	rv.HandleFunc("/property/{propertyId}", reviews.ByProperty).Methods("GET")
	rv.Handle("/my-reviews", agentOnly(reviews.MyReviews)).Methods("GET")

	api.Handle("/subscription/create-checkout-session", agentOnly(subs.CreateCheckoutSession)).Methods("POST")
	api.HandleFunc("/stripe/webhook", subs.Webhook).Methods("POST")

	cors := gorillahandlers.CORS(
		gorillahandlers.AllowedOrigins([]string{d.FrontendURL}),
		gorillahandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		gorillahandlers.AllowedHeaders([]string{"Content-Type", "Authorization", requestIDHeader}),
		gorillahandlers.ExposedHeaders([]string{requestIDHeader}),
		gorillahandlers.AllowCredentials(),
	)
	recovery := gorillahandlers.RecoveryHandler(
		gorillahandlers.RecoveryLogger(recoveryLogger{d.Log}),
		gorillahandlers.PrintRecoveryStack(true),
	)
	return recovery(cors(router))
}

type recoveryLogger struct{ log *zap.SugaredLogger }

func (l recoveryLogger) Println(v ...interface{}) { l.log.Error(v...) }
