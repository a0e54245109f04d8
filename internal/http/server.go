package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ecocommute/internal/auth"
	"github.com/example/ecocommute/internal/booking"
	"github.com/example/ecocommute/internal/dispatch"
	"github.com/example/ecocommute/internal/location"
	"github.com/example/ecocommute/internal/notify"
	"github.com/example/ecocommute/internal/storage"
)

// Server wires the API surface over the domain services.
type Server struct {
	Rides    storage.RideStore
	Bookings storage.BookingStore
	Booking  *booking.Service
	Notify   *notify.Store
	Picker   *location.Picker
	Auth     auth.Provider
	WSReg    *dispatch.WSRegistry

	logger *slog.Logger
	mux    *mux.Router
}

// Deps collects the collaborators main assembles from config.
type Deps struct {
	Rides    storage.RideStore
	Bookings storage.BookingStore
	Booking  *booking.Service
	Notify   *notify.Store
	Picker   *location.Picker
	Auth     auth.Provider
	Logger   *slog.Logger
}

func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	authp := d.Auth
	if authp == nil {
		authp = auth.HeaderProvider{}
	}
	s := &Server{
		Rides:    d.Rides,
		Bookings: d.Bookings,
		Booking:  d.Booking,
		Notify:   d.Notify,
		Picker:   d.Picker,
		Auth:     authp,
		WSReg:    dispatch.NewWSRegistry(logger),
		logger:   logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()

	// Pump store events into connected websocket sessions for the
	// lifetime of the server.
	events, _ := s.Notify.Subscribe()
	go s.WSReg.Run(events)

	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/rides", s.handleCreateRide).Methods("POST")
	api.HandleFunc("/rides", s.handleListRides).Methods("GET")
	api.HandleFunc("/rides/{id}", s.handleGetRide).Methods("GET")
	api.HandleFunc("/rides/{id}/bookings", s.handleSubmitBooking).Methods("POST")
	api.HandleFunc("/rides/{id}/bookings", s.handleListRideBookings).Methods("GET")
	api.HandleFunc("/bookings/{id}", s.handleGetBooking).Methods("GET")
	api.HandleFunc("/bookings/{id}", s.handleCancelBooking).Methods("DELETE")

	api.HandleFunc("/notifications", s.handleListNotifications).Methods("GET")
	api.HandleFunc("/notifications", s.handleClearNotifications).Methods("DELETE")
	api.HandleFunc("/notifications/{id}", s.handleRemoveNotification).Methods("DELETE")

	api.HandleFunc("/locations/search", s.handleLocationSearch).Methods("GET")
	api.HandleFunc("/locations/reverse", s.handleLocationReverse).Methods("GET")
	api.HandleFunc("/locations/select", s.handleLocationSelect).Methods("POST")
	api.HandleFunc("/locations/bootstrap", s.handleLocationBootstrap).Methods("GET")

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/notifications", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
