package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/ecocommute/internal/booking"
	"github.com/example/ecocommute/internal/geocode"
	"github.com/example/ecocommute/internal/models"
	"github.com/example/ecocommute/internal/storage"
)

// createRideRequest uses pointers for the coordinates so "field absent"
// is distinguishable from a legitimate (0,0).
type createRideRequest struct {
	Driver               string        `json:"driver"`
	StartLocation        *models.Coord `json:"start_location"`
	StartLocationAddress string        `json:"start_location_address"`
	Destination          *models.Coord `json:"destination"`
	DestinationAddress   string        `json:"destination_address"`
	DepartureTime        string        `json:"departure_time"`
	ReturnTime           string        `json:"return_time"`
	Seats                int           `json:"seats"`
	CostPerSeat          string        `json:"cost_per_seat"`
	VehicleType          string        `json:"vehicle_type"`
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.Auth.CurrentUser(r)
	if !ok {
		s.Notify.Add("Please log in to offer a ride", models.SeverityWarning, true)
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createRideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.StartLocation == nil || req.Destination == nil {
		s.Notify.Add("Please select both start location and destination on the map", models.SeverityError, true)
		writeError(w, http.StatusBadRequest, "start location and destination are required")
		return
	}
	if strings.TrimSpace(req.VehicleType) == "" {
		s.Notify.Add("Please specify your vehicle type", models.SeverityError, true)
		writeError(w, http.StatusBadRequest, "vehicle type is required")
		return
	}
	if req.Seats < 1 {
		req.Seats = 1
	}
	driver := strings.TrimSpace(req.Driver)
	if driver == "" {
		driver = profile.DisplayName
	}
	if driver == "" {
		driver = "Anonymous"
	}

	ride := &models.Ride{
		ID:                   uuid.NewString(),
		Driver:               driver,
		DriverEmail:          profile.Email,
		StartLocation:        *req.StartLocation,
		StartLocationAddress: req.StartLocationAddress,
		Destination:          *req.Destination,
		DestinationAddress:   req.DestinationAddress,
		DepartureTime:        req.DepartureTime,
		ReturnTime:           req.ReturnTime,
		SeatsTotal:           req.Seats,
		SeatsAvailable:       req.Seats,
		CostPerSeat:          req.CostPerSeat,
		VehicleType:          req.VehicleType,
		UserID:               profile.UID,
		CreatedAt:            time.Now(),
	}
	if err := s.Rides.CreateRide(ride); err != nil {
		s.logger.Error("ride create failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not save ride")
		return
	}
	s.Notify.Add("Your carpool has been offered successfully!", models.SeveritySuccess, true)
	writeJSON(w, http.StatusCreated, ride)
}

func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request) {
	rides, err := s.Rides.ListRides()
	if err != nil {
		s.logger.Error("ride list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not list rides")
		return
	}
	if near := r.URL.Query().Get("near"); near != "" {
		parts := strings.SplitN(near, ",", 2)
		if len(parts) != 2 {
			writeError(w, http.StatusBadRequest, "near must be lat,lon")
			return
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 != nil || err2 != nil {
			writeError(w, http.StatusBadRequest, "near must be lat,lon")
			return
		}
		limit := 10
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		rides = storage.Nearby(rides, lat, lon, limit)
	}
	if rides == nil {
		rides = []models.Ride{}
	}
	writeJSON(w, http.StatusOK, rides)
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.Rides.GetRide(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "ride not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load ride")
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleSubmitBooking(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.Auth.CurrentUser(r)
	if !ok {
		s.Notify.Add("Please log in to book a ride", models.SeverityWarning, true)
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var draft models.BookingDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	draft.RideID = mux.Vars(r)["id"]
	// Prefill passenger identity from the session profile.
	if strings.TrimSpace(draft.PassengerName) == "" {
		draft.PassengerName = profile.DisplayName
	}
	if strings.TrimSpace(draft.PassengerEmail) == "" {
		draft.PassengerEmail = profile.Email
	}

	b, err := s.Booking.Submit(r.Context(), draft)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrInvalidDraft):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "ride not found")
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, b)
}

// handleListRideBookings backs the driver's dashboard view of requests
// against one of their rides.
func (s *Server) handleListRideBookings(w http.ResponseWriter, r *http.Request) {
	rideID := mux.Vars(r)["id"]
	if _, err := s.Rides.GetRide(rideID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "ride not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load ride")
		return
	}
	list, err := s.Bookings.ListBookingsByRide(rideID)
	if err != nil {
		s.logger.Error("booking list failed", "ride", rideID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not list bookings")
		return
	}
	if list == nil {
		list = []models.Booking{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCancelBooking withdraws a pending request before the driver
// answers. Resolved bookings cannot be withdrawn.
func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.Auth.CurrentUser(r); !ok {
		s.Notify.Add("Please log in to manage your bookings", models.SeverityWarning, true)
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	id := mux.Vars(r)["id"]
	b, err := s.Bookings.GetBooking(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load booking")
		return
	}
	if b.Status != models.BookingPending || !s.Booking.Cancel(id) {
		writeError(w, http.StatusConflict, "booking already resolved")
		return
	}
	s.Notify.Add("Your booking request has been withdrawn", models.SeverityInfo, true)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := s.Bookings.GetBooking(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load booking")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Notify.List())
}

func (s *Server) handleRemoveNotification(w http.ResponseWriter, r *http.Request) {
	s.Notify.Remove(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	s.Notify.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLocationSearch(w http.ResponseWriter, r *http.Request) {
	cands := s.Picker.Search(r.Context(), r.URL.Query().Get("q"))
	if cands == nil {
		cands = []geocode.Candidate{}
	}
	writeJSON(w, http.StatusOK, cands)
}

func (s *Server) handleLocationReverse(w http.ResponseWriter, r *http.Request) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err1 != nil || err2 != nil {
		writeError(w, http.StatusBadRequest, "lat and lon are required")
		return
	}
	sel := s.Picker.SelectByClick(r.Context(), models.Coord{Lat: lat, Lon: lon})
	writeJSON(w, http.StatusOK, sel)
}

func (s *Server) handleLocationSelect(w http.ResponseWriter, r *http.Request) {
	var cand geocode.Candidate
	if err := json.NewDecoder(r.Body).Decode(&cand); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.Picker.SelectByCandidate(cand))
}

func (s *Server) handleLocationBootstrap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Picker.Bootstrap(r.Context()))
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.WSReg.Add(newID(), conn)
}
