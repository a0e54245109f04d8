package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Severity classifies a notification for display purposes.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// Ride is a driver-published trip with a fixed seat capacity.
// SeatsAvailable stays within [0, SeatsTotal] at all times.
type Ride struct {
	ID                   string    `json:"id"`
	Driver               string    `json:"driver"`
	DriverEmail          string    `json:"driver_email,omitempty"`
	StartLocation        Coord     `json:"start_location"`
	StartLocationAddress string    `json:"start_location_address,omitempty"`
	Destination          Coord     `json:"destination"`
	DestinationAddress   string    `json:"destination_address,omitempty"`
	DepartureTime        string    `json:"departure_time"`
	ReturnTime           string    `json:"return_time,omitempty"`
	SeatsTotal           int       `json:"seats_total"`
	SeatsAvailable       int       `json:"seats_available"`
	CostPerSeat          string    `json:"cost_per_seat,omitempty"`
	VehicleType          string    `json:"vehicle_type"`
	UserID               string    `json:"user_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// BookingStatus transitions pending -> approved or pending -> declined,
// exactly once. No other transitions exist.
type BookingStatus string

const (
	BookingPending  BookingStatus = "pending"
	BookingApproved BookingStatus = "approved"
	BookingDeclined BookingStatus = "declined"
)

type Booking struct {
	ID              string        `json:"id"`
	RideID          string        `json:"ride_id"`
	PassengerName   string        `json:"passenger_name"`
	PassengerEmail  string        `json:"passenger_email,omitempty"`
	PassengerPhone  string        `json:"passenger_phone,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	Status          BookingStatus `json:"status"`
	PaymentIntentID string        `json:"-"`
	CreatedAt       time.Time     `json:"created_at"`
}

// BookingDraft is the submission payload before a booking exists.
type BookingDraft struct {
	RideID         string `json:"ride_id"`
	PassengerName  string `json:"passenger_name"`
	PassengerEmail string `json:"passenger_email"`
	PassengerPhone string `json:"passenger_phone"`
	Notes          string `json:"notes"`
}

// LocationSelection is a resolved (coordinates, address) pair produced by
// map interaction or search. Consumed by the calling form, not persisted.
type LocationSelection struct {
	Coordinates Coord  `json:"coordinates"`
	Address     string `json:"address"`
	RawValue    string `json:"raw_value"`
}

// Profile is the projection exposed by the external session provider.
type Profile struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// BookingEvent is published to the event topic on every lifecycle step.
type BookingEvent struct {
	Type      string    `json:"type"` // booking.submitted, booking.approved, booking.declined
	Booking   Booking   `json:"booking"`
	Ride      Ride      `json:"ride"`
	Timestamp time.Time `json:"timestamp"`
}
