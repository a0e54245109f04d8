package storage

import (
	"database/sql"
	"errors"

	_ "github.com/lib/pq"

	"github.com/example/ecocommute/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) CreateRide(r *models.Ride) error {
	_, err := p.db.Exec(`INSERT INTO rides(id, driver, driver_email, start_lat, start_lon, start_address, dest_lat, dest_lon, dest_address, departure_time, return_time, seats_total, seats_available, cost_per_seat, vehicle_type, user_id, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		r.ID, r.Driver, r.DriverEmail, r.StartLocation.Lat, r.StartLocation.Lon, r.StartLocationAddress,
		r.Destination.Lat, r.Destination.Lon, r.DestinationAddress,
		r.DepartureTime, r.ReturnTime, r.SeatsTotal, r.SeatsAvailable,
		r.CostPerSeat, r.VehicleType, r.UserID, r.CreatedAt)
	return err
}

func (p *PostgresStore) GetRide(id string) (*models.Ride, error) {
	row := p.db.QueryRow(`SELECT id, driver, driver_email, start_lat, start_lon, start_address, dest_lat, dest_lon, dest_address, departure_time, return_time, seats_total, seats_available, cost_per_seat, vehicle_type, user_id, created_at FROM rides WHERE id=$1`, id)
	var r models.Ride
	err := row.Scan(&r.ID, &r.Driver, &r.DriverEmail, &r.StartLocation.Lat, &r.StartLocation.Lon, &r.StartLocationAddress,
		&r.Destination.Lat, &r.Destination.Lon, &r.DestinationAddress,
		&r.DepartureTime, &r.ReturnTime, &r.SeatsTotal, &r.SeatsAvailable,
		&r.CostPerSeat, &r.VehicleType, &r.UserID, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *PostgresStore) ListRides() ([]models.Ride, error) {
	rows, err := p.db.Query(`SELECT id, driver, driver_email, start_lat, start_lon, start_address, dest_lat, dest_lon, dest_address, departure_time, return_time, seats_total, seats_available, cost_per_seat, vehicle_type, user_id, created_at FROM rides ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Ride
	for rows.Next() {
		var r models.Ride
		if err := rows.Scan(&r.ID, &r.Driver, &r.DriverEmail, &r.StartLocation.Lat, &r.StartLocation.Lon, &r.StartLocationAddress,
			&r.Destination.Lat, &r.Destination.Lon, &r.DestinationAddress,
			&r.DepartureTime, &r.ReturnTime, &r.SeatsTotal, &r.SeatsAvailable,
			&r.CostPerSeat, &r.VehicleType, &r.UserID, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReserveSeat relies on the conditional UPDATE for the decrement
// discipline: the database serializes racing approvals.
func (p *PostgresStore) ReserveSeat(id string) (bool, error) {
	res, err := p.db.Exec(`UPDATE rides SET seats_available = seats_available - 1 WHERE id=$1 AND seats_available > 0`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *PostgresStore) SaveBooking(b *models.Booking) error {
	_, err := p.db.Exec(`INSERT INTO bookings(id, ride_id, passenger_name, passenger_email, passenger_phone, notes, status, payment_intent, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		b.ID, b.RideID, b.PassengerName, b.PassengerEmail, b.PassengerPhone, b.Notes, b.Status, b.PaymentIntentID, b.CreatedAt)
	return err
}

func (p *PostgresStore) GetBooking(id string) (*models.Booking, error) {
	row := p.db.QueryRow(`SELECT id, ride_id, passenger_name, passenger_email, passenger_phone, notes, status, payment_intent, created_at FROM bookings WHERE id=$1`, id)
	var b models.Booking
	err := row.Scan(&b.ID, &b.RideID, &b.PassengerName, &b.PassengerEmail, &b.PassengerPhone, &b.Notes, &b.Status, &b.PaymentIntentID, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (p *PostgresStore) ListBookingsByRide(rideID string) ([]models.Booking, error) {
	rows, err := p.db.Query(`SELECT id, ride_id, passenger_name, passenger_email, passenger_phone, notes, status, payment_intent, created_at FROM bookings WHERE ride_id=$1 ORDER BY created_at`, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.ID, &b.RideID, &b.PassengerName, &b.PassengerEmail, &b.PassengerPhone, &b.Notes, &b.Status, &b.PaymentIntentID, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SetPaymentIntent(id, paymentIntentID string) error {
	res, err := p.db.Exec(`UPDATE bookings SET payment_intent=$2 WHERE id=$1`, id, paymentIntentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Transition only succeeds from pending, making the status monotonic
// even under a duplicated resolution.
func (p *PostgresStore) Transition(id string, to models.BookingStatus) (bool, error) {
	res, err := p.db.Exec(`UPDATE bookings SET status=$2 WHERE id=$1 AND status='pending'`, id, to)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
