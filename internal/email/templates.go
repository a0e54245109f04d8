package email

import (
	"fmt"

	"github.com/example/ecocommute/internal/models"
)

// Message is a rendered subject/body pair ready for Service.Send.
type Message struct {
	Subject string
	Body    string
}

func costOrFree(cost string) string {
	if cost == "" || cost == "0" {
		return "Free"
	}
	return cost
}

// BookingConfirmation is sent to the passenger when their request enters
// the pending state.
func BookingConfirmation(b models.Booking, r models.Ride) Message {
	return Message{
		Subject: fmt.Sprintf("EcoCommute: Your ride with %s is confirmed!", r.Driver),
		Body: fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px;">
  <h2>Your Ride is Confirmed!</h2>
  <p>Hello %s,</p>
  <p>Your ride with <strong>%s</strong> has been successfully booked.</p>
  <div style="background-color: #f9f9f9; padding: 15px;">
    <h3>Ride Details:</h3>
    <p><strong>From:</strong> %s</p>
    <p><strong>To:</strong> %s</p>
    <p><strong>Departure:</strong> %s</p>
    <p><strong>Cost:</strong> %s</p>
  </div>
  <p>The driver has been notified of your booking and will contact you if needed.</p>
  <p>Need to cancel? Please do so at least 2 hours before the scheduled departure.</p>
</div>`, b.PassengerName, r.Driver, r.StartLocationAddress, r.DestinationAddress, r.DepartureTime, costOrFree(r.CostPerSeat)),
	}
}

// DriverNotice tells the driver a passenger requested a seat.
func DriverNotice(b models.Booking, r models.Ride) Message {
	notes := ""
	if b.Notes != "" {
		notes = fmt.Sprintf("<p><strong>Notes from passenger:</strong> %s</p>", b.Notes)
	}
	return Message{
		Subject: fmt.Sprintf("EcoCommute: New passenger for your ride on %s", r.DepartureTime),
		Body: fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px;">
  <h2>New Ride Booking!</h2>
  <p>Hello %s,</p>
  <p>Good news! <strong>%s</strong> has booked a seat in your carpool.</p>
  <div style="background-color: #f9f9f9; padding: 15px;">
    <h3>Ride Details:</h3>
    <p><strong>From:</strong> %s</p>
    <p><strong>To:</strong> %s</p>
    <p><strong>Departure:</strong> %s</p>
    <p><strong>Passenger Phone:</strong> %s</p>
    %s
  </div>
</div>`, r.Driver, b.PassengerName, r.StartLocationAddress, r.DestinationAddress, r.DepartureTime, b.PassengerPhone, notes),
	}
}

// ApprovalNotice confirms the seat after the driver approves.
func ApprovalNotice(b models.Booking, r models.Ride) Message {
	return Message{
		Subject: "EcoCommute: Your ride request has been approved!",
		Body: fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px;">
  <h2>Ride Request Approved!</h2>
  <p>Hello %s,</p>
  <p>Great news! <strong>%s</strong> has approved your ride request.</p>
  <p>Your seat is now confirmed for the trip from %s to %s on %s.</p>
  <p>Please be on time at the pickup location. Enjoy your ride!</p>
</div>`, b.PassengerName, r.Driver, r.StartLocationAddress, r.DestinationAddress, r.DepartureTime),
	}
}

// DeclineNotice informs the passenger the driver could not take them.
func DeclineNotice(b models.Booking, r models.Ride) Message {
	return Message{
		Subject: "EcoCommute: Your ride request couldn't be accommodated",
		Body: fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px;">
  <h2>Ride Request Not Approved</h2>
  <p>Hello %s,</p>
  <p>Unfortunately, <strong>%s</strong> was unable to approve your ride request.</p>
  <p>This could be due to a last-minute change in their plans or other circumstances.</p>
  <p>Please try booking another ride from our available options.</p>
</div>`, b.PassengerName, r.Driver),
	}
}
