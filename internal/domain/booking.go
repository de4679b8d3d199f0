package domain

import (
	"fmt"
	"strings"
	"time"
)

type BookingStatus string

const (
	BookingStatusBooked    BookingStatus = "booked"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// ParseBookingStatus accepts the American spelling "canceled" as well.
func ParseBookingStatus(s string) (BookingStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "booked":
		return BookingStatusBooked, nil
	case "cancelled", "canceled":
		return BookingStatusCancelled, nil
	case "completed":
		return BookingStatusCompleted, nil
	}
	return "", fmt.Errorf("unknown booking status %q", s)
}

type Booking struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"user_id"`
	FlightID  int64         `json:"flight_id"`
	SeatClass SeatClass     `json:"seat_class"`
	PricePaid int64         `json:"price_paid"`
	Status    BookingStatus `json:"status"`
	BookedAt  time.Time     `json:"booked_at"`
}

func (b Booking) Active() bool {
	return b.Status == BookingStatusBooked
}

// PendingSelection is what the visitor is trying to book. It lives only
// between selecting a flight and the booking outcome and is never persisted.
type PendingSelection struct {
	Flight    Flight    `json:"flight"`
	SeatClass SeatClass `json:"seat_class"`
}

func (p PendingSelection) Price() int64 {
	return p.Flight.Price(p.SeatClass)
}
