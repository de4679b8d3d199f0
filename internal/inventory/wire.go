package inventory

import (
	"strings"
	"time"

	"github.com/Domenick1991/galaxium/internal/domain"
)

type flightDTO struct {
	ID            int64  `json:"flight_id"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time"`
	BasePrice     int64  `json:"base_price"`

	EconomyPrice  int64 `json:"economy_price"`
	BusinessPrice int64 `json:"business_price"`
	GalaxiumPrice int64 `json:"galaxium_price"`

	EconomySeats  int `json:"economy_seats_available"`
	BusinessSeats int `json:"business_seats_available"`
	GalaxiumSeats int `json:"galaxium_seats_available"`

	// Single-class schema still served by older deployments.
	Price          *int64 `json:"price,omitempty"`
	SeatsAvailable *int   `json:"seats_available,omitempty"`
}

func (d flightDTO) toDomain() domain.Flight {
	f := domain.Flight{
		ID:            d.ID,
		Origin:        d.Origin,
		Destination:   d.Destination,
		DepartureTime: parseTime(d.DepartureTime),
		ArrivalTime:   parseTime(d.ArrivalTime),
		BasePrice:     d.BasePrice,
		EconomyPrice:  d.EconomyPrice,
		BusinessPrice: d.BusinessPrice,
		GalaxiumPrice: d.GalaxiumPrice,
		EconomySeats:  d.EconomySeats,
		BusinessSeats: d.BusinessSeats,
		GalaxiumSeats: d.GalaxiumSeats,
	}
	if d.Price != nil && f.BasePrice == 0 && f.EconomyPrice == 0 {
		f.BasePrice = *d.Price
		f.EconomyPrice = *d.Price
	}
	if d.SeatsAvailable != nil && f.TotalSeatsAvailable() == 0 {
		f.EconomySeats = *d.SeatsAvailable
	}
	return f
}

type bookingDTO struct {
	ID          int64  `json:"booking_id"`
	UserID      int64  `json:"user_id"`
	FlightID    int64  `json:"flight_id"`
	Status      string `json:"status"`
	BookingTime string `json:"booking_time"`
	SeatClass   string `json:"seat_class"`
	PricePaid   int64  `json:"price_paid"`
}

func (d bookingDTO) toDomain() domain.Booking {
	status, err := domain.ParseBookingStatus(d.Status)
	if err != nil {
		status = domain.BookingStatus(d.Status)
	}
	class, err := domain.ParseSeatClass(d.SeatClass)
	if err != nil {
		class = domain.SeatClassEconomy
	}
	return domain.Booking{
		ID:        d.ID,
		UserID:    d.UserID,
		FlightID:  d.FlightID,
		SeatClass: class,
		PricePaid: d.PricePaid,
		Status:    status,
		BookedAt:  parseTime(d.BookingTime),
	}
}

type userDTO struct {
	ID    int64  `json:"user_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (d userDTO) toDomain() domain.User {
	return domain.User{ID: d.ID, Name: d.Name, Email: d.Email}
}

type registerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type bookRequest struct {
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	FlightID  int64  `json:"flight_id"`
	SeatClass string `json:"seat_class"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// parseTime accepts RFC 3339 and the naive ISO timestamps the service writes
// for booking times. Naive values are taken as UTC.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
