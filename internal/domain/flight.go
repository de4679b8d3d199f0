package domain

import (
	"fmt"
	"strings"
	"time"
)

type SeatClass string

const (
	SeatClassEconomy  SeatClass = "economy"
	SeatClassBusiness SeatClass = "business"
	SeatClassGalaxium SeatClass = "galaxium"
)

// SeatClasses lists the classes in display order.
var SeatClasses = []SeatClass{SeatClassEconomy, SeatClassBusiness, SeatClassGalaxium}

func ParseSeatClass(s string) (SeatClass, error) {
	c := SeatClass(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown seat class %q", s)
	}
	return c, nil
}

func (c SeatClass) Valid() bool {
	switch c {
	case SeatClassEconomy, SeatClassBusiness, SeatClassGalaxium:
		return true
	}
	return false
}

// Multiplier is the fare factor the service applies to the base price.
func (c SeatClass) Multiplier() float64 {
	switch c {
	case SeatClassBusiness:
		return 2.5
	case SeatClassGalaxium:
		return 5
	default:
		return 1
	}
}

type Flight struct {
	ID            int64     `json:"id"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	BasePrice     int64     `json:"base_price"`

	EconomyPrice  int64 `json:"economy_price"`
	BusinessPrice int64 `json:"business_price"`
	GalaxiumPrice int64 `json:"galaxium_price"`

	EconomySeats  int `json:"economy_seats_available"`
	BusinessSeats int `json:"business_seats_available"`
	GalaxiumSeats int `json:"galaxium_seats_available"`
}

// Price returns the fare for the class, deriving it from BasePrice when the
// service did not send one.
func (f Flight) Price(c SeatClass) int64 {
	var p int64
	switch c {
	case SeatClassEconomy:
		p = f.EconomyPrice
	case SeatClassBusiness:
		p = f.BusinessPrice
	case SeatClassGalaxium:
		p = f.GalaxiumPrice
	}
	if p == 0 && f.BasePrice > 0 {
		p = int64(float64(f.BasePrice) * c.Multiplier())
	}
	return p
}

func (f Flight) SeatsAvailable(c SeatClass) int {
	switch c {
	case SeatClassEconomy:
		return f.EconomySeats
	case SeatClassBusiness:
		return f.BusinessSeats
	case SeatClassGalaxium:
		return f.GalaxiumSeats
	}
	return 0
}

func (f Flight) TotalSeatsAvailable() int {
	return f.EconomySeats + f.BusinessSeats + f.GalaxiumSeats
}

func (f Flight) Duration() time.Duration {
	if f.DepartureTime.IsZero() || f.ArrivalTime.IsZero() {
		return 0
	}
	return f.ArrivalTime.Sub(f.DepartureTime)
}
