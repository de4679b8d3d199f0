// Package events carries booking lifecycle events over Kafka.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/galaxium/internal/domain"
	"github.com/google/uuid"
)

const (
	TypeBookingCreated   = "booking_created"
	TypeBookingCancelled = "booking_cancelled"
)

type BookingEvent struct {
	ID         string               `json:"event_id"`
	Type       string               `json:"type"`
	BookingID  int64                `json:"booking_id"`
	UserID     int64                `json:"user_id"`
	Name       string               `json:"name"`
	Email      string               `json:"email"`
	FlightID   int64                `json:"flight_id"`
	SeatClass  domain.SeatClass     `json:"seat_class"`
	Status     domain.BookingStatus `json:"status"`
	PricePaid  int64                `json:"price_paid"`
	OccurredAt time.Time            `json:"occurred_at"`
}

func NewBookingEvent(eventType string, user domain.User, b domain.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		BookingID:  b.ID,
		UserID:     user.ID,
		Name:       user.Name,
		Email:      user.Email,
		FlightID:   b.FlightID,
		SeatClass:  b.SeatClass,
		Status:     b.Status,
		PricePaid:  b.PricePaid,
		OccurredAt: at.UTC(),
	}
}

// Key partitions events of one booking together.
func (e BookingEvent) Key() string {
	return fmt.Sprintf("booking-%d", e.BookingID)
}

func Decode(data []byte) (BookingEvent, error) {
	var e BookingEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return BookingEvent{}, fmt.Errorf("decode booking event: %w", err)
	}
	switch e.Type {
	case TypeBookingCreated, TypeBookingCancelled:
	default:
		return BookingEvent{}, fmt.Errorf("unknown booking event type %q", e.Type)
	}
	return e, nil
}
