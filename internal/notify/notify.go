// Package notify renders passenger notices for booking events.
package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/Domenick1991/galaxium/internal/events"
)

type Observer interface {
	ObserveNotification(eventType string)
}

type Sender struct {
	out      io.Writer
	observer Observer
}

type Option func(*Sender)

func WithOutput(w io.Writer) Option {
	return func(s *Sender) {
		s.out = w
	}
}

func WithObserver(o Observer) Option {
	return func(s *Sender) {
		s.observer = o
	}
}

func NewSender(opts ...Option) *Sender {
	s := &Sender{out: os.Stdout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sender) Send(ctx context.Context, event events.BookingEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(event.Email) == "" {
		log.Printf("notify: booking %d has no email, skipping", event.BookingID)
		return nil
	}

	if _, err := fmt.Fprintf(s.out, "to=%s subject=%q\n%s\n", event.Email, Subject(event), Body(event)); err != nil {
		return fmt.Errorf("write notice for booking %d: %w", event.BookingID, err)
	}
	if s.observer != nil {
		s.observer.ObserveNotification(event.Type)
	}
	return nil
}

func Subject(event events.BookingEvent) string {
	switch event.Type {
	case events.TypeBookingCancelled:
		return fmt.Sprintf("Booking #%d cancelled", event.BookingID)
	default:
		return fmt.Sprintf("Booking #%d confirmed", event.BookingID)
	}
}

func Body(event events.BookingEvent) string {
	name := event.Name
	if name == "" {
		name = "traveller"
	}
	switch event.Type {
	case events.TypeBookingCancelled:
		return fmt.Sprintf("Hello %s, your %s seat on flight %d has been cancelled.", name, event.SeatClass, event.FlightID)
	default:
		return fmt.Sprintf("Hello %s, your %s seat on flight %d is booked. Price paid: %s.",
			name, event.SeatClass, event.FlightID, FormatPrice(event.PricePaid))
	}
}

// FormatPrice renders a price in dollars with thousands grouped, e.g. $2,500,000.
func FormatPrice(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return sign + "$" + b.String()
}
