package events

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/galaxium/internal/domain"
)

type publisher interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
}

type Observer interface {
	ObserveEvent(eventType string, err error)
}

// BookingPublisher turns committed bookings and cancellations into events on
// the booking topic and, when configured, the notifications topic.
type BookingPublisher struct {
	producer           publisher
	bookingTopic       string
	notificationsTopic string
	observer           Observer
	now                func() time.Time
}

type PublisherOption func(*BookingPublisher)

func WithNotificationsTopic(topic string) PublisherOption {
	return func(p *BookingPublisher) {
		p.notificationsTopic = topic
	}
}

func WithObserver(o Observer) PublisherOption {
	return func(p *BookingPublisher) {
		p.observer = o
	}
}

func NewBookingPublisher(producer publisher, bookingTopic string, opts ...PublisherOption) *BookingPublisher {
	p := &BookingPublisher{
		producer:     producer,
		bookingTopic: bookingTopic,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *BookingPublisher) BookingCreated(ctx context.Context, user domain.User, b domain.Booking) error {
	return p.publish(ctx, NewBookingEvent(TypeBookingCreated, user, b, p.now()))
}

func (p *BookingPublisher) BookingCancelled(ctx context.Context, user domain.User, b domain.Booking) error {
	return p.publish(ctx, NewBookingEvent(TypeBookingCancelled, user, b, p.now()))
}

func (p *BookingPublisher) publish(ctx context.Context, ev BookingEvent) error {
	var errs []error
	for _, topic := range []string{p.bookingTopic, p.notificationsTopic} {
		if topic == "" {
			continue
		}
		if err := p.producer.Publish(ctx, topic, ev.Key(), ev); err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	if p.observer != nil {
		p.observer.ObserveEvent(ev.Type, err)
	}
	return err
}
