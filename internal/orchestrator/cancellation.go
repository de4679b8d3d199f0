package orchestrator

import (
	"context"
	"log"

	"github.com/Domenick1991/galaxium/internal/apperr"
	"github.com/Domenick1991/galaxium/internal/domain"
)

// RequestCancellation asks the visitor to confirm cancelling a booking.
func (o *Orchestrator) RequestCancellation(bookingID int64) (err error) {
	defer func() { o.observe("request_cancellation", err) }()

	if err := apperr.ValidateID("Booking id", bookingID); err != nil {
		return err
	}

	o.mu.Lock()
	if o.busy() {
		o.mu.Unlock()
		return ErrBusy
	}
	if o.cancelState != CancelIdle {
		from := o.cancelState
		o.mu.Unlock()
		return invalidTransition("request cancellation", from)
	}
	o.cancelTarget = bookingID
	o.lastErr = nil
	o.setCancelState(CancelAwaitingConfirmation)
	o.mu.Unlock()

	o.publish()
	return nil
}

// AbandonCancellation backs out of a cancellation without any network call.
func (o *Orchestrator) AbandonCancellation() (err error) {
	defer func() { o.observe("abandon_cancellation", err) }()

	o.mu.Lock()
	if o.busy() {
		o.mu.Unlock()
		return ErrBusy
	}
	if o.cancelState != CancelAwaitingConfirmation {
		from := o.cancelState
		o.mu.Unlock()
		return invalidTransition("abandon cancellation", from)
	}
	o.cancelTarget = 0
	o.setCancelState(CancelIdle)
	o.mu.Unlock()

	o.publish()
	return nil
}

// ConfirmCancellation cancels the requested booking. On success the booking
// list and the catalog are reloaded; on failure the error is surfaced and the
// loaded bookings stay as they were.
func (o *Orchestrator) ConfirmCancellation(ctx context.Context) (cancelled *domain.Booking, err error) {
	defer func() { o.observe("confirm_cancellation", err) }()

	o.mu.Lock()
	if o.busy() {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	if o.cancelState != CancelAwaitingConfirmation {
		from := o.cancelState
		o.mu.Unlock()
		return nil, invalidTransition("confirm cancellation", from)
	}
	bookingID := o.cancelTarget
	o.lastErr = nil
	o.bookingsGen++
	o.setCancelState(CancelCancelling)
	o.mu.Unlock()
	o.publish()

	cancelled, err = o.inventory.CancelBooking(ctx, bookingID)
	if err != nil {
		ae := apperr.Classify(err)
		o.mu.Lock()
		o.lastErr = ae
		if ae.Kind == apperr.KindNetwork {
			o.stale = true
		}
		o.cancelTarget = 0
		o.setCancelState(CancelIdle)
		o.mu.Unlock()
		o.publish()
		return nil, ae
	}

	user := o.session.CurrentUser()
	var (
		list    []domain.Booking
		listErr error
	)
	if user != nil {
		list, listErr = o.inventory.ListBookings(ctx, user.ID)
	}
	// Freed seats show up in the catalog.
	refreshErr := o.catalog.Refresh(ctx)

	o.mu.Lock()
	current := o.session.CurrentUser()
	switch {
	case user == nil || current == nil || current.ID != user.ID:
		o.bookings = nil
		o.stale = true
	case listErr != nil:
		o.lastErr = apperr.Classify(listErr)
		o.stale = true
	default:
		o.bookings = sortBookings(list)
		o.stale = false
	}
	if refreshErr != nil && o.lastErr == nil {
		o.lastErr = apperr.Classify(refreshErr)
	}
	o.cancelTarget = 0
	o.setCancelState(CancelIdle)
	o.mu.Unlock()
	o.publish()

	if o.publisher != nil && user != nil {
		if perr := o.publisher.BookingCancelled(context.WithoutCancel(ctx), *user, *cancelled); perr != nil {
			log.Printf("orchestrator: publish booking %d cancelled: %v", cancelled.ID, perr)
		}
	}
	c := *cancelled
	return &c, nil
}
