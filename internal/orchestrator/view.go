package orchestrator

import (
	"errors"
	"sort"

	"github.com/Domenick1991/galaxium/internal/apperr"
	"github.com/Domenick1991/galaxium/internal/catalog"
	"github.com/Domenick1991/galaxium/internal/domain"
)

// View is a read-only snapshot of the workflow for the presentation layer.
// Every slice and pointer in it is a copy.
type View struct {
	State        State                    `json:"state"`
	CancelState  CancelState              `json:"cancel_state"`
	Busy         bool                     `json:"busy"`
	User         *domain.User             `json:"user,omitempty"`
	Pending      *domain.PendingSelection `json:"pending,omitempty"`
	PendingPrice int64                    `json:"pending_price,omitempty"`
	CancelTarget int64                    `json:"cancel_target,omitempty"`
	Error        *ErrorView               `json:"error,omitempty"`
	LastBooking  *domain.Booking          `json:"last_booking,omitempty"`

	SearchTerm   string          `json:"search_term"`
	Flights      []domain.Flight `json:"flights"`
	TotalFlights int             `json:"total_flights"`

	ActiveBookings []BookingView `json:"active_bookings"`
	PastBookings   []BookingView `json:"past_bookings"`
	BookingsStale  bool          `json:"bookings_stale"`
}

type ErrorView struct {
	Kind    apperr.Kind `json:"kind"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

// BookingView joins a booking with its flight. Flight is nil when the
// flight is no longer listed.
type BookingView struct {
	Booking domain.Booking `json:"booking"`
	Flight  *domain.Flight `json:"flight,omitempty"`
}

func (o *Orchestrator) View() View {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshot()
}

// snapshot builds the view. Caller holds mu.
func (o *Orchestrator) snapshot() View {
	all := o.catalog.Flights()
	v := View{
		State:          o.state,
		CancelState:    o.cancelState,
		Busy:           o.busy() || o.identifying,
		User:           o.session.CurrentUser(),
		CancelTarget:   o.cancelTarget,
		SearchTerm:     o.searchTerm,
		Flights:        catalog.Filter(all, o.searchTerm),
		TotalFlights:   len(all),
		ActiveBookings: []BookingView{},
		PastBookings:   []BookingView{},
		BookingsStale:  o.stale,
	}
	if o.pending != nil {
		p := *o.pending
		v.Pending = &p
		v.PendingPrice = p.Price()
	}
	if o.lastErr != nil {
		v.Error = &ErrorView{Kind: o.lastErr.Kind, Code: o.lastErr.Code, Message: o.lastErr.Message}
	}
	if o.lastBooking != nil {
		b := *o.lastBooking
		v.LastBooking = &b
	}

	byID := make(map[int64]domain.Flight, len(all))
	for _, f := range all {
		byID[f.ID] = f
	}
	for _, b := range o.bookings {
		bv := BookingView{Booking: b}
		if f, ok := byID[b.FlightID]; ok {
			bv.Flight = &f
		}
		if b.Active() {
			v.ActiveBookings = append(v.ActiveBookings, bv)
		} else {
			v.PastBookings = append(v.PastBookings, bv)
		}
	}
	return v
}

// Subscribe registers fn to receive a fresh View after every change and
// returns a function removing it.
func (o *Orchestrator) Subscribe(fn func(View)) func() {
	o.subMu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = fn
	o.subMu.Unlock()

	return func() {
		o.subMu.Lock()
		delete(o.subs, id)
		o.subMu.Unlock()
	}
}

// publish pushes the current view to subscribers. Must not be called with mu
// held.
func (o *Orchestrator) publish() {
	o.subMu.Lock()
	if len(o.subs) == 0 {
		o.subMu.Unlock()
		return
	}
	ids := make([]int, 0, len(o.subs))
	for id := range o.subs {
		ids = append(ids, id)
	}
	o.subMu.Unlock()

	v := o.View()

	sort.Ints(ids)
	for _, id := range ids {
		o.subMu.Lock()
		fn, ok := o.subs[id]
		o.subMu.Unlock()
		if ok {
			fn(v)
		}
	}
}

func isInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}
