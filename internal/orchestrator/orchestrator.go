// Package orchestrator drives the booking workflow of one visitor session:
// flight selection, identification, booking confirmation and cancellation.
// It owns the only mutable workflow state and republishes a read-only View
// after every transition.
package orchestrator

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/Domenick1991/galaxium/internal/apperr"
	"github.com/Domenick1991/galaxium/internal/domain"
)

type Option func(*Orchestrator)

func WithPublisher(p EventPublisher) Option {
	return func(o *Orchestrator) {
		o.publisher = p
	}
}

func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

type Orchestrator struct {
	inventory Inventory
	catalog   Catalog
	session   Session
	publisher EventPublisher
	metrics   Metrics

	mu           sync.Mutex
	state        State
	cancelState  CancelState
	identifying  bool
	pending      *domain.PendingSelection
	cancelTarget int64
	lastErr      *apperr.Error
	lastBooking  *domain.Booking
	bookings     []domain.Booking
	stale        bool
	searchTerm   string

	// bookingsGen moves on every change that can invalidate a booking list
	// fetched earlier: a mutation, a sign-in or a logout.
	bookingsGen uint64

	subMu   sync.Mutex
	subs    map[int]func(View)
	nextSub int

	unsubscribeSession func()
}

func New(inventory Inventory, catalog Catalog, session Session, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		inventory:   inventory,
		catalog:     catalog,
		session:     session,
		state:       StateBrowsing,
		cancelState: CancelIdle,
		stale:       true,
		subs:        make(map[int]func(View)),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.unsubscribeSession = session.Subscribe(func(*domain.User) {
		o.publish()
	})
	return o
}

// Close detaches the orchestrator from the session store.
func (o *Orchestrator) Close() {
	if o.unsubscribeSession != nil {
		o.unsubscribeSession()
	}
}

// busy reports whether a mutation is in flight. Caller holds mu.
func (o *Orchestrator) busy() bool {
	return o.state == StateBooking || o.cancelState == CancelCancelling
}

// setState records a booking flow transition. Caller holds mu.
func (o *Orchestrator) setState(next State) {
	if o.state == next {
		return
	}
	log.Printf("orchestrator: booking %s -> %s", o.state, next)
	o.state = next
	if o.metrics != nil {
		o.metrics.ObserveState("booking", string(next))
	}
}

// setCancelState records a cancellation flow transition. Caller holds mu.
func (o *Orchestrator) setCancelState(next CancelState) {
	if o.cancelState == next {
		return
	}
	log.Printf("orchestrator: cancellation %s -> %s", o.cancelState, next)
	o.cancelState = next
	if o.metrics != nil {
		o.metrics.ObserveState("cancellation", string(next))
	}
}

func (o *Orchestrator) observe(intent string, err error) {
	if o.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrBusy):
		result = "busy"
	case isInvalidTransition(err):
		result = "invalid_transition"
	default:
		result = string(apperr.KindOf(err))
	}
	o.metrics.ObserveIntent(intent, result)
}

// RefreshCatalog reloads the flight list from the remote service. A failure
// keeps the cached flights and is surfaced on the view.
func (o *Orchestrator) RefreshCatalog(ctx context.Context) (err error) {
	defer func() { o.observe("refresh_catalog", err) }()

	o.mu.Lock()
	if o.busy() {
		o.mu.Unlock()
		return ErrBusy
	}
	o.mu.Unlock()

	if err := o.catalog.Refresh(ctx); err != nil {
		ae := apperr.Classify(err)
		o.mu.Lock()
		o.lastErr = ae
		o.mu.Unlock()
		o.publish()
		return ae
	}
	o.publish()
	return nil
}

// Search sets the term the view's flight list is filtered by.
func (o *Orchestrator) Search(term string) {
	o.mu.Lock()
	o.searchTerm = strings.TrimSpace(term)
	o.mu.Unlock()
	o.publish()
}

// SelectFlight starts a booking for a flight from the catalog.
func (o *Orchestrator) SelectFlight(flightID int64, class domain.SeatClass) (err error) {
	defer func() { o.observe("select_flight", err) }()

	if err := apperr.ValidateID("Flight id", flightID); err != nil {
		return err
	}
	if !class.Valid() {
		return apperr.Validation(apperr.CodeInvalidSeatClass, "Please choose economy, business or galaxium.")
	}

	o.mu.Lock()
	if o.busy() {
		o.mu.Unlock()
		return ErrBusy
	}
	if o.state != StateBrowsing {
		from := o.state
		o.mu.Unlock()
		return invalidTransition("select flight", from)
	}
	flight, ok := o.catalog.Find(flightID)
	if !ok {
		o.mu.Unlock()
		return apperr.NotFound(apperr.CodeFlightNotFound, "That flight is no longer listed.")
	}

	o.pending = &domain.PendingSelection{Flight: flight, SeatClass: class}
	o.lastErr = nil
	if o.session.CurrentUser() == nil {
		o.setState(StateAwaitingIdentification)
	} else {
		o.setState(StateAwaitingConfirmation)
	}
	o.mu.Unlock()

	o.publish()
	return nil
}

// Identify signs the visitor in or registers them. On success the pending
// selection moves on to confirmation.
func (o *Orchestrator) Identify(ctx context.Context, req IdentifyRequest) (user *domain.User, err error) {
	defer func() { o.observe("identify", err) }()

	o.mu.Lock()
	if o.busy() || o.identifying {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	if o.state != StateAwaitingIdentification {
		from := o.state
		o.mu.Unlock()
		return nil, invalidTransition("identify", from)
	}
	mode, verr := ParseIdentifyMode(string(req.Mode))
	var name, email string
	if verr == nil {
		name, email, verr = apperr.ValidateCredentials(req.Name, req.Email)
	}
	if verr != nil {
		o.lastErr = apperr.Classify(verr)
		o.mu.Unlock()
		o.publish()
		return nil, verr
	}
	o.identifying = true
	o.mu.Unlock()

	switch mode {
	case IdentifyRegister:
		user, err = o.inventory.RegisterUser(ctx, name, email)
	default:
		user, err = o.inventory.FindUser(ctx, name, email)
	}
	if err == nil {
		if serr := o.session.SetCurrentUser(ctx, user); serr != nil {
			log.Printf("orchestrator: remember user %d: %v", user.ID, serr)
			ae := apperr.New(apperr.KindServer, "SESSION_WRITE_FAILED", "We could not remember your sign-in. Please try again.")
			ae.Err = serr
			err = ae
		}
	}

	o.mu.Lock()
	o.identifying = false
	if err != nil {
		ae := apperr.Classify(err)
		o.lastErr = ae
		o.mu.Unlock()
		o.publish()
		return nil, ae
	}
	o.lastErr = nil
	o.stale = true
	o.bookingsGen++
	// Abandon may have run while the request was out.
	if o.state == StateAwaitingIdentification && o.pending != nil {
		o.setState(StateAwaitingConfirmation)
	}
	o.mu.Unlock()

	o.publish()
	return user, nil
}

// ConfirmBooking sends the pending selection to the inventory service. On
// success the selection is cleared and the catalog is refreshed once; on any
// failure the selection is kept so the visitor can retry or abandon.
func (o *Orchestrator) ConfirmBooking(ctx context.Context) (booking *domain.Booking, err error) {
	defer func() { o.observe("confirm_booking", err) }()

	o.mu.Lock()
	if o.busy() {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	if o.state != StateAwaitingConfirmation || o.pending == nil {
		from := o.state
		o.mu.Unlock()
		return nil, invalidTransition("confirm booking", from)
	}
	user := o.session.CurrentUser()
	if user == nil {
		o.setState(StateAwaitingIdentification)
		o.lastErr = errSessionRequired()
		o.mu.Unlock()
		o.publish()
		return nil, errSessionRequired()
	}
	sel := *o.pending
	o.lastErr = nil
	o.bookingsGen++
	o.setState(StateBooking)
	o.mu.Unlock()
	o.publish()

	booking, err = o.inventory.CreateBooking(ctx, *user, sel.Flight.ID, sel.SeatClass)
	if err != nil {
		ae := apperr.Classify(err)
		if ae.Kind == apperr.KindConflict {
			// The retry screen shows the seat count the service answered with.
			if rerr := o.catalog.Refresh(ctx); rerr != nil {
				log.Printf("orchestrator: refresh catalog after conflict: %v", rerr)
			}
		}
		o.mu.Lock()
		o.lastErr = ae
		switch ae.Kind {
		case apperr.KindNetwork:
			// The booking may or may not exist remotely.
			o.stale = true
		case apperr.KindConflict:
			if o.pending != nil {
				if f, ok := o.catalog.Find(o.pending.Flight.ID); ok {
					o.pending.Flight = f
				}
			}
		}
		o.setState(StateAwaitingConfirmation)
		o.mu.Unlock()
		o.publish()
		return nil, ae
	}

	// Still in Booking here so no second confirmation can slip in.
	refreshErr := o.catalog.Refresh(ctx)

	o.mu.Lock()
	o.pending = nil
	o.lastBooking = booking
	o.stale = true
	o.lastErr = nil
	if refreshErr != nil {
		o.lastErr = apperr.Classify(refreshErr)
	}
	o.setState(StateBrowsing)
	o.mu.Unlock()
	o.publish()

	if o.publisher != nil {
		if perr := o.publisher.BookingCreated(context.WithoutCancel(ctx), *user, *booking); perr != nil {
			log.Printf("orchestrator: publish booking %d created: %v", booking.ID, perr)
		}
	}
	b := *booking
	return &b, nil
}

// Abandon drops the pending selection without touching the network.
func (o *Orchestrator) Abandon() (err error) {
	defer func() { o.observe("abandon", err) }()

	o.mu.Lock()
	if o.busy() {
		o.mu.Unlock()
		return ErrBusy
	}
	if o.state != StateAwaitingIdentification && o.state != StateAwaitingConfirmation {
		from := o.state
		o.mu.Unlock()
		return invalidTransition("abandon", from)
	}
	o.pending = nil
	o.lastErr = nil
	o.setState(StateBrowsing)
	o.mu.Unlock()

	o.publish()
	return nil
}

// LoadBookings fetches the current user's bookings, newest first. It always
// goes to the remote service. A list that arrives after a mutation, sign-in or
// logout has moved the workflow on is returned to the caller but not applied
// to the view.
func (o *Orchestrator) LoadBookings(ctx context.Context) (bookings []domain.Booking, err error) {
	defer func() { o.observe("load_bookings", err) }()

	o.mu.Lock()
	if o.busy() {
		o.mu.Unlock()
		return nil, ErrBusy
	}
	gen := o.bookingsGen
	user := o.session.CurrentUser()
	o.mu.Unlock()

	if user == nil {
		return nil, errSessionRequired()
	}

	list, err := o.inventory.ListBookings(ctx, user.ID)
	if err != nil {
		ae := apperr.Classify(err)
		o.mu.Lock()
		if gen == o.bookingsGen {
			o.lastErr = ae
			o.stale = true
		}
		o.mu.Unlock()
		o.publish()
		return nil, ae
	}
	// Bookings are joined with flights for display.
	if rerr := o.catalog.Refresh(ctx); rerr != nil {
		log.Printf("orchestrator: refresh catalog for bookings: %v", rerr)
	}
	sorted := sortBookings(list)

	o.mu.Lock()
	current := o.session.CurrentUser()
	if current == nil || current.ID != user.ID {
		o.mu.Unlock()
		log.Printf("orchestrator: drop bookings of user %d, session changed", user.ID)
		return nil, errSessionRequired()
	}
	if gen != o.bookingsGen {
		o.mu.Unlock()
		log.Printf("orchestrator: drop bookings of user %d fetched before a newer change", user.ID)
		return sorted, nil
	}
	o.bookings = sorted
	o.stale = false
	o.mu.Unlock()
	o.publish()

	return append([]domain.Booking(nil), sorted...), nil
}

// Logout forgets the current user. Any pending selection and the loaded
// bookings are dropped.
func (o *Orchestrator) Logout(ctx context.Context) (err error) {
	defer func() { o.observe("logout", err) }()

	o.mu.Lock()
	if o.busy() || o.identifying {
		o.mu.Unlock()
		return ErrBusy
	}
	o.pending = nil
	o.cancelTarget = 0
	o.bookings = nil
	o.lastBooking = nil
	o.lastErr = nil
	o.stale = true
	o.bookingsGen++
	o.setState(StateBrowsing)
	o.setCancelState(CancelIdle)
	o.mu.Unlock()

	if err := o.session.SetCurrentUser(ctx, nil); err != nil {
		ae := apperr.New(apperr.KindServer, "SESSION_WRITE_FAILED", "We could not sign you out. Please try again.")
		ae.Err = err
		o.mu.Lock()
		o.lastErr = ae
		o.mu.Unlock()
		o.publish()
		return ae
	}
	o.publish()
	return nil
}

// sortBookings orders bookings newest first, by id when times tie.
func sortBookings(list []domain.Booking) []domain.Booking {
	out := append([]domain.Booking(nil), list...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].BookedAt.Equal(out[j].BookedAt) {
			return out[i].BookedAt.After(out[j].BookedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
