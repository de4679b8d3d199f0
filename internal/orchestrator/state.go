package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/galaxium/internal/apperr"
	"github.com/Domenick1991/galaxium/internal/domain"
)

type State string

const (
	StateBrowsing               State = "browsing"
	StateAwaitingIdentification State = "awaiting_identification"
	StateAwaitingConfirmation   State = "awaiting_confirmation"
	StateBooking                State = "booking"
)

type CancelState string

const (
	CancelIdle                 CancelState = "idle"
	CancelAwaitingConfirmation CancelState = "awaiting_cancel_confirmation"
	CancelCancelling           CancelState = "cancelling"
)

var (
	// ErrBusy rejects any intent while a booking or cancellation request is
	// in flight. Intents are never queued.
	ErrBusy              = errors.New("a booking request is already in progress")
	ErrInvalidTransition = errors.New("intent not allowed in the current state")
)

const codeSessionRequired = "SESSION_REQUIRED"

func errSessionRequired() *apperr.Error {
	return apperr.Validation(codeSessionRequired, "Please sign in to continue.")
}

func invalidTransition(intent string, from fmt.Stringer) error {
	return fmt.Errorf("%s from %s: %w", intent, from, ErrInvalidTransition)
}

func (s State) String() string       { return string(s) }
func (s CancelState) String() string { return string(s) }

type IdentifyMode string

const (
	IdentifySignIn   IdentifyMode = "sign_in"
	IdentifyRegister IdentifyMode = "register"
)

const codeInvalidIdentifyMode = "INVALID_IDENTIFY_MODE"

// ParseIdentifyMode accepts sign_in or register. A blank mode means sign-in.
func ParseIdentifyMode(s string) (IdentifyMode, error) {
	switch IdentifyMode(s) {
	case "", IdentifySignIn:
		return IdentifySignIn, nil
	case IdentifyRegister:
		return IdentifyRegister, nil
	}
	return "", apperr.Validation(codeInvalidIdentifyMode, fmt.Sprintf("Unknown sign-in mode %q. Use sign_in or register.", s))
}

type IdentifyRequest struct {
	Mode  IdentifyMode
	Name  string
	Email string
}

type Inventory interface {
	RegisterUser(ctx context.Context, name, email string) (*domain.User, error)
	FindUser(ctx context.Context, name, email string) (*domain.User, error)
	CreateBooking(ctx context.Context, user domain.User, flightID int64, class domain.SeatClass) (*domain.Booking, error)
	ListBookings(ctx context.Context, userID int64) ([]domain.Booking, error)
	CancelBooking(ctx context.Context, bookingID int64) (*domain.Booking, error)
}

type Catalog interface {
	Refresh(ctx context.Context) error
	Flights() []domain.Flight
	Find(id int64) (domain.Flight, bool)
}

type Session interface {
	CurrentUser() *domain.User
	SetCurrentUser(ctx context.Context, u *domain.User) error
	Subscribe(fn func(*domain.User)) func()
}

// EventPublisher is told about committed bookings and cancellations.
type EventPublisher interface {
	BookingCreated(ctx context.Context, user domain.User, booking domain.Booking) error
	BookingCancelled(ctx context.Context, user domain.User, booking domain.Booking) error
}

type Metrics interface {
	ObserveIntent(intent, result string)
	ObserveState(flow, state string)
}
