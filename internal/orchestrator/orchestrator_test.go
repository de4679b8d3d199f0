package orchestrator

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/galaxium/internal/apperr"
	"github.com/Domenick1991/galaxium/internal/catalog"
	"github.com/Domenick1991/galaxium/internal/domain"
	"github.com/Domenick1991/galaxium/internal/inventory"
	"github.com/Domenick1991/galaxium/internal/inventory/inventorytest"
	"github.com/Domenick1991/galaxium/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) BookingCreated(ctx context.Context, user domain.User, booking domain.Booking) error {
	args := m.Called(ctx, user, booking)
	return args.Error(0)
}

func (m *MockPublisher) BookingCancelled(ctx context.Context, user domain.User, booking domain.Booking) error {
	args := m.Called(ctx, user, booking)
	return args.Error(0)
}

type recordingMetrics struct {
	mu      sync.Mutex
	intents []string
	states  []string
}

func (r *recordingMetrics) ObserveIntent(intent, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intent+"="+result)
}

func (r *recordingMetrics) ObserveState(flow, state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, flow+"="+state)
}

type fixture struct {
	srv     *inventorytest.Server
	store   *session.Store
	catalog *catalog.Catalog
	orch    *Orchestrator
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	srv := inventorytest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddFlight(inventorytest.Flight{
		ID: 100, Origin: "Earth", Destination: "Mars",
		DepartureTime: "2099-01-01T09:00:00Z", ArrivalTime: "2099-01-01T17:00:00Z",
		BasePrice: 1000000, EconomySeats: 6, BusinessSeats: 3, GalaxiumSeats: 1,
	})
	srv.AddFlight(inventorytest.Flight{
		ID: 101, Origin: "Jupiter", Destination: "Europa",
		DepartureTime: "2099-01-05T15:00:00Z", ArrivalTime: "2099-01-05T19:00:00Z",
		BasePrice: 2000000, EconomySeats: 6, BusinessSeats: 0, GalaxiumSeats: 1,
	})

	client := inventory.NewClient(srv.URL, 2*time.Second)
	store, err := session.Open(ctx, session.NewMemorySlot())
	require.NoError(t, err)
	cat := catalog.New(client)
	require.NoError(t, cat.Refresh(ctx))

	orch := New(client, cat, store, opts...)
	t.Cleanup(orch.Close)
	return &fixture{srv: srv, store: store, catalog: cat, orch: orch}
}

func (f *fixture) signIn(t *testing.T, name, email string) domain.User {
	t.Helper()
	u := f.srv.AddUser(name, email)
	user := domain.User{ID: u.ID, Name: u.Name, Email: u.Email}
	require.NoError(t, f.store.SetCurrentUser(context.Background(), &user))
	return user
}

// remoteCalls counts every request the fake service received.
func (f *fixture) remoteCalls() int {
	n := 0
	for _, route := range []string{
		"GET /flights", "POST /register", "GET /user", "POST /book",
		"GET /bookings/:user_id", "POST /cancel/:booking_id",
	} {
		n += f.srv.Calls(route)
	}
	return n
}

func requireKind(t *testing.T, err error, kind apperr.Kind, code string) {
	t.Helper()
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, kind, ae.Kind)
	if code != "" {
		assert.Equal(t, code, ae.Code)
	}
}

func TestSelectFlight_WithoutUserAsksForIdentification(t *testing.T) {
	f := newFixture(t)
	calls := f.remoteCalls()

	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassBusiness))

	v := f.orch.View()
	assert.Equal(t, StateAwaitingIdentification, v.State)
	require.NotNil(t, v.Pending)
	assert.Equal(t, int64(100), v.Pending.Flight.ID)
	assert.Equal(t, domain.SeatClassBusiness, v.Pending.SeatClass)
	assert.Equal(t, int64(2500000), v.PendingPrice)
	assert.Equal(t, calls, f.remoteCalls())
}

func TestSelectFlight_WithUserGoesToConfirmation(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "Alice", "alice@example.com")

	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassEconomy))

	assert.Equal(t, StateAwaitingConfirmation, f.orch.View().State)
}

func TestSelectFlight_Rejected(t *testing.T) {
	f := newFixture(t)

	err := f.orch.SelectFlight(100, domain.SeatClass("first"))
	requireKind(t, err, apperr.KindValidation, apperr.CodeInvalidSeatClass)

	err = f.orch.SelectFlight(999, domain.SeatClassEconomy)
	requireKind(t, err, apperr.KindNotFound, apperr.CodeFlightNotFound)

	err = f.orch.SelectFlight(0, domain.SeatClassEconomy)
	requireKind(t, err, apperr.KindValidation, "")

	v := f.orch.View()
	assert.Equal(t, StateBrowsing, v.State)
	assert.Nil(t, v.Pending)

	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassEconomy))
	err = f.orch.SelectFlight(101, domain.SeatClassEconomy)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, int64(100), f.orch.View().Pending.Flight.ID)
}

func TestBookingFlow_RegisterAndConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassBusiness))

	user, err := f.orch.Identify(ctx, IdentifyRequest{Mode: IdentifyRegister, Name: " Alice ", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Name)
	require.NotNil(t, f.store.CurrentUser())
	assert.Equal(t, user.ID, f.store.CurrentUser().ID)

	v := f.orch.View()
	assert.Equal(t, StateAwaitingConfirmation, v.State)
	require.NotNil(t, v.Pending)
	assert.Equal(t, int64(100), v.Pending.Flight.ID)

	booking, err := f.orch.ConfirmBooking(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SeatClassBusiness, booking.SeatClass)
	assert.Equal(t, domain.BookingStatusBooked, booking.Status)
	assert.Equal(t, int64(2500000), booking.PricePaid)
	assert.Equal(t, user.ID, booking.UserID)

	v = f.orch.View()
	assert.Equal(t, StateBrowsing, v.State)
	assert.Nil(t, v.Pending)
	assert.Nil(t, v.Error)
	require.NotNil(t, v.LastBooking)
	assert.Equal(t, booking.ID, v.LastBooking.ID)

	assert.Equal(t, 1, f.srv.Calls("POST /book"))
	assert.Equal(t, 2, f.srv.Calls("GET /flights"), "catalog refreshed exactly once after booking")
	flight, ok := f.catalog.Find(100)
	require.True(t, ok)
	assert.Equal(t, 2, flight.SeatsAvailable(domain.SeatClassBusiness))
}

func TestConfirmBooking_SoldOutKeepsSelection(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "Alice", "alice@example.com")
	require.NoError(t, f.orch.SelectFlight(101, domain.SeatClassBusiness))

	booking, err := f.orch.ConfirmBooking(context.Background())

	assert.Nil(t, booking)
	requireKind(t, err, apperr.KindConflict, apperr.CodeNoSeats)
	v := f.orch.View()
	assert.Equal(t, StateAwaitingConfirmation, v.State)
	require.NotNil(t, v.Pending)
	assert.Equal(t, int64(101), v.Pending.Flight.ID)
	require.NotNil(t, v.Error)
	assert.Equal(t, apperr.KindConflict, v.Error.Kind)
	assert.NotEmpty(t, v.Error.Message)
	assert.Equal(t, 2, f.srv.Calls("GET /flights"), "catalog refreshed once after the conflict")
	assert.Equal(t, 0, v.Pending.Flight.SeatsAvailable(domain.SeatClassBusiness))

	require.NoError(t, f.orch.Abandon())
	assert.Equal(t, StateBrowsing, f.orch.View().State)
}

func TestConfirmBooking_ConcurrentSeatLoss(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "Alice", "alice@example.com")
	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassGalaxium))

	require.Equal(t, 1, f.orch.View().Pending.Flight.SeatsAvailable(domain.SeatClassGalaxium))

	f.srv.SetSeats(100, "galaxium", 0)
	_, err := f.orch.ConfirmBooking(context.Background())

	requireKind(t, err, apperr.KindConflict, apperr.CodeNoSeats)
	v := f.orch.View()
	assert.Equal(t, StateAwaitingConfirmation, v.State)
	require.NotNil(t, v.Pending)
	assert.Equal(t, 0, v.Pending.Flight.SeatsAvailable(domain.SeatClassGalaxium), "pending selection shows the refreshed count")
	flight, ok := f.catalog.Find(100)
	require.True(t, ok)
	assert.Equal(t, 0, flight.SeatsAvailable(domain.SeatClassGalaxium))
}

func TestConfirmBooking_ServerErrorKeepsSelection(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "Alice", "alice@example.com")
	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassEconomy))
	f.srv.FailWith("POST /book", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	_, err := f.orch.ConfirmBooking(context.Background())

	requireKind(t, err, apperr.KindServer, "HTTP_500")
	v := f.orch.View()
	assert.Equal(t, StateAwaitingConfirmation, v.State)
	assert.NotNil(t, v.Pending)

	f.srv.ClearFaults()
	booking, err := f.orch.ConfirmBooking(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SeatClassEconomy, booking.SeatClass)
	assert.Equal(t, 2, f.srv.Calls("POST /book"))
}

func TestConfirmBooking_CancelledContextIsUnknownOutcome(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "Alice", "alice@example.com")
	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassEconomy))
	release := make(chan struct{})
	defer close(release)
	f.srv.FailWith("POST /book", inventorytest.Hang(release))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := f.orch.ConfirmBooking(ctx)

	requireKind(t, err, apperr.KindNetwork, apperr.CodeNetwork)
	v := f.orch.View()
	assert.Equal(t, StateAwaitingConfirmation, v.State)
	assert.NotNil(t, v.Pending)
	assert.True(t, v.BookingsStale)
	assert.False(t, v.Busy)
}

func TestConfirmBooking_RefreshFailureStillReturnsBooking(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "Alice", "alice@example.com")
	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassBusiness))
	f.srv.FailWith("GET /flights", inventorytest.Envelope(http.StatusOK, "SERVER_ERROR", "database unavailable"))

	booking, err := f.orch.ConfirmBooking(context.Background())

	require.NoError(t, err)
	require.NotNil(t, booking)
	v := f.orch.View()
	assert.Equal(t, StateBrowsing, v.State)
	require.NotNil(t, v.Error)
	assert.Equal(t, apperr.KindServer, v.Error.Kind)
	flight, ok := f.catalog.Find(100)
	require.True(t, ok)
	assert.Equal(t, 3, flight.SeatsAvailable(domain.SeatClassBusiness), "previous catalog retained")
}

func TestConfirmBooking_InvalidFromBrowsing(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "Alice", "alice@example.com")

	_, err := f.orch.ConfirmBooking(context.Background())

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 0, f.srv.Calls("POST /book"))
	assert.Equal(t, StateBrowsing, f.orch.View().State)
}

func TestConfirmBooking_SessionLostReturnsToIdentification(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "Alice", "alice@example.com")
	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassEconomy))
	require.NoError(t, f.store.SetCurrentUser(context.Background(), nil))

	_, err := f.orch.ConfirmBooking(context.Background())

	requireKind(t, err, apperr.KindValidation, codeSessionRequired)
	v := f.orch.View()
	assert.Equal(t, StateAwaitingIdentification, v.State)
	assert.NotNil(t, v.Pending)
	assert.Equal(t, 0, f.srv.Calls("POST /book"))
}

func TestIdentify_SignInUnknownUserStays(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassEconomy))

	_, err := f.orch.Identify(context.Background(), IdentifyRequest{Mode: IdentifySignIn, Name: "Bob", Email: "bob@example.com"})

	requireKind(t, err, apperr.KindNotFound, apperr.CodeUserNotFound)
	v := f.orch.View()
	assert.Equal(t, StateAwaitingIdentification, v.State)
	assert.NotNil(t, v.Pending)
	require.NotNil(t, v.Error)
	assert.Equal(t, apperr.KindNotFound, v.Error.Kind)
	assert.Nil(t, f.store.CurrentUser())
	assert.Equal(t, 0, f.srv.Calls("POST /register"))
}

func TestIdentify_SignInExistingUser(t *testing.T) {
	f := newFixture(t)
	existing := f.srv.AddUser("Alice", "alice@example.com")
	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassGalaxium))

	user, err := f.orch.Identify(context.Background(), IdentifyRequest{Mode: IdentifySignIn, Name: "Alice", Email: "alice@example.com"})

	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID)
	v := f.orch.View()
	assert.Equal(t, StateAwaitingConfirmation, v.State)
	require.NotNil(t, v.User)
	assert.Equal(t, existing.ID, v.User.ID)
	assert.Equal(t, domain.SeatClassGalaxium, v.Pending.SeatClass)
}

func TestIdentify_RegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.srv.AddUser("Alice", "alice@example.com")
	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassEconomy))

	_, err := f.orch.Identify(context.Background(), IdentifyRequest{Mode: IdentifyRegister, Name: "Alice", Email: "alice@example.com"})

	requireKind(t, err, apperr.KindConflict, apperr.CodeEmailExists)
	assert.Equal(t, StateAwaitingIdentification, f.orch.View().State)
}

func TestIdentify_LocalValidationSkipsNetwork(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassEconomy))
	calls := f.remoteCalls()

	_, err := f.orch.Identify(context.Background(), IdentifyRequest{Mode: IdentifyRegister, Name: "Alice", Email: "alice@"})
	requireKind(t, err, apperr.KindValidation, apperr.CodeInvalidEmail)

	_, err = f.orch.Identify(context.Background(), IdentifyRequest{Mode: IdentifySignIn, Name: "  ", Email: "alice@example.com"})
	requireKind(t, err, apperr.KindValidation, apperr.CodeValidation)

	_, err = f.orch.Identify(context.Background(), IdentifyRequest{Mode: "Register", Name: "Alice", Email: "alice@example.com"})
	requireKind(t, err, apperr.KindValidation, codeInvalidIdentifyMode)

	assert.Equal(t, calls, f.remoteCalls())
	assert.Equal(t, StateAwaitingIdentification, f.orch.View().State)
}

func TestIdentify_InvalidOutsideIdentification(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Identify(context.Background(), IdentifyRequest{Name: "Alice", Email: "alice@example.com"})

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 0, f.srv.Calls("GET /user"))
}

func TestAbandon_NeverTouchesNetwork(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassEconomy))
	calls := f.remoteCalls()
	require.NoError(t, f.orch.Abandon())
	v := f.orch.View()
	assert.Equal(t, StateBrowsing, v.State)
	assert.Nil(t, v.Pending)

	f.signIn(t, "Alice", "alice@example.com")
	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassEconomy))
	require.NoError(t, f.orch.Abandon())
	assert.Equal(t, StateBrowsing, f.orch.View().State)
	assert.Equal(t, calls, f.remoteCalls())

	assert.ErrorIs(t, f.orch.Abandon(), ErrInvalidTransition)
}

func TestCancellation_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signIn(t, "Alice", "alice@example.com")
	f.srv.SetSeats(100, "business", 2)
	b := f.srv.AddBooking(inventorytest.Booking{
		UserID: user.ID, FlightID: 100, Status: "booked", SeatClass: "business",
		PricePaid: 2500000, BookingTime: "2099-01-01T08:00:00",
	})

	bookings, err := f.orch.LoadBookings(ctx)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	v := f.orch.View()
	require.Len(t, v.ActiveBookings, 1)
	require.NotNil(t, v.ActiveBookings[0].Flight)
	assert.Equal(t, "Mars", v.ActiveBookings[0].Flight.Destination)
	assert.False(t, v.BookingsStale)

	require.NoError(t, f.orch.RequestCancellation(b.ID))
	assert.Equal(t, CancelAwaitingConfirmation, f.orch.View().CancelState)

	cancelled, err := f.orch.ConfirmCancellation(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, cancelled.Status)

	v = f.orch.View()
	assert.Equal(t, CancelIdle, v.CancelState)
	assert.Empty(t, v.ActiveBookings)
	require.Len(t, v.PastBookings, 1)
	assert.Equal(t, domain.BookingStatusCancelled, v.PastBookings[0].Booking.Status)
	assert.Equal(t, 2, f.srv.Calls("GET /bookings/:user_id"))

	remote, ok := f.srv.Booking(b.ID)
	require.True(t, ok)
	assert.Equal(t, "cancelled", remote.Status)
	flight, _ := f.catalog.Find(100)
	assert.Equal(t, 3, flight.SeatsAvailable(domain.SeatClassBusiness))
}

func TestCancellation_AlreadyCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signIn(t, "Alice", "alice@example.com")
	b := f.srv.AddBooking(inventorytest.Booking{
		UserID: user.ID, FlightID: 100, Status: "cancelled", SeatClass: "economy", PricePaid: 1000000,
	})
	_, err := f.orch.LoadBookings(ctx)
	require.NoError(t, err)
	before := f.orch.View().PastBookings

	require.NoError(t, f.orch.RequestCancellation(b.ID))
	_, err = f.orch.ConfirmCancellation(ctx)

	requireKind(t, err, apperr.KindConflict, apperr.CodeAlreadyCancelled)
	v := f.orch.View()
	assert.Equal(t, CancelIdle, v.CancelState)
	assert.Equal(t, before, v.PastBookings)
	require.NotNil(t, v.Error)
	assert.Equal(t, apperr.KindConflict, v.Error.Kind)
	assert.Equal(t, 1, f.srv.Calls("POST /cancel/:booking_id"), "no retry")
	assert.Equal(t, 1, f.srv.Calls("GET /bookings/:user_id"))
}

func TestCancellation_UnknownBooking(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "Alice", "alice@example.com")

	require.NoError(t, f.orch.RequestCancellation(42))
	_, err := f.orch.ConfirmCancellation(context.Background())

	requireKind(t, err, apperr.KindNotFound, apperr.CodeBookingNotFound)
	assert.Equal(t, CancelIdle, f.orch.View().CancelState)
}

func TestCancellation_AbandonAndInvalid(t *testing.T) {
	f := newFixture(t)
	calls := f.remoteCalls()

	_, err := f.orch.ConfirmCancellation(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, f.orch.AbandonCancellation(), ErrInvalidTransition)

	require.NoError(t, f.orch.RequestCancellation(7))
	assert.ErrorIs(t, f.orch.RequestCancellation(8), ErrInvalidTransition)
	require.NoError(t, f.orch.AbandonCancellation())

	v := f.orch.View()
	assert.Equal(t, CancelIdle, v.CancelState)
	assert.Zero(t, v.CancelTarget)
	assert.Equal(t, calls, f.remoteCalls())
}

func TestLoadBookings_RequiresUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.LoadBookings(context.Background())

	requireKind(t, err, apperr.KindValidation, codeSessionRequired)
	assert.Equal(t, 0, f.srv.Calls("GET /bookings/:user_id"))
}

func TestLoadBookings_AlwaysRefetches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.signIn(t, "Alice", "alice@example.com")

	_, err := f.orch.LoadBookings(ctx)
	require.NoError(t, err)
	f.srv.AddBooking(inventorytest.Booking{UserID: user.ID, FlightID: 101, Status: "completed", SeatClass: "economy"})
	bookings, err := f.orch.LoadBookings(ctx)
	require.NoError(t, err)

	assert.Len(t, bookings, 1)
	assert.Equal(t, 2, f.srv.Calls("GET /bookings/:user_id"))
	require.Len(t, f.orch.View().PastBookings, 1)
}

func TestView_BookingOnRemovedFlight(t *testing.T) {
	f := newFixture(t)
	user := f.signIn(t, "Alice", "alice@example.com")
	f.srv.AddBooking(inventorytest.Booking{UserID: user.ID, FlightID: 101, Status: "booked", SeatClass: "economy"})
	f.srv.RemoveFlight(101)

	_, err := f.orch.LoadBookings(context.Background())
	require.NoError(t, err)

	v := f.orch.View()
	require.Len(t, v.ActiveBookings, 1)
	assert.Nil(t, v.ActiveBookings[0].Flight)
	assert.Equal(t, 1, v.TotalFlights)
}

func TestView_SearchFiltersFlights(t *testing.T) {
	f := newFixture(t)

	f.orch.Search("  europa ")

	v := f.orch.View()
	assert.Equal(t, "europa", v.SearchTerm)
	require.Len(t, v.Flights, 1)
	assert.Equal(t, int64(101), v.Flights[0].ID)
	assert.Equal(t, 2, v.TotalFlights)

	f.orch.Search("")
	assert.Len(t, f.orch.View().Flights, 2)
}

func TestLogout_DropsSelection(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "Alice", "alice@example.com")
	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassEconomy))

	require.NoError(t, f.orch.Logout(context.Background()))

	v := f.orch.View()
	assert.Equal(t, StateBrowsing, v.State)
	assert.Nil(t, v.Pending)
	assert.Nil(t, v.User)
	assert.Nil(t, f.store.CurrentUser())
}

func TestSubscribe_ReceivesViews(t *testing.T) {
	f := newFixture(t)
	var (
		mu     sync.Mutex
		states []State
	)
	unsubscribe := f.orch.Subscribe(func(v View) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, v.State)
	})

	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassEconomy))
	require.NoError(t, f.orch.Abandon())
	unsubscribe()
	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassEconomy))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateAwaitingIdentification, StateBrowsing}, states)
}

func TestSubscribe_SessionChangesRepublish(t *testing.T) {
	f := newFixture(t)
	var got []*domain.User
	f.orch.Subscribe(func(v View) { got = append(got, v.User) })

	f.signIn(t, "Alice", "alice@example.com")

	require.Len(t, got, 1)
	require.NotNil(t, got[0])
	assert.Equal(t, "Alice", got[0].Name)
}

func TestPublisher_ToldAboutCommittedChanges(t *testing.T) {
	pub := new(MockPublisher)
	f := newFixture(t, WithPublisher(pub))
	ctx := context.Background()
	user := f.signIn(t, "Alice", "alice@example.com")

	pub.On("BookingCreated", mock.Anything, user, mock.MatchedBy(func(b domain.Booking) bool {
		return b.FlightID == 100 && b.Status == domain.BookingStatusBooked
	})).Return(assert.AnError).Once()
	pub.On("BookingCancelled", mock.Anything, user, mock.MatchedBy(func(b domain.Booking) bool {
		return b.Status == domain.BookingStatusCancelled
	})).Return(nil).Once()

	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassEconomy))
	booking, err := f.orch.ConfirmBooking(ctx)
	require.NoError(t, err, "publish failure does not fail the booking")

	require.NoError(t, f.orch.RequestCancellation(booking.ID))
	_, err = f.orch.ConfirmCancellation(ctx)
	require.NoError(t, err)

	pub.AssertExpectations(t)
}

func TestPublisher_NotCalledOnFailure(t *testing.T) {
	pub := new(MockPublisher)
	f := newFixture(t, WithPublisher(pub))
	f.signIn(t, "Alice", "alice@example.com")
	require.NoError(t, f.orch.SelectFlight(101, domain.SeatClassBusiness))

	_, err := f.orch.ConfirmBooking(context.Background())

	require.Error(t, err)
	pub.AssertNotCalled(t, "BookingCreated", mock.Anything, mock.Anything, mock.Anything)
}

func TestMetrics_RecordsIntentsAndStates(t *testing.T) {
	m := &recordingMetrics{}
	f := newFixture(t, WithMetrics(m))

	require.NoError(t, f.orch.SelectFlight(100, domain.SeatClassEconomy))
	_, err := f.orch.ConfirmBooking(context.Background())
	require.Error(t, err)
	require.NoError(t, f.orch.Abandon())

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, []string{
		"select_flight=ok",
		"confirm_booking=invalid_transition",
		"abandon=ok",
	}, m.intents)
	assert.Equal(t, []string{
		"booking=awaiting_identification",
		"booking=browsing",
	}, m.states)
}
