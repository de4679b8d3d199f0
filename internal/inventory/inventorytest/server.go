// Package inventorytest runs an in-memory stand-in for the remote booking
// service over HTTP, speaking the same wire format, for use in tests.
package inventorytest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type Flight struct {
	ID            int64
	Origin        string
	Destination   string
	DepartureTime string
	ArrivalTime   string
	BasePrice     int64
	EconomySeats  int
	BusinessSeats int
	GalaxiumSeats int
}

type User struct {
	ID    int64
	Name  string
	Email string
}

type Booking struct {
	ID          int64
	UserID      int64
	FlightID    int64
	Status      string
	BookingTime string
	SeatClass   string
	PricePaid   int64
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	flights  []*Flight
	users    []*User
	bookings []*Booking
	nextUser int64
	nextBook int64
	calls    map[string]int
	faults   map[string]func(c *gin.Context)
}

func NewServer() *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		nextUser: 1,
		nextBook: 1,
		calls:    make(map[string]int),
		faults:   make(map[string]func(c *gin.Context)),
	}

	r := gin.New()
	r.Use(s.track)
	r.GET("/", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "OK"}) })
	r.GET("/flights", s.listFlights)
	r.POST("/register", s.register)
	r.GET("/user", s.findUser)
	r.POST("/book", s.book)
	r.GET("/bookings/:user_id", s.listBookings)
	r.POST("/cancel/:booking_id", s.cancel)

	s.Server = httptest.NewServer(r)
	return s
}

func (s *Server) AddFlight(f Flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := f
	s.flights = append(s.flights, &cp)
}

func (s *Server) AddUser(name, email string) User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &User{ID: s.nextUser, Name: name, Email: email}
	s.nextUser++
	s.users = append(s.users, u)
	return *u
}

func (s *Server) AddBooking(b Booking) Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := b
	cp.ID = s.nextBook
	s.nextBook++
	s.bookings = append(s.bookings, &cp)
	return cp
}

// RemoveFlight deletes a flight as another operator would.
func (s *Server) RemoveFlight(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.flights {
		if f.ID == id {
			s.flights = append(s.flights[:i], s.flights[i+1:]...)
			return
		}
	}
}

// SetSeats overwrites one class's remaining seats, simulating a concurrent client.
func (s *Server) SetSeats(flightID int64, class string, seats int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f := s.flight(flightID); f != nil {
		*seatsOf(f, class) = seats
	}
}

func (s *Server) Booking(id int64) (Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID == id {
			return *b, true
		}
	}
	return Booking{}, false
}

// Calls reports how many requests hit the route, e.g. "POST /book".
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// FailWith makes every request to route answer with the given handler.
func (s *Server) FailWith(route string, h func(c *gin.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[route] = h
}

func (s *Server) ClearFaults() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]func(c *gin.Context))
}

// Envelope answers with the service's failure payload.
func Envelope(status int, code, msg string) func(c *gin.Context) {
	return func(c *gin.Context) {
		c.JSON(status, gin.H{"success": false, "error": msg, "error_code": code, "details": msg})
	}
}

// Hang blocks until the client gives up.
func Hang(release <-chan struct{}) func(c *gin.Context) {
	return func(c *gin.Context) {
		select {
		case <-release:
		case <-c.Request.Context().Done():
		}
		c.Status(http.StatusGatewayTimeout)
	}
}

func (s *Server) track(c *gin.Context) {
	route := c.Request.Method + " " + c.FullPath()
	s.mu.Lock()
	s.calls[route]++
	fault := s.faults[route]
	s.mu.Unlock()
	if fault != nil {
		fault(c)
		c.Abort()
		return
	}
	c.Next()
}

func (s *Server) listFlights(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gin.H, 0, len(s.flights))
	for _, f := range s.flights {
		out = append(out, gin.H{
			"flight_id":                f.ID,
			"origin":                   f.Origin,
			"destination":              f.Destination,
			"departure_time":           f.DepartureTime,
			"arrival_time":             f.ArrivalTime,
			"base_price":               f.BasePrice,
			"economy_seats_available":  f.EconomySeats,
			"business_seats_available": f.BusinessSeats,
			"galaxium_seats_available": f.GalaxiumSeats,
			"economy_price":            f.BasePrice,
			"business_price":           int64(float64(f.BasePrice) * 2.5),
			"galaxium_price":           f.BasePrice * 5,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) register(c *gin.Context) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Envelope(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())(c)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == req.Email {
			Envelope(http.StatusOK, "EMAIL_EXISTS", fmt.Sprintf("Email '%s' is already registered.", req.Email))(c)
			return
		}
	}
	u := &User{ID: s.nextUser, Name: req.Name, Email: req.Email}
	s.nextUser++
	s.users = append(s.users, u)
	c.JSON(http.StatusOK, userJSON(u))
}

func (s *Server) findUser(c *gin.Context) {
	name, email := c.Query("name"), c.Query("email")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Name == name && u.Email == email {
			c.JSON(http.StatusOK, userJSON(u))
			return
		}
	}
	Envelope(http.StatusOK, "USER_NOT_FOUND", fmt.Sprintf("User not found with name '%s' and email '%s'.", name, email))(c)
}

func (s *Server) book(c *gin.Context) {
	var req struct {
		UserID    int64  `json:"user_id"`
		Name      string `json:"name"`
		FlightID  int64  `json:"flight_id"`
		SeatClass string `json:"seat_class"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Envelope(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())(c)
		return
	}
	if req.SeatClass == "" {
		req.SeatClass = "economy"
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.flight(req.FlightID)
	if f == nil {
		Envelope(http.StatusOK, "FLIGHT_NOT_FOUND", fmt.Sprintf("The specified flight_id %d does not exist.", req.FlightID))(c)
		return
	}
	seats := seatsOf(f, req.SeatClass)
	if seats == nil {
		Envelope(http.StatusOK, "INVALID_SEAT_CLASS", fmt.Sprintf("Seat class '%s' is not offered.", req.SeatClass))(c)
		return
	}
	if *seats < 1 {
		Envelope(http.StatusOK, "NO_SEATS_AVAILABLE", "The flight is fully booked for the selected class.")(c)
		return
	}
	var user *User
	for _, u := range s.users {
		if u.ID == req.UserID {
			user = u
		}
	}
	if user == nil {
		Envelope(http.StatusOK, "USER_NOT_FOUND", fmt.Sprintf("User with ID %d is not registered.", req.UserID))(c)
		return
	}
	if user.Name != req.Name {
		Envelope(http.StatusOK, "NAME_MISMATCH", fmt.Sprintf("User ID %d exists but the name does not match.", req.UserID))(c)
		return
	}

	*seats--
	b := &Booking{
		ID:          s.nextBook,
		UserID:      user.ID,
		FlightID:    f.ID,
		Status:      "booked",
		BookingTime: time.Now().UTC().Format("2006-01-02T15:04:05.999999"),
		SeatClass:   req.SeatClass,
		PricePaid:   priceOf(f, req.SeatClass),
	}
	s.nextBook++
	s.bookings = append(s.bookings, b)
	c.JSON(http.StatusOK, bookingJSON(b))
}

func (s *Server) listBookings(c *gin.Context) {
	userID, _ := strconv.ParseInt(c.Param("user_id"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gin.H, 0)
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, bookingJSON(b))
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) cancel(c *gin.Context) {
	id, _ := strconv.ParseInt(c.Param("booking_id"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	var b *Booking
	for _, candidate := range s.bookings {
		if candidate.ID == id {
			b = candidate
		}
	}
	if b == nil {
		Envelope(http.StatusOK, "BOOKING_NOT_FOUND", fmt.Sprintf("Booking with ID %d not found.", id))(c)
		return
	}
	switch b.Status {
	case "cancelled":
		Envelope(http.StatusOK, "ALREADY_CANCELLED", fmt.Sprintf("Booking %d is already cancelled.", id))(c)
		return
	case "completed":
		Envelope(http.StatusOK, "ALREADY_COMPLETED", fmt.Sprintf("Booking %d is already completed.", id))(c)
		return
	}
	if f := s.flight(b.FlightID); f != nil {
		if seats := seatsOf(f, b.SeatClass); seats != nil {
			*seats++
		}
	}
	b.Status = "cancelled"
	c.JSON(http.StatusOK, bookingJSON(b))
}

func (s *Server) flight(id int64) *Flight {
	for _, f := range s.flights {
		if f.ID == id {
			return f
		}
	}
	return nil
}

func seatsOf(f *Flight, class string) *int {
	switch class {
	case "economy":
		return &f.EconomySeats
	case "business":
		return &f.BusinessSeats
	case "galaxium":
		return &f.GalaxiumSeats
	}
	return nil
}

func priceOf(f *Flight, class string) int64 {
	switch class {
	case "business":
		return int64(float64(f.BasePrice) * 2.5)
	case "galaxium":
		return f.BasePrice * 5
	}
	return f.BasePrice
}

func userJSON(u *User) gin.H {
	return gin.H{"user_id": u.ID, "name": u.Name, "email": u.Email}
}

func bookingJSON(b *Booking) gin.H {
	return gin.H{
		"booking_id":   b.ID,
		"user_id":      b.UserID,
		"flight_id":    b.FlightID,
		"status":       b.Status,
		"booking_time": b.BookingTime,
		"seat_class":   b.SeatClass,
		"price_paid":   b.PricePaid,
	}
}
