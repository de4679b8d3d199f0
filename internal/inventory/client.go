// Package inventory is the typed client for the remote flight and booking
// service. Every call issues exactly one request and returns either a decoded
// payload or an *apperr.Error. Nothing is retried here.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Domenick1991/galaxium/internal/apperr"
	"github.com/Domenick1991/galaxium/internal/domain"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// Observer receives the outcome of every remote call. kind is empty on success.
type Observer interface {
	ObserveRemoteCall(op string, kind apperr.Kind, elapsed time.Duration)
}

type Client struct {
	baseURL  string
	http     *http.Client
	observer Observer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ListFlights(ctx context.Context) ([]domain.Flight, error) {
	var out []flightDTO
	if err := c.do(ctx, "list_flights", http.MethodGet, "/flights", nil, &out); err != nil {
		return nil, err
	}
	flights := make([]domain.Flight, 0, len(out))
	for _, f := range out {
		flights = append(flights, f.toDomain())
	}
	return flights, nil
}

func (c *Client) RegisterUser(ctx context.Context, name, email string) (*domain.User, error) {
	name, email, err := apperr.ValidateCredentials(name, email)
	if err != nil {
		return nil, err
	}
	var out userDTO
	if err := c.do(ctx, "register_user", http.MethodPost, "/register", registerRequest{Name: name, Email: email}, &out); err != nil {
		return nil, err
	}
	u := out.toDomain()
	return &u, nil
}

func (c *Client) FindUser(ctx context.Context, name, email string) (*domain.User, error) {
	name, email, err := apperr.ValidateCredentials(name, email)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("name", name)
	q.Set("email", email)
	var out userDTO
	if err := c.do(ctx, "find_user", http.MethodGet, "/user?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	u := out.toDomain()
	return &u, nil
}

// CreateBooking books one seat. The service checks the user's name against
// the id, so the whole user is passed.
func (c *Client) CreateBooking(ctx context.Context, user domain.User, flightID int64, class domain.SeatClass) (*domain.Booking, error) {
	if err := apperr.ValidateID("user id", user.ID); err != nil {
		return nil, err
	}
	if err := apperr.ValidateID("flight id", flightID); err != nil {
		return nil, err
	}
	if !class.Valid() {
		return nil, apperr.Validation(apperr.CodeInvalidSeatClass, fmt.Sprintf("Seat class %q is not offered.", class))
	}
	req := bookRequest{UserID: user.ID, Name: user.Name, FlightID: flightID, SeatClass: string(class)}
	var out bookingDTO
	if err := c.do(ctx, "create_booking", http.MethodPost, "/book", req, &out); err != nil {
		return nil, err
	}
	b := out.toDomain()
	return &b, nil
}

func (c *Client) ListBookings(ctx context.Context, userID int64) ([]domain.Booking, error) {
	if err := apperr.ValidateID("user id", userID); err != nil {
		return nil, err
	}
	var out []bookingDTO
	if err := c.do(ctx, "list_bookings", http.MethodGet, "/bookings/"+strconv.FormatInt(userID, 10), nil, &out); err != nil {
		return nil, err
	}
	bookings := make([]domain.Booking, 0, len(out))
	for _, b := range out {
		bookings = append(bookings, b.toDomain())
	}
	return bookings, nil
}

func (c *Client) CancelBooking(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	if err := apperr.ValidateID("booking id", bookingID); err != nil {
		return nil, err
	}
	var out bookingDTO
	if err := c.do(ctx, "cancel_booking", http.MethodPost, "/cancel/"+strconv.FormatInt(bookingID, 10), nil, &out); err != nil {
		return nil, err
	}
	b := out.toDomain()
	return &b, nil
}

// Ping checks the service health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, "ping", http.MethodGet, "/", nil, &out); err != nil {
		return err
	}
	if !strings.EqualFold(out.Status, "ok") {
		return apperr.New(apperr.KindServer, apperr.CodeServer, fmt.Sprintf("Booking service reported status %q.", out.Status))
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) (err error) {
	start := time.Now()
	requestID := uuid.NewString()
	defer func() {
		var kind apperr.Kind
		if err != nil {
			kind = apperr.KindOf(err)
			log.Printf("inventory %s %s [%s] failed: %v", method, path, requestID, err)
		}
		if c.observer != nil {
			c.observer.ObserveRemoteCall(op, kind, time.Since(start))
		}
	}()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperr.Classify(fmt.Errorf("marshal %s request: %w", op, err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperr.Classify(fmt.Errorf("build %s request: %w", op, err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Network(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Network(fmt.Errorf("read %s response: %w", op, err))
	}

	if env, ok := decodeEnvelope(data); ok {
		return apperr.FromEnvelope(env)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.FromStatus(resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apperr.Classify(fmt.Errorf("decode %s response: %w", op, err))
	}
	return nil
}

// decodeEnvelope reports whether data is a failure payload. Only an object
// with an explicit success=false counts.
func decodeEnvelope(data []byte) (apperr.Envelope, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return apperr.Envelope{}, false
	}
	var head struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(trimmed, &head); err != nil || head.Success == nil || *head.Success {
		return apperr.Envelope{}, false
	}
	var env apperr.Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return apperr.Envelope{}, false
	}
	return env, true
}
