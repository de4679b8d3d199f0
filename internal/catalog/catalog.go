// Package catalog caches the flight list fetched from the booking service.
package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/galaxium/internal/domain"
)

type FlightSource interface {
	ListFlights(ctx context.Context) ([]domain.Flight, error)
}

type Catalog struct {
	source FlightSource

	mu          sync.RWMutex
	flights     []domain.Flight
	refreshedAt time.Time
	refreshes   int
	started     uint64
	applied     uint64
}

func New(source FlightSource) *Catalog {
	return &Catalog{source: source}
}

// Refresh replaces the cached list with the service's current one. On
// failure the previous list stays in place. A response is dropped when a
// refresh started later has already been applied.
func (c *Catalog) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.started++
	seq := c.started
	c.mu.Unlock()

	flights, err := c.source.ListFlights(ctx)
	if err != nil {
		return err
	}
	fresh := make([]domain.Flight, len(flights))
	copy(fresh, flights)

	c.mu.Lock()
	if seq < c.applied {
		c.mu.Unlock()
		return nil
	}
	c.applied = seq
	c.flights = fresh
	c.refreshedAt = time.Now()
	c.refreshes++
	c.mu.Unlock()
	return nil
}

// Flights returns a copy of the cached list.
func (c *Catalog) Flights() []domain.Flight {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Flight, len(c.flights))
	copy(out, c.flights)
	return out
}

// Filter returns, in cache order, the flights whose origin or destination
// contains term, ignoring case. A blank term matches everything.
func (c *Catalog) Filter(term string) []domain.Flight {
	return Filter(c.Flights(), term)
}

func (c *Catalog) Find(id int64) (domain.Flight, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, f := range c.flights {
		if f.ID == id {
			return f, true
		}
	}
	return domain.Flight{}, false
}

func (c *Catalog) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}

// Refreshes counts successful refreshes.
func (c *Catalog) Refreshes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshes
}

func Filter(flights []domain.Flight, term string) []domain.Flight {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]domain.Flight, 0, len(flights))
	for _, f := range flights {
		if term == "" ||
			strings.Contains(strings.ToLower(f.Origin), term) ||
			strings.Contains(strings.ToLower(f.Destination), term) {
			out = append(out, f)
		}
	}
	return out
}
