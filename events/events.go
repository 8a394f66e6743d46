// Package events holds the market events catalog and relates events to change points.
package events

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sartorproj/gochangepoint/timeseries"
)

// ErrInvalidEvent is returned for an event without a name or with a malformed date.
var ErrInvalidEvent = errors.New("invalid event")

// Event is a dated market event.
type Event struct {
	Date        time.Time
	Name        string
	Price       float64
	Description string
}

type record struct {
	Date        string  `yaml:"date"`
	Name        string  `yaml:"event"`
	Price       float64 `yaml:"price"`
	Description string  `yaml:"description"`
}

type file struct {
	Events []record `yaml:"events"`
}

// Catalog is an immutable, date-ordered list of events.
type Catalog struct {
	events []Event
}

// NewCatalog validates and sorts events by date. Ties keep their input order.
func NewCatalog(events []Event) (*Catalog, error) {
	out := make([]Event, len(events))
	copy(out, events)
	for i, e := range out {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("%w: event %d has no name", ErrInvalidEvent, i)
		}
		if e.Date.IsZero() {
			return nil, fmt.Errorf("%w: event %q has no date", ErrInvalidEvent, e.Name)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return &Catalog{events: out}, nil
}

// Default returns the built-in Brent market events.
func Default() *Catalog {
	c, err := NewCatalog([]Event{
		{Date: mustDate("2020-03-01"), Name: "COVID-19 Pandemic Start", Price: 45.2,
			Description: "Global pandemic declaration leads to oil demand collapse"},
		{Date: mustDate("2020-04-20"), Name: "Oil Price Crash", Price: 18.1,
			Description: "Historic oil price crash with negative futures prices"},
		{Date: mustDate("2021-11-01"), Name: "Supply Chain Crisis", Price: 84.3,
			Description: "Global supply chain disruptions drive energy prices up"},
		{Date: mustDate("2022-02-24"), Name: "Russia-Ukraine Conflict", Price: 105.7,
			Description: "Geopolitical tensions disrupt global energy markets"},
		{Date: mustDate("2022-12-01"), Name: "China COVID Policy Changes", Price: 88.9,
			Description: "China relaxes COVID policies, affecting global demand"},
	})
	if err != nil {
		panic(err)
	}
	return c
}

func mustDate(s string) time.Time {
	t, err := timeseries.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Load reads a YAML events file. An empty path returns the default catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open events file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a YAML document of the form {events: [{date, event, price, description}]}.
func Decode(r io.Reader) (*Catalog, error) {
	var doc file
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode events: %w", err)
	}

	events := make([]Event, 0, len(doc.Events))
	for _, rec := range doc.Events {
		d, err := timeseries.ParseDate(rec.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: event %q: %v", ErrInvalidEvent, rec.Name, err)
		}
		events = append(events, Event{
			Date:        d,
			Name:        rec.Name,
			Price:       rec.Price,
			Description: rec.Description,
		})
	}
	return NewCatalog(events)
}

// Len returns the number of events.
func (c *Catalog) Len() int {
	return len(c.events)
}

// Events returns a copy of the events in date order.
func (c *Catalog) Events() []Event {
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Filter returns the events inside r.
func (c *Catalog) Filter(r timeseries.DateRange) []Event {
	out := make([]Event, 0, len(c.events))
	for _, e := range c.events {
		if r.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}
