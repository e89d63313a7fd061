// Package store holds the reconstructed trip set for the currently selected
// vehicle and date range, and derives the filtered view the API serves.
package store

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kairostech/ekco-tracker/backend/internal/debounce"
	"github.com/kairostech/ekco-tracker/backend/internal/domain"
)

// DefaultSearchDelay is how long search input must be quiet before the
// filtered view is re-derived. Keystroke bursts inside the window coalesce
// into a single re-derivation.
const DefaultSearchDelay = 300 * time.Millisecond

// Meta describes where the current trip set came from. It is captured at
// ReplaceAll time and consumed by the export report header.
type Meta struct {
	VehicleName  string    `json:"vehicle_name"`
	DeviceSerial string    `json:"device_serial"`
	RangeStart   time.Time `json:"range_start"`
	RangeEnd     time.Time `json:"range_end"`
}

// Store owns the trip list for the current vehicle/date-range. It is the only
// component allowed to mutate that list; reconstruction swaps the whole set
// via ReplaceAll and everything else reads.
type Store struct {
	mu         sync.RWMutex
	all        []domain.Trip
	visible    []domain.Trip
	searchText string
	meta       Meta

	search *debounce.Debouncer
	log    *slog.Logger
}

// New constructs an empty Store. searchDelay controls the search debounce
// window; pass 0 for synchronous filtering (useful in tests), or
// DefaultSearchDelay for interactive use.
func New(searchDelay time.Duration, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{log: log}
	s.search = debounce.New(searchDelay, s.applySearch)
	return s
}

// ReplaceAll atomically swaps the full trip set and its provenance, sorts it
// newest-first (stable, so equal start times keep input order), and
// re-derives the visible view under the current search text.
func (s *Store) ReplaceAll(trips []domain.Trip, meta Meta) {
	sorted := append([]domain.Trip(nil), trips...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartMs > sorted[j].StartMs
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	s.all = sorted
	s.meta = meta
	s.visible = s.derive(s.searchText)

	s.log.Info("trip store replaced",
		"trips", len(sorted),
		"vehicle", meta.VehicleName,
		"device_serial", meta.DeviceSerial,
	)
}

// SetSearchText schedules a re-derivation of the visible view. Calls are
// debounced: only the last text of a burst takes effect, once the input has
// been quiet for the configured delay.
func (s *Store) SetSearchText(text string) {
	s.search.Call(text)
}

// ResetSearch clears the search text immediately, discarding any pending
// debounced input. A fresh reconstruction calls this so the new trip set
// always starts unfiltered.
func (s *Store) ResetSearch() {
	s.search.Stop()
	s.applySearch("")
}

// applySearch is the debounced target of SetSearchText.
func (s *Store) applySearch(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.searchText = text
	s.visible = s.derive(text)
}

// VisibleTrips returns the current filtered view, newest first.
func (s *Store) VisibleTrips() []domain.Trip {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Trip(nil), s.visible...)
}

// SearchText returns the last applied (post-debounce) search text.
func (s *Store) SearchText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searchText
}

// Meta returns the provenance of the current trip set.
func (s *Store) Meta() Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// TotalCount returns the size of the unfiltered trip set.
func (s *Store) TotalCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.all)
}

// derive computes the visible view from the full set. Callers must hold mu.
//
// Trips without positions are always excluded, mirroring the enrichment rule;
// a trip that slipped through with no GPS path is useless to every consumer.
func (s *Store) derive(text string) []domain.Trip {
	query := strings.ToLower(strings.TrimSpace(text))

	visible := make([]domain.Trip, 0, len(s.all))
	for _, t := range s.all {
		if len(t.Positions) < 1 {
			continue
		}
		if query != "" && !matches(t, query) {
			continue
		}
		visible = append(visible, t)
	}
	return visible
}

// matches reports whether the trip matches the lowercased query on any of its
// searchable fields: display date, formatted start date, distance, duration,
// or resolved addresses. Matching is OR across fields.
func matches(t domain.Trip, query string) bool {
	fields := []string{
		t.DisplayDate,
		domain.FormatDisplayTime(t.StartTime()),
		strconv.FormatFloat(t.DistanceKm, 'f', -1, 64),
		strconv.Itoa(t.DurationMinutes),
		t.StartAddress,
		t.EndAddress,
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}
