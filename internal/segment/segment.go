// Package segment turns a raw ignition event stream into matched trip pairs.
package segment

import (
	"time"

	"github.com/kairostech/ekco-tracker/backend/internal/domain"
)

// DefaultMinTripDuration is the shortest ignition on→off span that counts as
// a trip. Anything shorter is treated as an ignition blip (key turned and
// immediately turned back). The threshold is deliberately loose; production
// deployments can tighten it via configuration.
const DefaultMinTripDuration = 6 * time.Second

// Segmenter pairs ignition-on events with the following ignition-off event.
type Segmenter struct {
	// MinTripDuration filters out spurious pairs. Zero means
	// DefaultMinTripDuration.
	MinTripDuration time.Duration
}

// Pairs scans events (which must be ordered ascending by timestamp) and
// returns the accepted trip pairs in input order.
//
// The scan keeps at most one pending ON at a time:
//   - ON with no pending ON       → becomes pending
//   - ON while one is pending     → discarded; the earlier ON stays pending
//   - OFF while an ON is pending  → emits a pair, clears pending
//   - OFF with no pending ON      → discarded (the trip started before the
//     query window; window-boundary trips are truncated, not guessed)
//
// A trailing pending ON with no OFF in range is dropped silently — the trip
// has not finished inside the window. An empty input yields an empty output.
func (s Segmenter) Pairs(events []domain.IgnitionEvent) []domain.TripPair {
	minDuration := s.MinTripDuration
	if minDuration == 0 {
		minDuration = DefaultMinTripDuration
	}

	var pairs []domain.TripPair
	var pending *domain.IgnitionEvent

	for i := range events {
		ev := events[i]
		switch {
		case ev.Status == domain.IgnitionOn && pending == nil:
			pending = &events[i]
		case ev.Status == domain.IgnitionOff && pending != nil:
			span := time.Duration(ev.TimestampMs-pending.TimestampMs) * time.Millisecond
			if span >= minDuration {
				pairs = append(pairs, domain.TripPair{On: *pending, Off: ev})
			}
			pending = nil
		}
	}

	return pairs
}
