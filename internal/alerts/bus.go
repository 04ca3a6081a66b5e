// Package alerts distributes alerts to subscribers and delivers them to sinks.
package alerts

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pumpguard/internal/domain"
	"pumpguard/internal/observability"
)

const (
	historyCap  = 1000
	historyKeep = 500
)

// Publisher is what detectors emit alerts through.
type Publisher interface {
	// Publish stamps the alert with an id and creation time and distributes it.
	Publish(a domain.Alert) domain.Alert
}

// Bus fans alerts out to subscribers in emission order and keeps a bounded history.
type Bus struct {
	mu      sync.Mutex
	nextID  uint64
	history []domain.Alert // oldest first
	subs    []*subscriber
	subSeq  uint64

	now    func() int64
	logger zerolog.Logger
}

type subscriber struct {
	id   uint64
	name string
	ch   chan domain.Alert
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithStartID makes the first published alert get id+1.
// Used to continue numbering from persisted alerts.
func WithStartID(id uint64) BusOption {
	return func(b *Bus) { b.nextID = id }
}

// WithClock overrides the millisecond clock.
func WithClock(now func() int64) BusOption {
	return func(b *Bus) { b.now = now }
}

// WithBusLogger sets the logger.
func WithBusLogger(l zerolog.Logger) BusOption {
	return func(b *Bus) { b.logger = l }
}

var _ Publisher = (*Bus)(nil)

// NewBus creates an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		now:    func() int64 { return time.Now().UnixMilli() },
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With().Str("component", "alerts").Logger()
	return b
}

// Publish assigns the next id and the creation time, records the alert and
// offers it to every subscriber. A subscriber whose buffer is full misses it.
func (b *Bus) Publish(a domain.Alert) domain.Alert {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	a.ID = b.nextID
	a.CreatedAt = b.now()

	b.history = append(b.history, a)
	if len(b.history) > historyCap {
		kept := make([]domain.Alert, historyKeep)
		copy(kept, b.history[len(b.history)-historyKeep:])
		b.history = kept
	}

	for _, s := range b.subs {
		select {
		case s.ch <- a:
		default:
			observability.RecordAlertDropped(s.name)
			b.logger.Warn().
				Str("subscriber", s.name).
				Uint64("alert_id", a.ID).
				Msg("subscriber buffer full, alert dropped")
		}
	}
	return a
}

// Subscribe registers a subscriber with the given buffer size. The returned
// cancel func unregisters it and closes the channel; it is safe to call twice.
func (b *Bus) Subscribe(buffer int) (<-chan domain.Alert, func()) {
	return b.SubscribeNamed("", buffer)
}

// SubscribeNamed is Subscribe with a name used in logs and metrics.
func (b *Bus) SubscribeNamed(name string, buffer int) (<-chan domain.Alert, func()) {
	if buffer < 0 {
		buffer = 0
	}

	b.mu.Lock()
	b.subSeq++
	s := &subscriber{id: b.subSeq, name: name, ch: make(chan domain.Alert, buffer)}
	if s.name == "" {
		s.name = "sub-" + strconv.FormatUint(s.id, 10)
	}
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, cur := range b.subs {
				if cur.id == s.id {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					break
				}
			}
			close(s.ch)
		})
	}
	return s.ch, cancel
}

// Recent returns up to limit alerts, newest first.
func (b *Bus) Recent(limit int) []domain.Alert {
	b.mu.Lock()
	defer b.mu.Unlock()

	if limit <= 0 || limit > len(b.history) {
		limit = len(b.history)
	}
	out := make([]domain.Alert, 0, limit)
	for i := len(b.history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, b.history[i])
	}
	return out
}

// LastID returns the id of the most recently published alert.
func (b *Bus) LastID() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextID
}
