package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace/internal/adapter"
	"github.com/feral-file/ff-marketplace/internal/domain"
	"github.com/feral-file/ff-marketplace/internal/logger"
)

// ErrNotConnected is returned when Subscribe is called before Connect
var ErrNotConnected = errors.New("source not connected")

// Delivery is the outcome of handing one event to the handler
type Delivery struct {
	Key string
	Err error
}

// Replay is an in-memory EventSource that delivers a fixed list of events.
// Events that fail transiently are delivered again up to MaxAttempts times.
type Replay struct {
	// MaxAttempts bounds deliveries per event; zero means one attempt
	MaxAttempts int

	mu         sync.Mutex
	events     []*domain.RawEvent
	deliveries []Delivery
	connected  bool
}

// NewReplay creates a replay source over events, ordered by block and log index
func NewReplay(events ...*domain.RawEvent) *Replay {
	r := &Replay{}
	r.Push(events...)
	return r
}

// LoadReplay reads newline-delimited JSON raw events
func LoadReplay(reader io.Reader, json adapter.JSON) (*Replay, error) {
	events, err := decodeEvents(reader, json)
	if err != nil {
		return nil, err
	}
	return NewReplay(events...), nil
}

// LoadChainReplays reads newline-delimited JSON raw events into one replay per chain
func LoadChainReplays(reader io.Reader, json adapter.JSON) (map[string]*Replay, error) {
	events, err := decodeEvents(reader, json)
	if err != nil {
		return nil, err
	}

	replays := make(map[string]*Replay)
	for _, event := range events {
		r, ok := replays[event.Chain]
		if !ok {
			r = &Replay{}
			replays[event.Chain] = r
		}
		r.Push(event)
	}
	return replays, nil
}

func decodeEvents(reader io.Reader, json adapter.JSON) ([]*domain.RawEvent, error) {
	var events []*domain.RawEvent

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		var event domain.RawEvent
		if err := json.Unmarshal(data, &event); err != nil {
			return nil, fmt.Errorf("failed to decode event on line %d: %w", line, err)
		}
		events = append(events, &event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	return events, nil
}

// Push appends events to the replay
func (r *Replay) Push(events ...*domain.RawEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, events...)
	sort.SliceStable(r.events, func(i, j int) bool {
		if r.events[i].BlockNumber != r.events[j].BlockNumber {
			return r.events[i].BlockNumber < r.events[j].BlockNumber
		}
		return r.events[i].LogIndex < r.events[j].LogIndex
	})
}

// Connect marks the source as connected
func (r *Replay) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connected = true
	return nil
}

// Subscribe delivers every event at or after fromBlock, then returns nil
func (r *Replay) Subscribe(ctx context.Context, fromBlock uint64, handler Handler) error {
	r.mu.Lock()
	if !r.connected {
		r.mu.Unlock()
		return ErrNotConnected
	}
	events := make([]*domain.RawEvent, len(r.events))
	copy(events, r.events)
	r.mu.Unlock()

	attempts := r.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for _, event := range events {
		if event.BlockNumber < fromBlock {
			continue
		}

		for attempt := 1; ; attempt++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			err := handler(ctx, event)
			r.record(event.Key(), err)
			if err == nil || IsPermanent(err) || attempt >= attempts {
				if err != nil {
					logger.WarnCtx(ctx, "Replayed event not applied",
						zap.String("eventKey", event.Key()),
						zap.Int("attempts", attempt),
						zap.Error(err))
				}
				break
			}
		}
	}

	return nil
}

// LatestBlock returns the highest block among the events
func (r *Replay) LatestBlock(ctx context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) == 0 {
		return 0, nil
	}
	return r.events[len(r.events)-1].BlockNumber, nil
}

// Close disconnects the source
func (r *Replay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connected = false
}

// Deliveries returns every handler invocation in order
func (r *Replay) Deliveries() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Delivery, len(r.deliveries))
	copy(out, r.deliveries)
	return out
}

func (r *Replay) record(key string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deliveries = append(r.deliveries, Delivery{Key: key, Err: err})
}
