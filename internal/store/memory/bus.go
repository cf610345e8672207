package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/alanyoungcy/predictiond/internal/domain"
)

// LockManager is an in-process implementation of domain.LockManager. The TTL
// is ignored: locks live until released or until the process exits, which is
// exactly the lifetime of the state they protect.
type LockManager struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]bool)}
}

// Acquire takes the lock for key or returns domain.ErrLockHeld. The returned
// release function is safe to call more than once.
func (lm *LockManager) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if lm.held[key] {
		return nil, domain.ErrLockHeld
	}
	lm.held[key] = true

	released := false
	unlock := func() {
		lm.mu.Lock()
		defer lm.mu.Unlock()
		if released {
			return
		}
		released = true
		delete(lm.held, key)
	}
	return unlock, nil
}

// SignalBus is an in-process implementation of domain.SignalBus using
// buffered channels for pub/sub and an append-only slice for the stream
// journal. Pattern subscriptions are not supported.
type SignalBus struct {
	mu      sync.RWMutex
	subs    map[string][]chan []byte
	streams map[string][]domain.StreamMessage
}

// NewSignalBus creates an empty SignalBus.
func NewSignalBus() *SignalBus {
	return &SignalBus{
		subs:    make(map[string][]chan []byte),
		streams: make(map[string][]domain.StreamMessage),
	}
}

// Publish delivers the payload to every subscriber of the channel. Slow
// subscribers with a full buffer are skipped rather than blocked on.
func (sb *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	for _, ch := range sb.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe registers a subscriber for a channel. The subscription ends when
// the context is cancelled; the returned channel is closed at that point.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 128)

	sb.mu.Lock()
	sb.subs[channel] = append(sb.subs[channel], ch)
	sb.mu.Unlock()

	go func() {
		<-ctx.Done()
		sb.mu.Lock()
		subs := sb.subs[channel]
		for i, c := range subs {
			if c == ch {
				sb.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		sb.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// StreamAppend appends a payload to the named stream.
func (sb *SignalBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	id := strconv.Itoa(len(sb.streams[stream]) + 1)
	sb.streams[stream] = append(sb.streams[stream], domain.StreamMessage{ID: id, Payload: payload})
	return nil
}

// StreamRead returns up to count messages after lastID ("0" reads from the
// beginning).
func (sb *SignalBus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	start, err := strconv.Atoi(lastID)
	if err != nil {
		start = 0
	}

	msgs := sb.streams[stream]
	if start >= len(msgs) {
		return nil, nil
	}
	out := msgs[start:]
	if count > 0 && count < len(out) {
		out = out[:count]
	}
	result := make([]domain.StreamMessage, len(out))
	copy(result, out)
	return result, nil
}

// Compile-time interface checks.
var (
	_ domain.LockManager = (*LockManager)(nil)
	_ domain.SignalBus   = (*SignalBus)(nil)
)
