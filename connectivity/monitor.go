// Package connectivity tells the ordering engine whether the backend is reachable.
package connectivity

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Prober reports whether the network path to the backend is up right now.
type Prober func(ctx context.Context) bool

// TCPProber dials addr and treats a completed handshake as "connected".
func TCPProber(addr string, timeout time.Duration) Prober {
	return func(ctx context.Context) bool {
		d := net.Dialer{Timeout: timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}
}

// Monitor probes on an interval and pushes every change of state to its
// subscribers. Each subscriber only ever sees the latest state.
type Monitor struct {
	probe    Prober
	interval time.Duration
	logger   *zap.SugaredLogger

	mu        sync.Mutex
	known     bool
	connected bool
	subs      map[int]chan bool
	nextSub   int
}

func New(probe Prober, interval time.Duration, logger *zap.SugaredLogger) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		probe:    probe,
		interval: interval,
		logger:   logger,
		subs:     make(map[int]chan bool),
	}
}

// Connected probes immediately and returns the result.
func (m *Monitor) Connected(ctx context.Context) bool {
	up := m.probe(ctx)
	m.record(up)
	return up
}

// Subscribe returns a channel of connectivity changes and a cancel func.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool, 1)
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Run probes until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Connected(ctx)
		}
	}
}

func (m *Monitor) record(up bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.known && m.connected == up {
		return
	}
	m.known = true
	m.connected = up
	m.logger.Infow("connectivity changed", "connected", up)
	for _, ch := range m.subs {
		select {
		case ch <- up:
		default:
			// replace the stale value the subscriber has not read yet
			select {
			case <-ch:
			default:
			}
			ch <- up
		}
	}
}
