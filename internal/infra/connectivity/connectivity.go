// Package connectivity watches whether the remote store is reachable and
// publishes transitions on the event bus.
package connectivity

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-notes/inkwell/internal/infra/eventbus"
	"github.com/inkwell-notes/inkwell/internal/infra/logging"
	"github.com/inkwell-notes/inkwell/internal/infra/observability"
)

// Config controls the reachability probe.
type Config struct {
	ProbeAddr     string        // host:port; empty means always online
	ProbeInterval time.Duration // default: 10s
	ProbeTimeout  time.Duration // default: 3s
}

// DefaultConfig returns probe defaults with no address.
func DefaultConfig() Config {
	return Config{
		ProbeInterval: 10 * time.Second,
		ProbeTimeout:  3 * time.Second,
	}
}

// DialFunc opens a connection; net.Dialer.DialContext satisfies it.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Monitor tracks online state. Force pins the state until Release.
type Monitor struct {
	mu     sync.Mutex
	cfg    Config
	bus    *eventbus.Bus
	log    *zap.Logger
	dial   DialFunc
	online bool
	known  bool
	forced bool
}

// New creates a monitor. It reports nothing until Run or Force.
func New(cfg Config, bus *eventbus.Bus, log *zap.Logger) *Monitor {
	def := DefaultConfig()
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = def.ProbeInterval
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	d := &net.Dialer{}
	return &Monitor{
		cfg:  cfg,
		bus:  bus,
		log:  logging.OrNop(log).Named("connectivity"),
		dial: d.DialContext,
	}
}

// SetDialer replaces the dial function.
func (m *Monitor) SetDialer(dial DialFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dial = dial
}

// Online reports the last observed state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Run probes immediately and then every ProbeInterval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.ProbeOnce(ctx)

	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ProbeOnce(ctx)
		}
	}
}

// ProbeOnce checks reachability and records the result. It is skipped while forced.
func (m *Monitor) ProbeOnce(ctx context.Context) {
	m.mu.Lock()
	if m.forced {
		m.mu.Unlock()
		return
	}
	dial := m.dial
	m.mu.Unlock()

	online := true
	if m.cfg.ProbeAddr != "" {
		pctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
		conn, err := dial(pctx, "tcp", m.cfg.ProbeAddr)
		cancel()
		if err != nil {
			m.log.Debug("probe failed", zap.String("addr", m.cfg.ProbeAddr), zap.Error(err))
			online = false
		} else {
			conn.Close()
		}
	}
	m.observe(online, false)
}

// Force pins the state, suspending probes.
func (m *Monitor) Force(online bool) {
	m.observe(online, true)
}

// Release resumes probing after Force.
func (m *Monitor) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forced = false
}

func (m *Monitor) observe(online, force bool) {
	m.mu.Lock()
	if force {
		m.forced = true
	} else if m.forced {
		m.mu.Unlock()
		return
	}
	changed := !m.known || m.online != online
	m.online = online
	m.known = true
	m.mu.Unlock()

	if !changed {
		return
	}

	to := "offline"
	if online {
		to = "online"
	}
	observability.Online.Set(observability.BoolGauge(online))
	observability.ConnectivityTransitions.WithLabelValues(to).Inc()
	m.log.Info("connectivity changed", zap.String("to", to), zap.Bool("forced", force))
	if m.bus != nil {
		m.bus.Publish(eventbus.TopicConnectivityChanged, eventbus.ConnectivityChanged{Online: online})
	}
}
