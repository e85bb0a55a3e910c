// Package fake is a simulated RealSense device tree implementing the rs2
// interfaces. It negotiates stream profiles against a fixed capability
// table, synthesizes color and depth frames, and supports hot-plug
// simulation, so the adapter can be exercised end to end without hardware.
package fake

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/viam-soleng/realsense-rgbd/rs2"
)

type systemConfig struct {
	clock   clock.Clock
	devices []*Device
	empty   bool
}

// Option configures a System.
type Option func(*systemConfig)

// WithClock substitutes the clock used to stamp frames.
func WithClock(c clock.Clock) Option {
	return func(cfg *systemConfig) { cfg.clock = c }
}

// WithDevice attaches a device at construction time.
func WithDevice(d *Device) Option {
	return func(cfg *systemConfig) { cfg.devices = append(cfg.devices, d) }
}

// WithoutDevices starts the system with nothing connected, for hot-plug
// tests.
func WithoutDevices() Option {
	return func(cfg *systemConfig) { cfg.empty = true }
}

// System is a simulated rs2.System. The zero value is not usable; call
// NewSystem.
type System struct {
	mu      sync.Mutex
	clock   clock.Clock
	devices []*Device
	plugged chan struct{}
}

// NewSystem returns a simulated system. With no options it comes up with a
// single D435-like device attached.
func NewSystem(opts ...Option) *System {
	cfg := systemConfig{clock: clock.New()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.devices) == 0 && !cfg.empty {
		cfg.devices = []*Device{NewD435("")}
	}
	if cfg.empty {
		cfg.devices = nil
	}
	return &System{
		clock:   cfg.clock,
		devices: cfg.devices,
		plugged: make(chan struct{}),
	}
}

// Connect attaches a device at runtime, waking any hot-plug waiters.
func (s *System) Connect(d *Device) {
	s.mu.Lock()
	s.devices = append(s.devices, d)
	close(s.plugged)
	s.plugged = make(chan struct{})
	s.mu.Unlock()
}

// QueryDevices implements rs2.System.
func (s *System) QueryDevices() ([]rs2.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rs2.Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	return out, nil
}

// WaitForDevice implements rs2.System. It returns as soon as any device is
// connected, or fails with ErrTimeout when ctx ends first.
func (s *System) WaitForDevice(ctx context.Context) (rs2.Device, error) {
	for {
		s.mu.Lock()
		if len(s.devices) > 0 {
			d := s.devices[0]
			s.mu.Unlock()
			return d, nil
		}
		ch := s.plugged
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, rs2.Errorf(rs2.ErrTimeout, "wait_for_device", "no device connected: %v", ctx.Err())
		case <-ch:
		}
	}
}

// NewPipeline implements rs2.System.
func (s *System) NewPipeline() rs2.Pipeline {
	return &Pipeline{sys: s}
}

// NewAligner implements rs2.System.
func (s *System) NewAligner(to rs2.Stream) rs2.Aligner {
	return aligner{to: to}
}
