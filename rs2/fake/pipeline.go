package fake

import (
	"context"
	"sync"

	"github.com/viam-soleng/realsense-rgbd/rs2"
)

// Pipeline is a simulated rs2.Pipeline. Start negotiates every requested
// stream against the bound device's profile table; unsupported tuples fail
// with ErrNotSupported, the way a real device refuses impossible modes.
type Pipeline struct {
	sys *System

	mu       sync.Mutex
	started  bool
	dev      *Device
	active   map[rs2.Stream]rs2.StreamProfile
	frameNum int
}

// Start implements rs2.Pipeline.
func (p *Pipeline) Start(cfg *rs2.StreamConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return rs2.Errorf(rs2.ErrWrongState, "pipeline_start", "pipeline already started")
	}

	dev, err := p.pickDevice(cfg.Serial())
	if err != nil {
		return err
	}

	active := make(map[rs2.Stream]rs2.StreamProfile)
	for _, req := range cfg.Requests() {
		got, ok := dev.supportsProfile(req)
		if !ok {
			return rs2.Errorf(rs2.ErrNotSupported, "pipeline_start",
				"device %q cannot serve %s %s %dx%d@%d",
				dev.serial, req.Stream, req.Format, req.Width, req.Height, req.FPS)
		}
		active[req.Stream] = got
	}
	if len(active) == 0 {
		return rs2.Errorf(rs2.ErrInvalidValue, "pipeline_start", "no streams enabled")
	}

	p.dev = dev
	p.active = active
	p.started = true
	return nil
}

func (p *Pipeline) pickDevice(serial string) (*Device, error) {
	p.sys.mu.Lock()
	defer p.sys.mu.Unlock()
	if len(p.sys.devices) == 0 {
		return nil, rs2.Errorf(rs2.ErrNoDevice, "pipeline_start", "no RealSense device connected")
	}
	if serial == "" {
		return p.sys.devices[0], nil
	}
	for _, d := range p.sys.devices {
		if d.serial == serial {
			return d, nil
		}
	}
	return nil, rs2.Errorf(rs2.ErrNoDevice, "pipeline_start", "no device with serial %q", serial)
}

// Stop implements rs2.Pipeline.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return rs2.Errorf(rs2.ErrWrongState, "pipeline_stop", "pipeline not started")
	}
	p.started = false
	return nil
}

// WaitForFrames implements rs2.Pipeline. Frames are synthesized
// immediately; ctx is still honored so callers keep a cancellation path.
func (p *Pipeline) WaitForFrames(ctx context.Context) (rs2.FrameSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, rs2.Errorf(rs2.ErrTimeout, "wait_for_frames", "%v", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil, rs2.Errorf(rs2.ErrWrongState, "wait_for_frames", "pipeline not started")
	}
	p.frameNum++
	ts := p.sys.clock.Now()

	fs := &frameSet{}
	if prof, ok := p.active[rs2.StreamColor]; ok {
		fs.color = synthColorFrame(prof, ts)
	}
	if prof, ok := p.active[rs2.StreamDepth]; ok {
		fs.depth = synthDepthFrame(prof, p.frameNum, ts)
	}
	return fs, nil
}

// ActiveProfile implements rs2.Pipeline.
func (p *Pipeline) ActiveProfile(stream rs2.Stream) (rs2.StreamProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prof, ok := p.active[stream]
	if !ok {
		return rs2.StreamProfile{}, rs2.Errorf(rs2.ErrWrongState, "active_profile", "stream %s not active", stream)
	}
	return prof, nil
}

// Intrinsics implements rs2.Pipeline. The model is synthesized
// deterministically from the negotiated resolution.
func (p *Pipeline) Intrinsics(stream rs2.Stream) (rs2.Intrinsics, error) {
	prof, err := p.ActiveProfile(stream)
	if err != nil {
		return rs2.Intrinsics{}, err
	}
	in := rs2.Intrinsics{
		Width:  prof.Width,
		Height: prof.Height,
		Fx:     0.92 * float64(prof.Width),
		Fy:     0.92 * float64(prof.Width),
		Ppx:    float64(prof.Width)/2 - 0.4,
		Ppy:    float64(prof.Height)/2 + 0.3,
	}
	if stream == rs2.StreamColor {
		in.Model = rs2.DistortionBrownConrady
		in.Coeffs = [5]float64{0.12, -0.21, -0.003, 0.001, 0.05}
	}
	return in, nil
}

// Extrinsics implements rs2.Pipeline. The simulated depth and color
// imagers sit 14.7mm apart along x, like a D435.
func (p *Pipeline) Extrinsics(from, to rs2.Stream) (rs2.Extrinsics, error) {
	if _, err := p.ActiveProfile(from); err != nil {
		return rs2.Extrinsics{}, err
	}
	if _, err := p.ActiveProfile(to); err != nil {
		return rs2.Extrinsics{}, err
	}
	ext := rs2.Extrinsics{Rotation: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
	const baseline = 0.0147
	switch {
	case from == rs2.StreamDepth && to == rs2.StreamColor:
		ext.Translation = [3]float64{baseline, 0, 0}
	case from == rs2.StreamColor && to == rs2.StreamDepth:
		ext.Translation = [3]float64{-baseline, 0, 0}
	}
	return ext, nil
}
