package fake

import (
	"sync"

	"github.com/google/uuid"

	"github.com/viam-soleng/realsense-rgbd/rs2"
)

// Device is a simulated camera with a depth and a color sensor and a fixed
// table of supported stream profiles.
type Device struct {
	name     string
	serial   string
	firmware string
	sensors  []*Sensor
	profiles []rs2.StreamProfile
}

// NewD435 builds a device shaped like an Intel RealSense D435. An empty
// serial gets a generated one.
func NewD435(serial string) *Device {
	if serial == "" {
		serial = uuid.NewString()[:12]
	}
	depth := NewSensor("Stereo Module", true, map[rs2.Option]rs2.OptionRange{
		rs2.OptionVisualPreset:       {Min: 0, Max: 5, Default: 0},
		rs2.OptionAccuracy:           {Min: 0, Max: 3, Default: 2},
		rs2.OptionMinDistance:        {Min: 0, Max: 10, Default: 0.105},
		rs2.OptionMaxDistance:        {Min: 0, Max: 10, Default: 10},
		rs2.OptionLaserPower:         {Min: 0, Max: 360, Default: 150},
		rs2.OptionEmitterEnabled:     {Min: 0, Max: 1, Default: 1},
		rs2.OptionExposure:           {Min: 1, Max: 165000, Default: 8500},
		rs2.OptionGain:               {Min: 16, Max: 248, Default: 16},
		rs2.OptionEnableAutoExposure: {Min: 0, Max: 1, Default: 1},
	})
	color := NewSensor("RGB Camera", false, map[rs2.Option]rs2.OptionRange{
		rs2.OptionBrightness:             {Min: -64, Max: 64, Default: 0},
		rs2.OptionContrast:               {Min: 0, Max: 100, Default: 50},
		rs2.OptionExposure:               {Min: 1, Max: 10000, Default: 166},
		rs2.OptionGain:                   {Min: 0, Max: 128, Default: 64},
		rs2.OptionGamma:                  {Min: 100, Max: 500, Default: 300},
		rs2.OptionHue:                    {Min: -180, Max: 180, Default: 0},
		rs2.OptionSaturation:             {Min: 0, Max: 100, Default: 64},
		rs2.OptionSharpness:              {Min: 0, Max: 100, Default: 50},
		rs2.OptionWhiteBalance:           {Min: 2800, Max: 6500, Default: 4600},
		rs2.OptionEnableAutoExposure:     {Min: 0, Max: 1, Default: 1},
		rs2.OptionEnableAutoWhiteBalance: {Min: 0, Max: 1, Default: 1},
	})
	return &Device{
		name:     "Intel RealSense D435",
		serial:   serial,
		firmware: "5.13.0.50",
		sensors:  []*Sensor{depth, color},
		profiles: []rs2.StreamProfile{
			{Stream: rs2.StreamDepth, Format: rs2.FormatZ16, Width: 1280, Height: 720, FPS: 30},
			{Stream: rs2.StreamDepth, Format: rs2.FormatZ16, Width: 848, Height: 480, FPS: 30},
			{Stream: rs2.StreamDepth, Format: rs2.FormatZ16, Width: 640, Height: 480, FPS: 30},
			{Stream: rs2.StreamDepth, Format: rs2.FormatZ16, Width: 640, Height: 480, FPS: 60},
			{Stream: rs2.StreamDepth, Format: rs2.FormatZ16, Width: 480, Height: 270, FPS: 60},
			{Stream: rs2.StreamColor, Format: rs2.FormatRGB8, Width: 1920, Height: 1080, FPS: 30},
			{Stream: rs2.StreamColor, Format: rs2.FormatRGB8, Width: 1280, Height: 720, FPS: 30},
			{Stream: rs2.StreamColor, Format: rs2.FormatRGB8, Width: 640, Height: 480, FPS: 30},
			{Stream: rs2.StreamColor, Format: rs2.FormatRGB8, Width: 640, Height: 480, FPS: 60},
			{Stream: rs2.StreamColor, Format: rs2.FormatBGR8, Width: 640, Height: 480, FPS: 30},
			{Stream: rs2.StreamColor, Format: rs2.FormatRGB8, Width: 320, Height: 240, FPS: 60},
		},
	}
}

// Serial returns the device serial number.
func (d *Device) Serial() string { return d.serial }

// Sensors implements rs2.Device.
func (d *Device) Sensors() []rs2.Sensor {
	out := make([]rs2.Sensor, 0, len(d.sensors))
	for _, s := range d.sensors {
		out = append(out, s)
	}
	return out
}

// DepthSensor returns the simulated depth sensor, for test assertions.
func (d *Device) DepthSensor() *Sensor { return d.sensors[0] }

// ColorSensor returns the simulated color sensor, for test assertions.
func (d *Device) ColorSensor() *Sensor { return d.sensors[1] }

// Supports implements rs2.Device.
func (d *Device) Supports(info rs2.CameraInfo) bool {
	switch info {
	case rs2.InfoName, rs2.InfoSerialNumber, rs2.InfoFirmwareVersion:
		return true
	default:
		return false
	}
}

// Info implements rs2.Device.
func (d *Device) Info(info rs2.CameraInfo) string {
	switch info {
	case rs2.InfoName:
		return d.name
	case rs2.InfoSerialNumber:
		return d.serial
	case rs2.InfoFirmwareVersion:
		return d.firmware
	default:
		return ""
	}
}

// supportsProfile reports whether the device can serve the requested
// profile. Zero width/height/fps fields match anything; FormatAny matches
// any format.
func (d *Device) supportsProfile(req rs2.StreamProfile) (rs2.StreamProfile, bool) {
	for _, p := range d.profiles {
		if p.Stream != req.Stream {
			continue
		}
		if req.Format != rs2.FormatAny && p.Format != req.Format {
			continue
		}
		if req.Width != 0 && p.Width != req.Width {
			continue
		}
		if req.Height != 0 && p.Height != req.Height {
			continue
		}
		if req.FPS != 0 && p.FPS != req.FPS {
			continue
		}
		return p, true
	}
	return rs2.StreamProfile{}, false
}

// Sensor is a simulated sensing unit with a table of writable options. It
// counts writes so tests can assert an operation never touched it.
type Sensor struct {
	mu     sync.Mutex
	name   string
	depth  bool
	ranges map[rs2.Option]rs2.OptionRange
	values map[rs2.Option]float64
	writes int
}

// NewSensor builds a sensor supporting exactly the given options.
func NewSensor(name string, depth bool, ranges map[rs2.Option]rs2.OptionRange) *Sensor {
	values := make(map[rs2.Option]float64, len(ranges))
	for opt, r := range ranges {
		values[opt] = r.Default
	}
	return &Sensor{name: name, depth: depth, ranges: ranges, values: values}
}

// Name returns the sensor's human-readable name.
func (s *Sensor) Name() string { return s.name }

// IsDepthSensor implements rs2.Sensor.
func (s *Sensor) IsDepthSensor() bool { return s.depth }

// Supports implements rs2.Sensor.
func (s *Sensor) Supports(opt rs2.Option) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ranges[opt]
	return ok
}

// Option implements rs2.Sensor.
func (s *Sensor) Option(opt rs2.Option) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[opt]
	if !ok {
		return 0, rs2.Errorf(rs2.ErrNotSupported, "get_option", "sensor %q does not support %s", s.name, opt)
	}
	return v, nil
}

// SetOption implements rs2.Sensor.
func (s *Sensor) SetOption(opt rs2.Option, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ranges[opt]
	if !ok {
		return rs2.Errorf(rs2.ErrNotSupported, "set_option", "sensor %q does not support %s", s.name, opt)
	}
	if value < r.Min || value > r.Max {
		return rs2.Errorf(rs2.ErrInvalidValue, "set_option",
			"value %v for %s out of range [%v, %v]", value, opt, r.Min, r.Max)
	}
	s.values[opt] = value
	s.writes++
	return nil
}

// OptionRange implements rs2.Sensor.
func (s *Sensor) OptionRange(opt rs2.Option) (rs2.OptionRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ranges[opt]
	if !ok {
		return rs2.OptionRange{}, rs2.Errorf(rs2.ErrNotSupported, "get_option_range",
			"sensor %q does not support %s", s.name, opt)
	}
	return r, nil
}

// OptionDescription implements rs2.Sensor.
func (s *Sensor) OptionDescription(opt rs2.Option) string {
	return opt.String()
}

// Writes reports how many successful option writes the sensor has seen.
func (s *Sensor) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
