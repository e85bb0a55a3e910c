package realsense

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/viam-soleng/realsense-rgbd/rs2"
)

// Feature is the host middleware's camera-control vocabulary. Values are
// exchanged normalized to [0, 1] against the sensor's option range.
type Feature int

// The features the middleware can ask about.
const (
	FeatureBrightness Feature = iota
	FeatureExposure
	FeatureSharpness
	FeatureWhiteBalance
	FeatureHue
	FeatureSaturation
	FeatureGamma
	FeatureShutter
	FeatureGain
	FeatureIris
	FeatureFrameRate
	FeatureMirror
	featureCount
)

func (f Feature) String() string {
	switch f {
	case FeatureBrightness:
		return "brightness"
	case FeatureExposure:
		return "exposure"
	case FeatureSharpness:
		return "sharpness"
	case FeatureWhiteBalance:
		return "white_balance"
	case FeatureHue:
		return "hue"
	case FeatureSaturation:
		return "saturation"
	case FeatureGamma:
		return "gamma"
	case FeatureShutter:
		return "shutter"
	case FeatureGain:
		return "gain"
	case FeatureIris:
		return "iris"
	case FeatureFrameRate:
		return "frame_rate"
	case FeatureMirror:
		return "mirror"
	default:
		return "unknown"
	}
}

// FeatureByName resolves a feature name, case-insensitively.
func FeatureByName(name string) (Feature, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f := Feature(0); f < featureCount; f++ {
		if f.String() == name {
			return f, nil
		}
	}
	return 0, errors.Errorf("unknown feature %q", name)
}

// FeatureMode selects who drives a feature's value.
type FeatureMode int

// Feature modes.
const (
	ModeUnknown FeatureMode = iota
	ModeAuto
	ModeManual
)

func (m FeatureMode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeManual:
		return "manual"
	default:
		return "unknown"
	}
}

// FeatureModeByName resolves a mode name.
func FeatureModeByName(name string) (FeatureMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "auto":
		return ModeAuto, nil
	case "manual":
		return ModeManual, nil
	default:
		return ModeUnknown, errors.Errorf("unknown feature mode %q", name)
	}
}

// featureCapability describes everything the adapter can do with one
// feature: which sensor option carries its value, which option (if any)
// toggles its automatic mode, and whether its value can be written. One
// table answers every capability query, so the answers cannot drift apart.
type featureCapability struct {
	option     rs2.Option
	autoOption rs2.Option
	hasAuto    bool
	settable   bool
}

// featureCapabilities is the capability table for the color sensor.
// Features absent from the table are not supported at all. FrameRate is
// readable through the negotiated profile but has no sensor option, so it
// carries no value option and is not settable here.
var featureCapabilities = map[Feature]featureCapability{
	FeatureExposure:     {option: rs2.OptionExposure, autoOption: rs2.OptionEnableAutoExposure, hasAuto: true, settable: true},
	FeatureWhiteBalance: {option: rs2.OptionWhiteBalance, autoOption: rs2.OptionEnableAutoWhiteBalance, hasAuto: true, settable: true},
	FeatureGain:         {option: rs2.OptionGain, settable: true},
	FeatureSharpness:    {option: rs2.OptionSharpness, settable: true},
	FeatureHue:          {option: rs2.OptionHue, settable: true},
	FeatureSaturation:   {option: rs2.OptionSaturation, settable: true},
	FeatureFrameRate:    {},
}

// HasFeature reports whether the adapter knows the feature at all.
func (c *realsenseCamera) HasFeature(f Feature) (bool, error) {
	if f < 0 || f >= featureCount {
		return false, errors.Errorf("feature %d out of range", f)
	}
	_, ok := featureCapabilities[f]
	return ok, nil
}

// SetFeature writes a normalized [0, 1] value to the feature's sensor
// option.
func (c *realsenseCamera) SetFeature(f Feature, value float64) error {
	fc, err := c.settableCapability(f)
	if err != nil {
		return err
	}
	if value < 0 || value > 1 {
		return errors.Errorf("feature value %v out of [0, 1]", value)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setColorOptionNormalized(fc.option, value)
}

// GetFeature reads the feature's sensor option, normalized to [0, 1].
func (c *realsenseCamera) GetFeature(f Feature) (float64, error) {
	fc, err := c.settableCapability(f)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getColorOptionNormalized(fc.option)
}

// SetFeaturePair always fails: no feature here carries two values.
func (c *realsenseCamera) SetFeaturePair(f Feature, value1, value2 float64) error {
	return errors.Errorf("feature %s does not take a pair of values", f)
}

// GetFeaturePair always fails: no feature here carries two values.
func (c *realsenseCamera) GetFeaturePair(f Feature) (float64, float64, error) {
	return 0, 0, errors.Errorf("feature %s does not carry a pair of values", f)
}

// HasOnOff reports whether the feature can be switched on and off. Only
// features with an automatic mode have a usable switch.
func (c *realsenseCamera) HasOnOff(f Feature) (bool, error) {
	fc, ok := featureCapabilities[f]
	if !ok {
		return false, nil
	}
	return fc.hasAuto, nil
}

// SetActive switches a feature's automatic control on or off.
func (c *realsenseCamera) SetActive(f Feature, on bool) error {
	fc, ok := featureCapabilities[f]
	if !ok || !fc.hasAuto {
		return errors.Errorf("feature %s has no on/off switch", f)
	}
	v := 0.0
	if on {
		v = 1.0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setColorOption(fc.autoOption, v)
}

// GetActive reports whether a feature's automatic control is on.
func (c *realsenseCamera) GetActive(f Feature) (bool, error) {
	fc, ok := featureCapabilities[f]
	if !ok || !fc.hasAuto {
		return false, errors.Errorf("feature %s has no on/off switch", f)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, err := c.getColorOption(fc.autoOption)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// HasAuto reports whether the feature has an automatic mode.
func (c *realsenseCamera) HasAuto(f Feature) (bool, error) {
	fc, ok := featureCapabilities[f]
	return ok && fc.hasAuto, nil
}

// HasManual reports whether the feature's value can be written directly.
func (c *realsenseCamera) HasManual(f Feature) (bool, error) {
	fc, ok := featureCapabilities[f]
	return ok && fc.settable, nil
}

// HasOnePush reports whether the feature supports a one-shot automatic
// adjustment. Anything with an automatic mode does.
func (c *realsenseCamera) HasOnePush(f Feature) (bool, error) {
	return c.HasAuto(f)
}

// SetMode switches a feature between automatic and manual control.
func (c *realsenseCamera) SetMode(f Feature, mode FeatureMode) error {
	fc, ok := featureCapabilities[f]
	if !ok {
		return errors.Errorf("feature %s is not supported", f)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch mode {
	case ModeAuto:
		if !fc.hasAuto {
			return errors.Errorf("feature %s has no automatic mode", f)
		}
		return c.setColorOption(fc.autoOption, 1)
	case ModeManual:
		if !fc.settable {
			return errors.Errorf("feature %s has no manual mode", f)
		}
		if fc.hasAuto {
			return c.setColorOption(fc.autoOption, 0)
		}
		return nil
	default:
		return errors.Errorf("unknown mode %d for feature %s", mode, f)
	}
}

// GetMode reports which side drives the feature right now. Features
// without an automatic mode are always manual.
func (c *realsenseCamera) GetMode(f Feature) (FeatureMode, error) {
	fc, ok := featureCapabilities[f]
	if !ok {
		return ModeUnknown, errors.Errorf("feature %s is not supported", f)
	}
	if !fc.hasAuto {
		return ModeManual, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, err := c.getColorOption(fc.autoOption)
	if err != nil {
		return ModeUnknown, err
	}
	if v != 0 {
		return ModeAuto, nil
	}
	return ModeManual, nil
}

// SetOnePush runs a one-shot automatic adjustment: the feature is put
// under automatic control long enough for the device to converge, then
// handed back to manual.
func (c *realsenseCamera) SetOnePush(f Feature) error {
	fc, ok := featureCapabilities[f]
	if !ok || !fc.hasAuto {
		return errors.Errorf("feature %s has no one-push adjustment", f)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.setColorOption(fc.autoOption, 1); err != nil {
		return err
	}
	return c.setColorOption(fc.autoOption, 0)
}

func (c *realsenseCamera) settableCapability(f Feature) (featureCapability, error) {
	fc, ok := featureCapabilities[f]
	if !ok {
		return featureCapability{}, errors.Errorf("feature %s is not supported", f)
	}
	if !fc.settable {
		return featureCapability{}, errors.Errorf("feature %s cannot be read or written by value", f)
	}
	return fc, nil
}

// setColorOption writes a raw value to a color-sensor option. Callers hold
// the mutex.
func (c *realsenseCamera) setColorOption(opt rs2.Option, value float64) error {
	if c.sensors.color == nil {
		return errors.New("camera is not open")
	}
	if !c.sensors.color.Supports(opt) {
		return errors.Errorf("color sensor does not support %s", opt)
	}
	if err := c.sensors.color.SetOption(opt, value); err != nil {
		c.recordErr(err)
		c.logger.Warnf("writing color option %s failed: %v", opt, err)
		return errors.Wrapf(err, "writing color option %s failed", opt)
	}
	return nil
}

func (c *realsenseCamera) getColorOption(opt rs2.Option) (float64, error) {
	if c.sensors.color == nil {
		return 0, errors.New("camera is not open")
	}
	if !c.sensors.color.Supports(opt) {
		return 0, errors.Errorf("color sensor does not support %s", opt)
	}
	v, err := c.sensors.color.Option(opt)
	if err != nil {
		c.recordErr(err)
		return 0, errors.Wrapf(err, "reading color option %s failed", opt)
	}
	return v, nil
}

// setColorOptionNormalized maps a [0, 1] value onto the option's range
// before writing.
func (c *realsenseCamera) setColorOptionNormalized(opt rs2.Option, value float64) error {
	if c.sensors.color == nil {
		return errors.New("camera is not open")
	}
	if !c.sensors.color.Supports(opt) {
		return errors.Errorf("color sensor does not support %s", opt)
	}
	r, err := c.sensors.color.OptionRange(opt)
	if err != nil {
		c.recordErr(err)
		return errors.Wrapf(err, "reading range of color option %s failed", opt)
	}
	return c.setColorOption(opt, r.Min+value*(r.Max-r.Min))
}

func (c *realsenseCamera) getColorOptionNormalized(opt rs2.Option) (float64, error) {
	raw, err := c.getColorOption(opt)
	if err != nil {
		return 0, err
	}
	r, err := c.sensors.color.OptionRange(opt)
	if err != nil {
		c.recordErr(err)
		return 0, errors.Wrapf(err, "reading range of color option %s failed", opt)
	}
	if r.Max == r.Min {
		return 0, nil
	}
	return (raw - r.Min) / (r.Max - r.Min), nil
}
