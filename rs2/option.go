package rs2

// Option identifies a controllable sensor property.
type Option int

// Sensor options the adapter forwards to, a subset of the vendor option
// table.
const (
	OptionBrightness Option = iota
	OptionContrast
	OptionExposure
	OptionGain
	OptionGamma
	OptionHue
	OptionSaturation
	OptionSharpness
	OptionWhiteBalance
	OptionEnableAutoExposure
	OptionEnableAutoWhiteBalance
	OptionVisualPreset
	OptionAccuracy
	OptionMinDistance
	OptionMaxDistance
	OptionLaserPower
	OptionEmitterEnabled

	// optionCount bounds the enumeration; keep it last.
	optionCount
)

func (o Option) String() string {
	switch o {
	case OptionBrightness:
		return "brightness"
	case OptionContrast:
		return "contrast"
	case OptionExposure:
		return "exposure"
	case OptionGain:
		return "gain"
	case OptionGamma:
		return "gamma"
	case OptionHue:
		return "hue"
	case OptionSaturation:
		return "saturation"
	case OptionSharpness:
		return "sharpness"
	case OptionWhiteBalance:
		return "white balance"
	case OptionEnableAutoExposure:
		return "enable auto exposure"
	case OptionEnableAutoWhiteBalance:
		return "enable auto white balance"
	case OptionVisualPreset:
		return "visual preset"
	case OptionAccuracy:
		return "accuracy"
	case OptionMinDistance:
		return "min distance"
	case OptionMaxDistance:
		return "max distance"
	case OptionLaserPower:
		return "laser power"
	case OptionEmitterEnabled:
		return "emitter enabled"
	default:
		return "unknown option"
	}
}

// AllOptions lists every option in the enumeration, for inventory dumps.
func AllOptions() []Option {
	out := make([]Option, 0, int(optionCount))
	for o := Option(0); o < optionCount; o++ {
		out = append(out, o)
	}
	return out
}
