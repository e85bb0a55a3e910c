package rs2

// Format identifies the pixel layout of a stream.
type Format int

// Pixel formats the adapter knows how to interpret, mirroring the vendor
// format table.
const (
	FormatAny Format = iota
	FormatZ16
	FormatDisparity16
	FormatY8
	FormatY16
	FormatRGB8
	FormatBGR8
	FormatRGBA8
	FormatBGRA8
	FormatRaw8
	FormatRaw16
	FormatYUYV
	FormatMotionXYZ32F
)

func (f Format) String() string {
	switch f {
	case FormatZ16:
		return "Z16"
	case FormatDisparity16:
		return "DISPARITY16"
	case FormatY8:
		return "Y8"
	case FormatY16:
		return "Y16"
	case FormatRGB8:
		return "RGB8"
	case FormatBGR8:
		return "BGR8"
	case FormatRGBA8:
		return "RGBA8"
	case FormatBGRA8:
		return "BGRA8"
	case FormatRaw8:
		return "RAW8"
	case FormatRaw16:
		return "RAW16"
	case FormatYUYV:
		return "YUYV"
	case FormatMotionXYZ32F:
		return "MOTION_XYZ32F"
	default:
		return "ANY"
	}
}

// BytesPerPixel reports the per-pixel buffer width of a format, or zero for
// formats the adapter does not handle.
func (f Format) BytesPerPixel() int {
	switch f {
	case FormatRaw8, FormatY8:
		return 1
	case FormatZ16, FormatDisparity16, FormatY16, FormatRaw16, FormatYUYV:
		return 2
	case FormatRGB8, FormatBGR8:
		return 3
	case FormatRGBA8, FormatBGRA8:
		return 4
	default:
		return 0
	}
}
