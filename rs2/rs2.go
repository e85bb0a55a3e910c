// Package rs2 is the boundary between the realsense camera adapter and the
// vendor SDK. It exposes the handful of librealsense objects the adapter
// touches (pipeline, device, sensor, frame) as plain Go interfaces so the
// adapter can be driven by real hardware or by the simulated device tree in
// rs2/fake.
//
// All failures cross this boundary as explicit *Error values carrying an
// ErrorKind; nothing panics out of an SDK call.
package rs2

import (
	"context"
	"time"
)

// Stream identifies one data stream of a device.
type Stream int

// The streams this adapter negotiates.
const (
	StreamAny Stream = iota
	StreamDepth
	StreamColor
)

func (s Stream) String() string {
	switch s {
	case StreamDepth:
		return "depth"
	case StreamColor:
		return "color"
	default:
		return "any"
	}
}

// StreamProfile is a negotiated (stream, format, resolution, frame rate)
// tuple for one stream.
type StreamProfile struct {
	Stream Stream
	Format Format
	Width  int
	Height int
	FPS    int
}

// CameraInfo keys device identity strings.
type CameraInfo int

// Device information fields, mirroring the vendor camera-info table.
const (
	InfoName CameraInfo = iota
	InfoSerialNumber
	InfoFirmwareVersion
	InfoPhysicalPort
	InfoProductID
	InfoUSBType
)

func (i CameraInfo) String() string {
	switch i {
	case InfoName:
		return "name"
	case InfoSerialNumber:
		return "serial number"
	case InfoFirmwareVersion:
		return "firmware version"
	case InfoPhysicalPort:
		return "physical port"
	case InfoProductID:
		return "product id"
	case InfoUSBType:
		return "usb type descriptor"
	default:
		return "unknown"
	}
}

// AllCameraInfo is the set of identity fields a Device may report.
var AllCameraInfo = []CameraInfo{
	InfoName, InfoSerialNumber, InfoFirmwareVersion,
	InfoPhysicalPort, InfoProductID, InfoUSBType,
}

// System is the entry point to the SDK: device enumeration, hot-plug
// waiting, and construction of pipelines and aligners.
type System interface {
	// QueryDevices lists the currently connected devices.
	QueryDevices() ([]Device, error)

	// WaitForDevice blocks until a device connects or ctx is done. It is
	// the hot-plug path used when QueryDevices comes back empty at open
	// time.
	WaitForDevice(ctx context.Context) (Device, error)

	// NewPipeline returns an unstarted pipeline bound to this system.
	NewPipeline() Pipeline

	// NewAligner returns an aligner that maps every frame in a set onto
	// the viewport of the given stream.
	NewAligner(to Stream) Aligner
}

// Device is one physical camera. Sensors returns owned handles, not views
// into a borrowed list; they stay valid for the life of the Device.
type Device interface {
	Sensors() []Sensor
	Supports(info CameraInfo) bool
	Info(info CameraInfo) string
}

// Sensor is one sensing unit of a device (stereo/depth module or RGB
// imager) with its controllable options.
type Sensor interface {
	// IsDepthSensor reports whether this sensor produces depth frames.
	IsDepthSensor() bool

	Supports(opt Option) bool
	Option(opt Option) (float64, error)
	SetOption(opt Option, value float64) error
	OptionRange(opt Option) (OptionRange, error)
	OptionDescription(opt Option) string
}

// OptionRange bounds a writable sensor option.
type OptionRange struct {
	Min     float64
	Max     float64
	Default float64
}

// StreamConfig collects stream requests for a pipeline start. Enabling a
// stream that was already enabled replaces the previous request; the
// config is shared by all streams, so a restart always renegotiates every
// enabled stream together.
type StreamConfig struct {
	requests map[Stream]StreamProfile
	serial   string
}

// EnableDevice restricts the pipeline to the device with the given serial
// number.
func (c *StreamConfig) EnableDevice(serial string) { c.serial = serial }

// Serial returns the requested device serial, empty for any device.
func (c *StreamConfig) Serial() string { return c.serial }

// EnableStream requests a stream with the given format and resolution.
// An fps of zero lets the device pick.
func (c *StreamConfig) EnableStream(stream Stream, width, height int, format Format, fps int) {
	if c.requests == nil {
		c.requests = make(map[Stream]StreamProfile)
	}
	c.requests[stream] = StreamProfile{Stream: stream, Format: format, Width: width, Height: height, FPS: fps}
}

// Requests returns the requested profiles in no particular order.
func (c *StreamConfig) Requests() []StreamProfile {
	out := make([]StreamProfile, 0, len(c.requests))
	for _, r := range c.requests {
		out = append(out, r)
	}
	return out
}

// Request returns the requested profile for one stream, if any.
func (c *StreamConfig) Request(stream Stream) (StreamProfile, bool) {
	r, ok := c.requests[stream]
	return r, ok
}

// Pipeline coordinates stream negotiation and frame retrieval for one
// device.
type Pipeline interface {
	// Start negotiates the requested streams and begins capture.
	Start(cfg *StreamConfig) error

	// Stop halts capture. Stopping an unstarted pipeline is an error.
	Stop() error

	// WaitForFrames blocks until a coherent frame set is available or ctx
	// is done.
	WaitForFrames(ctx context.Context) (FrameSet, error)

	// ActiveProfile returns the negotiated profile of the given stream.
	ActiveProfile(stream Stream) (StreamProfile, error)

	// Intrinsics returns the camera model of the given active stream.
	Intrinsics(stream Stream) (Intrinsics, error)

	// Extrinsics returns the rigid transform from one active stream's
	// reference frame to another's.
	Extrinsics(from, to Stream) (Extrinsics, error)
}

// FrameSet is one coherent set of frames, at most one per stream.
type FrameSet interface {
	ColorFrame() (VideoFrame, bool)
	DepthFrame() (DepthFrame, bool)
}

// VideoFrame is a single captured image buffer.
type VideoFrame interface {
	Profile() StreamProfile
	// Data is the raw pixel buffer, laid out per the profile's format.
	Data() []byte
	// Timestamp is the device capture time of the frame.
	Timestamp() time.Time
}

// DepthFrame is a video frame whose pixels are depth samples.
type DepthFrame interface {
	VideoFrame
	// Distance reports the metric distance at a pixel, in meters.
	Distance(x, y int) float64
}

// Aligner reprojects the frames of a set onto a single stream's viewport.
type Aligner interface {
	Align(fs FrameSet) (FrameSet, error)
}
