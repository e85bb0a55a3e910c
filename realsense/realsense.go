// Package realsense exposes an Intel RealSense depth/RGB camera as an RGBD
// camera resource. The adapter owns one vendor pipeline: it negotiates the
// color and depth streams at open, pulls coherent frame sets on demand, and
// maps the host's camera-feature surface onto vendor sensor options. All
// SDK access goes through the rs2 boundary package, so the adapter runs
// unchanged against real hardware or the simulated device tree in rs2/fake.
package realsense

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/data"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/pointcloud"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/rimage"
	"go.viam.com/rdk/rimage/transform"
	"go.viam.com/rdk/spatialmath"
	rutils "go.viam.com/rdk/utils"

	"github.com/viam-soleng/realsense-rgbd/rs2"
	"github.com/viam-soleng/realsense-rgbd/rs2/fake"
)

// Model is the model triplet this module serves.
var Model = resource.NewModel("viam-soleng", "camera", "realsense")

const (
	defaultWidth  = 640
	defaultHeight = 480
	defaultPeriod = 30

	// warmupFrameCount frames are dropped after every pipeline start so
	// auto exposure and auto white balance can stabilize.
	warmupFrameCount = 30

	colorSourceName = "color"
	depthSourceName = "depth"
)

func init() {
	resource.RegisterComponent(
		camera.API,
		Model,
		resource.Registration[camera.Camera, *Config]{
			Constructor: NewCamera,
		})
}

// Resolution is a requested stream resolution.
type Resolution struct {
	Width  int `json:"width_px"`
	Height int `json:"height_px"`
}

// Config is the attribute struct for the realsense camera.
type Config struct {
	SerialNumber string `json:"serial_number,omitempty"`
	// Period is the camera period, reported as the frame-rate property.
	Period  int  `json:"period,omitempty"`
	Verbose bool `json:"verbose,omitempty"`
	// Registered is a hidden flag accepted for config compatibility.
	// Depth is always registered onto the color viewport regardless.
	Registered      *bool       `json:"registered,omitempty"`
	Accuracy        *float64    `json:"accuracy,omitempty"`
	ClipPlanes      []float64   `json:"clip_planes,omitempty"`
	DepthResolution *Resolution `json:"depth_resolution,omitempty"`
	RgbResolution   *Resolution `json:"rgb_resolution,omitempty"`
	// HotplugTimeoutSec bounds the open-time wait for a device to be
	// plugged in. Zero waits indefinitely.
	HotplugTimeoutSec int `json:"hotplug_timeout_sec,omitempty"`
	// FakeHardware backs the camera with a simulated device tree.
	FakeHardware bool `json:"fake_hardware,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) ([]string, []string, error) {
	if conf.Period < 0 {
		return nil, nil, errors.Errorf("period must be non-negative, got %d", conf.Period)
	}
	if len(conf.ClipPlanes) != 0 && len(conf.ClipPlanes) != 2 {
		return nil, nil, errors.Errorf("clip_planes wants [near, far], got %d values", len(conf.ClipPlanes))
	}
	if len(conf.ClipPlanes) == 2 && conf.ClipPlanes[0] >= conf.ClipPlanes[1] {
		return nil, nil, errors.Errorf("clip_planes near plane %v must be below far plane %v",
			conf.ClipPlanes[0], conf.ClipPlanes[1])
	}
	for _, res := range []*Resolution{conf.DepthResolution, conf.RgbResolution} {
		if res != nil && (res.Width <= 0 || res.Height <= 0) {
			return nil, nil, errors.Errorf("got illegal resolution (%d, %d)", res.Width, res.Height)
		}
	}
	if conf.HotplugTimeoutSec < 0 {
		return nil, nil, errors.Errorf("hotplug_timeout_sec must be non-negative, got %d", conf.HotplugTimeoutSec)
	}
	return []string{}, nil, nil
}

func (conf *Config) period() int {
	if conf.Period == 0 {
		return defaultPeriod
	}
	return conf.Period
}

func resolutionOrDefault(res *Resolution) (int, int) {
	if res == nil {
		return defaultWidth, defaultHeight
	}
	return res.Width, res.Height
}

// sensorPair is the tagged result of device discovery: the depth and color
// sensors classified once by capability query. Handles are owned by the
// device kept alongside them.
type sensorPair struct {
	depth rs2.Sensor
	color rs2.Sensor
}

// realsenseCamera is the adapter. The host serializes calls; the mutex
// only protects reconfiguration against captures in flight.
type realsenseCamera struct {
	resource.Named

	logger logging.Logger
	sys    rs2.System
	align  rs2.Aligner

	mu      sync.Mutex
	conf    *Config
	pipe    rs2.Pipeline
	cfg     *rs2.StreamConfig
	dev     rs2.Device
	sensors sensorPair
	started bool

	colorIntr    rs2.Intrinsics
	depthIntr    rs2.Intrinsics
	depthToColor rs2.Extrinsics
	colorToDepth rs2.Extrinsics

	colorStamp stampSource
	depthStamp stampSource

	lastErrMu sync.Mutex
	lastErr   string
	lastErrAt time.Time
}

// NewCamera opens a camera per the resource config, backed by real
// hardware unless fake_hardware is set.
func NewCamera(
	ctx context.Context,
	_ resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (camera.Camera, error) {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return nil, err
	}
	var sys rs2.System
	if newConf.FakeHardware {
		sys = fake.NewSystem()
	} else {
		sys, err = rs2.OpenSystem()
		if err != nil {
			return nil, err
		}
	}
	return NewCameraFromSystem(ctx, sys, conf, logger)
}

// NewCameraFromSystem opens a camera against an explicit SDK system. Tests
// use this to supply a simulated one.
func NewCameraFromSystem(
	ctx context.Context,
	sys rs2.System,
	conf resource.Config,
	logger logging.Logger,
) (camera.Camera, error) {
	cam := &realsenseCamera{
		Named:  conf.ResourceName().AsNamed(),
		logger: logger.WithFields("camera_name", conf.ResourceName().ShortName()),
		sys:    sys,
		align:  sys.NewAligner(rs2.StreamColor),
	}
	if err := cam.Reconfigure(ctx, nil, conf); err != nil {
		return nil, err
	}
	return cam, nil
}

// Reconfigure is the adapter's open: it tears down any running pipeline,
// renegotiates the streams, runs the warm-up discard loop, discovers the
// device's sensors, records intrinsics/extrinsics, and applies parameter
// overrides. Any failure fails the open.
func (c *realsenseCamera) Reconfigure(
	ctx context.Context,
	_ resource.Dependencies,
	conf resource.Config,
) error {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		if err := c.pipe.Stop(); err != nil {
			c.logger.Errorw("failed to stop the pipeline before reconfigure", "error", err)
		}
		c.started = false
	}

	if err := c.openDevice(ctx, newConf); err != nil {
		return errors.Wrap(err, "failed to initialize the realsense device")
	}
	if err := c.applyParams(newConf); err != nil {
		return err
	}
	c.conf = newConf
	return nil
}

// applyParams forwards the user-supplied overrides to the sensors. All
// failures are collected so the log names every bad parameter, and any
// failure fails the open.
func (c *realsenseCamera) applyParams(conf *Config) error {
	var all error
	if conf.Accuracy != nil {
		if err := c.setDepthAccuracyLocked(*conf.Accuracy); err != nil {
			all = multierr.Append(all, errors.Wrap(err, "setting param accuracy failed"))
		}
	}
	if len(conf.ClipPlanes) == 2 {
		if err := c.setDepthClipPlanesLocked(conf.ClipPlanes[0], conf.ClipPlanes[1]); err != nil {
			all = multierr.Append(all, errors.Wrap(err, "setting param clip_planes failed"))
		}
	}
	if all != nil {
		c.logger.Errorw("failed to apply camera parameters", "error", all)
	}
	return all
}

// Close stops the pipeline. Shutdown is best effort: a failing stop is
// logged, never surfaced.
func (c *realsenseCamera) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		if err := c.pipe.Stop(); err != nil {
			c.logger.Errorw("failed to stop the pipeline", "error", err)
		}
		c.started = false
	}
	return nil
}

// Images returns the color and depth channel of one aligned frame set,
// optionally filtered by source name.
func (c *realsenseCamera) Images(
	ctx context.Context,
	filterSourceNames []string,
	extra map[string]interface{},
) ([]camera.NamedImage, resource.ResponseMetadata, error) {
	wantColor, wantDepth := wantSources(filterSourceNames)
	if !wantColor && !wantDepth {
		return nil, resource.ResponseMetadata{}, errors.Errorf("no known sources in filter %v", filterSourceNames)
	}

	img, dm, colorStamp, depthStamp, err := c.captureBoth(ctx, wantColor, wantDepth)
	if err != nil {
		return nil, resource.ResponseMetadata{}, err
	}

	var imgs []camera.NamedImage
	meta := resource.ResponseMetadata{}
	if wantColor {
		named, err := camera.NamedImageFromImage(img, colorSourceName, rutils.MimeTypeJPEG, data.Annotations{})
		if err != nil {
			return nil, resource.ResponseMetadata{}, err
		}
		imgs = append(imgs, named)
		meta.CapturedAt = colorStamp.Time
	}
	if wantDepth {
		named, err := camera.NamedImageFromImage(dm, depthSourceName, rutils.MimeTypeRawDepth, data.Annotations{})
		if err != nil {
			return nil, resource.ResponseMetadata{}, err
		}
		imgs = append(imgs, named)
		if meta.CapturedAt.IsZero() {
			meta.CapturedAt = depthStamp.Time
		}
	}
	return imgs, meta, nil
}

func wantSources(filter []string) (wantColor, wantDepth bool) {
	if len(filter) == 0 {
		return true, true
	}
	for _, name := range filter {
		switch name {
		case colorSourceName:
			wantColor = true
		case depthSourceName:
			wantDepth = true
		}
	}
	return wantColor, wantDepth
}

// Image returns the color channel encoded per the mime type hint.
func (c *realsenseCamera) Image(
	ctx context.Context,
	mimeType string,
	extra map[string]interface{},
) ([]byte, camera.ImageMetadata, error) {
	img, _, err := c.RGBImage(ctx)
	if err != nil {
		return nil, camera.ImageMetadata{}, err
	}
	if mimeType == "" {
		mimeType = rutils.MimeTypeJPEG
	}
	bytes, err := rimage.EncodeImage(ctx, img, mimeType)
	if err != nil {
		return nil, camera.ImageMetadata{}, err
	}
	return bytes, camera.ImageMetadata{MimeType: mimeType}, nil
}

// NextPointCloud projects one aligned color/depth pair through the color
// intrinsics.
func (c *realsenseCamera) NextPointCloud(
	ctx context.Context,
	extra map[string]interface{},
) (pointcloud.PointCloud, error) {
	img, dm, _, _, err := c.captureBoth(ctx, true, true)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	intr := pinholeFromIntrinsics(c.colorIntr)
	c.mu.Unlock()
	return intr.RGBDToPointCloud(rimage.ConvertImage(img), dm)
}

// Properties reports the color stream's camera model.
func (c *realsenseCamera) Properties(ctx context.Context) (camera.Properties, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return camera.Properties{}, errors.New("camera is not open")
	}
	frameRate := float32(c.conf.period())
	if prof, err := c.pipe.ActiveProfile(rs2.StreamColor); err == nil && prof.FPS > 0 {
		frameRate = float32(prof.FPS)
	}
	props := camera.Properties{
		SupportsPCD:     true,
		ImageType:       camera.ColorStream,
		IntrinsicParams: pinholeFromIntrinsics(c.colorIntr),
		MimeTypes:       []string{rutils.MimeTypeJPEG, rutils.MimeTypePNG, rutils.MimeTypeRawRGBA, rutils.MimeTypeRawDepth},
		FrameRate:       frameRate,
	}
	if dist := distortionFromIntrinsics(c.colorIntr); dist != nil {
		props.DistortionParams = dist
	}
	return props, nil
}

// Geometries reports the camera housing, a D435-sized box.
func (c *realsenseCamera) Geometries(ctx context.Context, extra map[string]interface{}) ([]spatialmath.Geometry, error) {
	box, err := spatialmath.NewBox(
		spatialmath.NewZeroPose(),
		r3.Vector{X: 90, Y: 25, Z: 25},
		c.Name().ShortName(),
	)
	if err != nil {
		return nil, err
	}
	return []spatialmath.Geometry{box}, nil
}

// pinholeFromIntrinsics converts the vendor camera model into the host's.
func pinholeFromIntrinsics(in rs2.Intrinsics) *transform.PinholeCameraIntrinsics {
	return &transform.PinholeCameraIntrinsics{
		Width:  in.Width,
		Height: in.Height,
		Fx:     in.Fx,
		Fy:     in.Fy,
		Ppx:    in.Ppx,
		Ppy:    in.Ppy,
	}
}

// distortionFromIntrinsics converts the vendor distortion coefficients,
// ordered (k1, k2, p1, p2, k3), into the host's plumb-bob model. Streams
// without distortion report nil.
func distortionFromIntrinsics(in rs2.Intrinsics) *transform.BrownConrady {
	if in.Model == rs2.DistortionNone {
		return nil
	}
	return &transform.BrownConrady{
		RadialK1:     in.Coeffs[0],
		RadialK2:     in.Coeffs[1],
		TangentialP1: in.Coeffs[2],
		TangentialP2: in.Coeffs[3],
		RadialK3:     in.Coeffs[4],
	}
}

// recordErr keeps the most recent boundary failure for the last-error
// query.
func (c *realsenseCamera) recordErr(err error) {
	if err == nil {
		return
	}
	c.lastErrMu.Lock()
	c.lastErr = err.Error()
	c.lastErrAt = time.Now()
	c.lastErrMu.Unlock()
}

// LastError returns the most recent SDK failure message and when it
// happened, empty if nothing failed yet.
func (c *realsenseCamera) LastError() (string, time.Time) {
	c.lastErrMu.Lock()
	defer c.lastErrMu.Unlock()
	return c.lastErr, c.lastErrAt
}

var _ camera.Camera = (*realsenseCamera)(nil)
