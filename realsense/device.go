package realsense

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/rdk/rimage"

	"github.com/viam-soleng/realsense-rgbd/rs2"
)

// SensorStatus is the adapter's view of the device connection.
type SensorStatus int

// Sensor statuses.
const (
	StatusNotReady SensorStatus = iota
	StatusWaitingForDevice
	StatusWorking
	StatusError
)

func (s SensorStatus) String() string {
	switch s {
	case StatusWaitingForDevice:
		return "waiting_for_device"
	case StatusWorking:
		return "working"
	case StatusError:
		return "error"
	default:
		return "not_ready"
	}
}

// openDevice negotiates both streams against whichever device is present,
// waiting for a hot plug if none is. On success the pipeline is running,
// the warm-up frames have been discarded, the sensors are classified, and
// the stream transformations are recorded.
func (c *realsenseCamera) openDevice(ctx context.Context, conf *Config) error {
	cfg := &rs2.StreamConfig{}
	if conf.SerialNumber != "" {
		cfg.EnableDevice(conf.SerialNumber)
	}
	dw, dh := resolutionOrDefault(conf.DepthResolution)
	cw, ch := resolutionOrDefault(conf.RgbResolution)
	cfg.EnableStream(rs2.StreamDepth, dw, dh, rs2.FormatZ16, conf.period())
	cfg.EnableStream(rs2.StreamColor, cw, ch, rs2.FormatRGB8, conf.period())

	pipe := c.sys.NewPipeline()
	if err := pipe.Start(cfg); err != nil {
		if rs2.KindOf(err) != rs2.ErrNoDevice {
			c.recordErr(err)
			return err
		}
		if err := c.waitForDevice(ctx, conf); err != nil {
			return err
		}
		if err := pipe.Start(cfg); err != nil {
			c.recordErr(err)
			return err
		}
	}
	c.pipe = pipe
	c.cfg = cfg
	c.started = true

	if err := c.warmup(ctx); err != nil {
		return err
	}
	if err := c.attachDevice(cfg.Serial()); err != nil {
		return err
	}
	if err := c.updateTransformations(); err != nil {
		return err
	}
	if conf.Verbose {
		c.logDeviceDetails()
	}
	return nil
}

// waitForDevice blocks until a device is plugged in. A zero timeout waits
// as long as the caller's context allows; the wait is always abortable.
func (c *realsenseCamera) waitForDevice(ctx context.Context, conf *Config) error {
	c.logger.Infof("no realsense device found, waiting for one to be plugged in")
	waitCtx := ctx
	if conf.HotplugTimeoutSec > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, time.Duration(conf.HotplugTimeoutSec)*time.Second)
		defer cancel()
	}
	dev, err := c.sys.WaitForDevice(waitCtx)
	if err != nil {
		c.recordErr(err)
		return errors.Wrap(err, "no realsense device became available")
	}
	if dev.Supports(rs2.InfoName) {
		c.logger.Infof("device %s plugged in", dev.Info(rs2.InfoName))
	}
	// Give the platform a moment to finish enumerating the new device.
	// Once a device is in hand the hot-plug bound no longer applies, only
	// the caller's own context.
	if !goutils.SelectContextOrWait(ctx, 100*time.Millisecond) {
		return ctx.Err()
	}
	return nil
}

// warmup discards the first frames of a fresh pipeline so auto exposure
// settles before the first real capture.
func (c *realsenseCamera) warmup(ctx context.Context) error {
	for i := 0; i < warmupFrameCount; i++ {
		if _, err := c.pipe.WaitForFrames(ctx); err != nil {
			c.recordErr(err)
			return errors.Wrap(err, "sensor warm-up failed")
		}
	}
	return nil
}

// attachDevice looks up the streaming device and classifies its sensors
// into the tagged depth/color pair.
func (c *realsenseCamera) attachDevice(serial string) error {
	devs, err := c.sys.QueryDevices()
	if err != nil {
		c.recordErr(err)
		return err
	}
	var dev rs2.Device
	for _, d := range devs {
		if serial == "" || (d.Supports(rs2.InfoSerialNumber) && d.Info(rs2.InfoSerialNumber) == serial) {
			dev = d
			break
		}
	}
	if dev == nil {
		return errors.New("streaming device disappeared before sensor discovery")
	}

	var pair sensorPair
	for _, s := range dev.Sensors() {
		if s.IsDepthSensor() {
			pair.depth = s
		} else {
			pair.color = s
		}
	}
	if pair.depth == nil || pair.color == nil {
		return errors.New("device is missing a depth or color sensor")
	}
	c.dev = dev
	c.sensors = pair
	return nil
}

// updateTransformations re-reads the per-stream camera models and the
// depth/color extrinsics from the active profiles. Called after every
// pipeline (re)start.
func (c *realsenseCamera) updateTransformations() error {
	var err error
	if c.depthIntr, err = c.pipe.Intrinsics(rs2.StreamDepth); err != nil {
		c.recordErr(err)
		return errors.Wrap(err, "reading depth intrinsics failed")
	}
	if c.colorIntr, err = c.pipe.Intrinsics(rs2.StreamColor); err != nil {
		c.recordErr(err)
		return errors.Wrap(err, "reading color intrinsics failed")
	}
	if c.depthToColor, err = c.pipe.Extrinsics(rs2.StreamDepth, rs2.StreamColor); err != nil {
		c.recordErr(err)
		return errors.Wrap(err, "reading depth-to-color extrinsics failed")
	}
	if c.colorToDepth, err = c.pipe.Extrinsics(rs2.StreamColor, rs2.StreamDepth); err != nil {
		c.recordErr(err)
		return errors.Wrap(err, "reading color-to-depth extrinsics failed")
	}
	return nil
}

// logDeviceDetails dumps the device identity and every supported sensor
// option at open, for field debugging.
func (c *realsenseCamera) logDeviceDetails() {
	for _, info := range rs2.AllCameraInfo {
		if c.dev.Supports(info) {
			c.logger.Infof("device %s: %s", info, c.dev.Info(info))
		}
	}
	for _, opt := range rs2.AllOptions() {
		if c.sensors.color.Supports(opt) {
			c.logger.Debugf("color sensor option %s: %s", opt, c.sensors.color.OptionDescription(opt))
		}
		if c.sensors.depth.Supports(opt) {
			c.logger.Debugf("depth sensor option %s: %s", opt, c.sensors.depth.OptionDescription(opt))
		}
	}
}

// captureBoth pulls one frame set, aligns depth onto the color viewport,
// and converts the requested channels. Stamps advance only for the streams
// actually delivered.
func (c *realsenseCamera) captureBoth(
	ctx context.Context,
	wantColor, wantDepth bool,
) (image.Image, *rimage.DepthMap, Stamp, Stamp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil, nil, Stamp{}, Stamp{}, errors.New("camera is not open")
	}

	fs, err := c.pipe.WaitForFrames(ctx)
	if err != nil {
		c.recordErr(err)
		return nil, nil, Stamp{}, Stamp{}, errors.Wrap(err, "frame capture failed")
	}
	if wantDepth {
		// Depth is always registered onto the color viewport so the two
		// channels stay pixel-aligned.
		if fs, err = c.align.Align(fs); err != nil {
			c.recordErr(err)
			return nil, nil, Stamp{}, Stamp{}, errors.Wrap(err, "depth-to-color alignment failed")
		}
	}

	var (
		img                    image.Image
		dm                     *rimage.DepthMap
		colorStamp, depthStamp Stamp
	)
	if wantColor {
		frame, ok := fs.ColorFrame()
		if !ok {
			return nil, nil, Stamp{}, Stamp{}, errors.New("frame set is missing the color frame")
		}
		if img, err = frameToImage(frame); err != nil {
			c.recordErr(err)
			return nil, nil, Stamp{}, Stamp{}, err
		}
		colorStamp = c.colorStamp.update(frame.Timestamp())
	}
	if wantDepth {
		frame, ok := fs.DepthFrame()
		if !ok {
			return nil, nil, Stamp{}, Stamp{}, errors.New("frame set is missing the depth frame")
		}
		if dm, err = frameToDepthMap(frame); err != nil {
			c.recordErr(err)
			return nil, nil, Stamp{}, Stamp{}, err
		}
		depthStamp = c.depthStamp.update(frame.Timestamp())
	}
	return img, dm, colorStamp, depthStamp, nil
}

// RGBImage captures one color image and its stamp.
func (c *realsenseCamera) RGBImage(ctx context.Context) (image.Image, Stamp, error) {
	img, _, stamp, _, err := c.captureBoth(ctx, true, false)
	return img, stamp, err
}

// DepthImage captures one registered depth map and its stamp.
func (c *realsenseCamera) DepthImage(ctx context.Context) (*rimage.DepthMap, Stamp, error) {
	_, dm, _, stamp, err := c.captureBoth(ctx, false, true)
	return dm, stamp, err
}

// BothImages captures one coherent color/depth pair and both stamps.
func (c *realsenseCamera) BothImages(ctx context.Context) (image.Image, *rimage.DepthMap, Stamp, Stamp, error) {
	return c.captureBoth(ctx, true, true)
}

// restartStreams renegotiates the shared stream config and refreshes the
// transformations. Used by the resolution setters; an unsupported mode
// fails the call and leaves the pipeline stopped with the config intact
// for the caller to retry.
func (c *realsenseCamera) restartStreams() error {
	if c.started {
		if err := c.pipe.Stop(); err != nil {
			c.recordErr(err)
			return errors.Wrap(err, "stopping the pipeline failed")
		}
		c.started = false
	}
	if err := c.pipe.Start(c.cfg); err != nil {
		c.recordErr(err)
		return errors.Wrap(err, "restarting the pipeline failed")
	}
	c.started = true
	return c.updateTransformations()
}

// SetDepthResolution switches the depth stream to the given resolution.
// Both streams are renegotiated together; the color stream keeps its
// current resolution.
func (c *realsenseCamera) SetDepthResolution(width, height int) error {
	return c.setResolution(rs2.StreamDepth, width, height)
}

// SetRgbResolution switches the color stream to the given resolution,
// keeping the depth stream's.
func (c *realsenseCamera) SetRgbResolution(width, height int) error {
	return c.setResolution(rs2.StreamColor, width, height)
}

func (c *realsenseCamera) setResolution(stream rs2.Stream, width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.Errorf("got illegal resolution (%d, %d)", width, height)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return errors.New("camera is not open")
	}

	prev, ok := c.cfg.Request(stream)
	if !ok {
		return errors.Errorf("stream %s was never enabled", stream)
	}
	if prev.Width == width && prev.Height == height {
		return nil
	}
	c.cfg.EnableStream(stream, width, height, prev.Format, prev.FPS)
	if err := c.restartStreams(); err != nil {
		// Roll back to the last good mode so the camera keeps working.
		c.cfg.EnableStream(stream, prev.Width, prev.Height, prev.Format, prev.FPS)
		if rerr := c.restartStreams(); rerr != nil {
			c.logger.Errorw("failed to restore the previous stream mode", "error", rerr)
		}
		return errors.Wrapf(err, "resolution (%d, %d) rejected for %s stream", width, height, stream)
	}
	return nil
}

// DepthResolution reports the active depth stream resolution.
func (c *realsenseCamera) DepthResolution() (int, int, error) {
	return c.activeResolution(rs2.StreamDepth)
}

// RgbResolution reports the active color stream resolution.
func (c *realsenseCamera) RgbResolution() (int, int, error) {
	return c.activeResolution(rs2.StreamColor)
}

func (c *realsenseCamera) activeResolution(stream rs2.Stream) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return 0, 0, errors.New("camera is not open")
	}
	prof, err := c.pipe.ActiveProfile(stream)
	if err != nil {
		c.recordErr(err)
		return 0, 0, err
	}
	return prof.Width, prof.Height, nil
}

// DepthAccuracy reports the device's current depth accuracy preset value.
func (c *realsenseCamera) DepthAccuracy() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.depthOption(rs2.OptionAccuracy)
}

// SetDepthAccuracy sets the depth accuracy preset.
func (c *realsenseCamera) SetDepthAccuracy(value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setDepthAccuracyLocked(value)
}

func (c *realsenseCamera) setDepthAccuracyLocked(value float64) error {
	return c.setDepthOption(rs2.OptionAccuracy, value)
}

// DepthClipPlanes reports the near and far depth clipping distances in
// meters.
func (c *realsenseCamera) DepthClipPlanes() (near, far float64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if near, err = c.depthOption(rs2.OptionMinDistance); err != nil {
		return 0, 0, err
	}
	if far, err = c.depthOption(rs2.OptionMaxDistance); err != nil {
		return 0, 0, err
	}
	return near, far, nil
}

// SetDepthClipPlanes sets the near and far depth clipping distances.
func (c *realsenseCamera) SetDepthClipPlanes(near, far float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setDepthClipPlanesLocked(near, far)
}

func (c *realsenseCamera) setDepthClipPlanesLocked(near, far float64) error {
	if near >= far {
		return errors.Errorf("near plane %v must be below far plane %v", near, far)
	}
	if err := c.setDepthOption(rs2.OptionMinDistance, near); err != nil {
		return err
	}
	return c.setDepthOption(rs2.OptionMaxDistance, far)
}

func (c *realsenseCamera) depthOption(opt rs2.Option) (float64, error) {
	if c.sensors.depth == nil {
		return 0, errors.New("camera is not open")
	}
	if !c.sensors.depth.Supports(opt) {
		return 0, errors.Errorf("depth sensor does not support %s", opt)
	}
	v, err := c.sensors.depth.Option(opt)
	if err != nil {
		c.recordErr(err)
		return 0, errors.Wrapf(err, "reading depth option %s failed", opt)
	}
	return v, nil
}

func (c *realsenseCamera) setDepthOption(opt rs2.Option, value float64) error {
	if c.sensors.depth == nil {
		return errors.New("camera is not open")
	}
	if !c.sensors.depth.Supports(opt) {
		return errors.Errorf("depth sensor does not support %s", opt)
	}
	if err := c.sensors.depth.SetOption(opt, value); err != nil {
		c.recordErr(err)
		return errors.Wrapf(err, "writing depth option %s failed", opt)
	}
	return nil
}

// FieldOfView reports the color stream's horizontal and vertical field of
// view in degrees, computed from the active intrinsics.
func (c *realsenseCamera) FieldOfView() (horizontal, vertical float64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return 0, 0, errors.New("camera is not open")
	}
	h, v := rs2.FOV(c.colorIntr)
	return h, v, nil
}

// SetFieldOfView always fails: the field of view follows the lens and the
// negotiated resolution and cannot be commanded.
func (c *realsenseCamera) SetFieldOfView(horizontal, vertical float64) error {
	c.logger.Warnf("cannot set the field of view on a realsense camera")
	return errors.New("setting the field of view is not supported")
}

// Mirroring always fails: the device has no mirroring control.
func (c *realsenseCamera) Mirroring() (bool, error) {
	c.logger.Warnf("mirroring is not supported on a realsense camera")
	return false, errors.New("mirroring is not supported")
}

// SetMirroring always fails: the device has no mirroring control.
func (c *realsenseCamera) SetMirroring(enable bool) error {
	c.logger.Warnf("mirroring is not supported on a realsense camera")
	return errors.New("mirroring is not supported")
}

// Status reports the adapter's connection state.
func (c *realsenseCamera) Status() SensorStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return StatusWorking
	}
	if c.dev == nil {
		return StatusWaitingForDevice
	}
	return StatusNotReady
}

// DeviceDescription returns the device's identity fields; unsupported
// fields read "N/A".
func (c *realsenseCamera) DeviceDescription() (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev == nil {
		return nil, errors.New("camera is not open")
	}
	out := make(map[string]string, len(rs2.AllCameraInfo))
	for _, info := range rs2.AllCameraInfo {
		if c.dev.Supports(info) {
			out[info.String()] = c.dev.Info(info)
		} else {
			out[info.String()] = "N/A"
		}
	}
	return out, nil
}
