package realsense

import (
	"context"
	"testing"
	"time"

	"go.viam.com/rdk/components/camera"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/test"

	"github.com/viam-soleng/realsense-rgbd/rs2"
	"github.com/viam-soleng/realsense-rgbd/rs2/fake"
)

func testConfig(attrs *Config) resource.Config {
	return resource.Config{
		Name:                "rs",
		API:                 camera.API,
		Model:               Model,
		ConvertedAttributes: attrs,
	}
}

func newTestCamera(t *testing.T, sys rs2.System, attrs *Config) camera.Camera {
	t.Helper()
	cam, err := NewCameraFromSystem(context.Background(), sys, testConfig(attrs), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() {
		test.That(t, cam.Close(context.Background()), test.ShouldBeNil)
	})
	return cam
}

func TestConfigValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		conf Config
		ok   bool
	}{
		{"empty", Config{}, true},
		{"negative period", Config{Period: -1}, false},
		{"one clip plane", Config{ClipPlanes: []float64{1}}, false},
		{"inverted clip planes", Config{ClipPlanes: []float64{5, 1}}, false},
		{"good clip planes", Config{ClipPlanes: []float64{0.2, 5}}, true},
		{"zero resolution", Config{DepthResolution: &Resolution{Width: 0, Height: 480}}, false},
		{"negative hotplug timeout", Config{HotplugTimeoutSec: -3}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := tc.conf.Validate("")
			if tc.ok {
				test.That(t, err, test.ShouldBeNil)
			} else {
				test.That(t, err, test.ShouldNotBeNil)
			}
		})
	}
}

func TestOpenDefaults(t *testing.T) {
	cam := newTestCamera(t, fake.NewSystem(), &Config{})

	props, err := cam.Properties(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, props.SupportsPCD, test.ShouldBeTrue)
	test.That(t, props.IntrinsicParams, test.ShouldNotBeNil)
	test.That(t, props.IntrinsicParams.Width, test.ShouldEqual, 640)
	test.That(t, props.IntrinsicParams.Height, test.ShouldEqual, 480)
	test.That(t, props.DistortionParams, test.ShouldNotBeNil)
	test.That(t, props.FrameRate, test.ShouldEqual, 30)
}

func TestImagesAlignedPair(t *testing.T) {
	ctx := context.Background()
	cam := newTestCamera(t, fake.NewSystem(), &Config{
		DepthResolution: &Resolution{Width: 480, Height: 270},
		Period:          60,
	})

	imgs, meta, err := cam.Images(ctx, nil, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(imgs), test.ShouldEqual, 2)
	test.That(t, imgs[0].SourceName, test.ShouldEqual, "color")
	test.That(t, imgs[1].SourceName, test.ShouldEqual, "depth")
	test.That(t, meta.CapturedAt.IsZero(), test.ShouldBeFalse)

	// Depth is registered onto the color viewport, so the two channels
	// share a resolution even when the streams were negotiated apart.
	colorImg, err := imgs[0].Image(ctx)
	test.That(t, err, test.ShouldBeNil)
	depthImg, err := imgs[1].Image(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, depthImg.Bounds(), test.ShouldResemble, colorImg.Bounds())
}

func TestImagesFilter(t *testing.T) {
	ctx := context.Background()
	cam := newTestCamera(t, fake.NewSystem(), &Config{})

	imgs, _, err := cam.Images(ctx, []string{"depth"}, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(imgs), test.ShouldEqual, 1)
	test.That(t, imgs[0].SourceName, test.ShouldEqual, "depth")

	_, _, err = cam.Images(ctx, []string{"thermal"}, nil)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestImageEncodes(t *testing.T) {
	ctx := context.Background()
	cam := newTestCamera(t, fake.NewSystem(), &Config{})

	bytes, meta, err := cam.Image(ctx, "", nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(bytes), test.ShouldBeGreaterThan, 0)
	test.That(t, meta.MimeType, test.ShouldEqual, "image/jpeg")

	bytes, meta, err = cam.Image(ctx, "image/png", nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(bytes), test.ShouldBeGreaterThan, 0)
	test.That(t, meta.MimeType, test.ShouldEqual, "image/png")
}

func TestNextPointCloud(t *testing.T) {
	cam := newTestCamera(t, fake.NewSystem(), &Config{})

	pc, err := cam.NextPointCloud(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pc, test.ShouldNotBeNil)
	test.That(t, pc.Size(), test.ShouldBeGreaterThan, 0)
}

func TestStampsAdvancePerStream(t *testing.T) {
	ctx := context.Background()
	cam := newTestCamera(t, fake.NewSystem(), &Config{})
	rc := cam.(*realsenseCamera)

	_, first, err := rc.RGBImage(ctx)
	test.That(t, err, test.ShouldBeNil)
	_, second, err := rc.RGBImage(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second.After(first), test.ShouldBeTrue)

	// A color-only capture never advances the depth stream.
	test.That(t, rc.depthStamp.current().Count, test.ShouldEqual, 0)

	_, depthStamp, err := rc.DepthImage(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, depthStamp.Count, test.ShouldEqual, 1)
	test.That(t, rc.colorStamp.current(), test.ShouldResemble, second)

	// A paired capture advances both streams together.
	_, _, cStamp, dStamp, err := rc.BothImages(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cStamp.After(second), test.ShouldBeTrue)
	test.That(t, dStamp.After(depthStamp), test.ShouldBeTrue)
}

func TestResolutionChange(t *testing.T) {
	cam := newTestCamera(t, fake.NewSystem(), &Config{})
	rc := cam.(*realsenseCamera)

	test.That(t, rc.SetDepthResolution(848, 480), test.ShouldBeNil)
	w, h, err := rc.DepthResolution()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w, test.ShouldEqual, 848)
	test.That(t, h, test.ShouldEqual, 480)

	// The color stream rides along unchanged.
	w, h, err = rc.RgbResolution()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w, test.ShouldEqual, 640)
	test.That(t, h, test.ShouldEqual, 480)

	// Transformations follow the new depth mode.
	test.That(t, rc.depthIntr.Width, test.ShouldEqual, 848)
}

func TestResolutionChangeRejected(t *testing.T) {
	ctx := context.Background()
	cam := newTestCamera(t, fake.NewSystem(), &Config{})
	rc := cam.(*realsenseCamera)

	test.That(t, rc.SetRgbResolution(123, 45), test.ShouldNotBeNil)

	// The camera rolls back to its previous mode and keeps capturing.
	w, h, err := rc.RgbResolution()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w, test.ShouldEqual, 640)
	test.That(t, h, test.ShouldEqual, 480)
	_, _, err = rc.RGBImage(ctx)
	test.That(t, err, test.ShouldBeNil)
}

func TestAlignmentRunsWithRegisteredOff(t *testing.T) {
	ctx := context.Background()
	off := false
	cam := newTestCamera(t, fake.NewSystem(), &Config{
		Registered:      &off,
		DepthResolution: &Resolution{Width: 480, Height: 270},
		Period:          60,
	})
	rc := cam.(*realsenseCamera)

	// The registered flag is accepted but inert: depth still comes back
	// registered onto the color viewport.
	dm, _, err := rc.DepthImage(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, dm.Width(), test.ShouldEqual, 640)
	test.That(t, dm.Height(), test.ShouldEqual, 480)
}

func TestMirroringAndFOVSettersUnsupported(t *testing.T) {
	cam := newTestCamera(t, fake.NewSystem(), &Config{})
	rc := cam.(*realsenseCamera)

	_, err := rc.Mirroring()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "not supported")
	test.That(t, rc.SetMirroring(true), test.ShouldNotBeNil)
	test.That(t, rc.SetFieldOfView(60, 40), test.ShouldNotBeNil)
}

func TestHotplugWait(t *testing.T) {
	sys := fake.NewSystem(fake.WithoutDevices())
	go func() {
		time.Sleep(50 * time.Millisecond)
		sys.Connect(fake.NewD435(""))
	}()
	cam := newTestCamera(t, sys, &Config{HotplugTimeoutSec: 5})

	_, _, err := cam.Images(context.Background(), nil, nil)
	test.That(t, err, test.ShouldBeNil)
}

func TestHotplugArrivalNearDeadline(t *testing.T) {
	// A device that shows up just before the hot-plug bound expires must
	// still open: the post-plug settle wait runs on the caller's context,
	// not the already-nearly-exhausted timeout.
	sys := fake.NewSystem(fake.WithoutDevices())
	go func() {
		time.Sleep(950 * time.Millisecond)
		sys.Connect(fake.NewD435(""))
	}()
	cam := newTestCamera(t, sys, &Config{HotplugTimeoutSec: 1})

	_, _, err := cam.Images(context.Background(), nil, nil)
	test.That(t, err, test.ShouldBeNil)
}

func TestHotplugWaitAborts(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sys := fake.NewSystem(fake.WithoutDevices())
	_, err := NewCameraFromSystem(ctx, sys, testConfig(&Config{}), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no realsense device became available")
}

func TestSerialSelection(t *testing.T) {
	first := fake.NewD435("serial-one")
	second := fake.NewD435("serial-two")
	sys := fake.NewSystem(fake.WithDevice(first), fake.WithDevice(second))
	cam := newTestCamera(t, sys, &Config{SerialNumber: "serial-two"})

	info, err := cam.DoCommand(context.Background(), map[string]interface{}{"command": "device_info"})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info["serial number"], test.ShouldEqual, "serial-two")
}

func TestSerialSelectionUnknown(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sys := fake.NewSystem()
	_, err := NewCameraFromSystem(ctx, sys, testConfig(&Config{SerialNumber: "nope"}), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestParamsAppliedAtOpen(t *testing.T) {
	dev := fake.NewD435("")
	sys := fake.NewSystem(fake.WithDevice(dev))
	accuracy := 3.0
	newTestCamera(t, sys, &Config{
		Accuracy:   &accuracy,
		ClipPlanes: []float64{0.2, 5},
	})

	got, err := dev.DepthSensor().Option(rs2.OptionAccuracy)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldEqual, 3)
	near, err := dev.DepthSensor().Option(rs2.OptionMinDistance)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, near, test.ShouldEqual, 0.2)
	far, err := dev.DepthSensor().Option(rs2.OptionMaxDistance)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, far, test.ShouldEqual, 5)
}

func TestBadParamFailsOpen(t *testing.T) {
	sys := fake.NewSystem()
	accuracy := 99.0 // out of the preset range
	_, err := NewCameraFromSystem(
		context.Background(), sys, testConfig(&Config{Accuracy: &accuracy}), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "accuracy")
}

func TestReconfigureSwitchesResolution(t *testing.T) {
	ctx := context.Background()
	cam := newTestCamera(t, fake.NewSystem(), &Config{})
	rc := cam.(*realsenseCamera)

	err := cam.Reconfigure(ctx, nil, testConfig(&Config{
		RgbResolution: &Resolution{Width: 1280, Height: 720},
	}))
	test.That(t, err, test.ShouldBeNil)

	w, h, err := rc.RgbResolution()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, w, test.ShouldEqual, 1280)
	test.That(t, h, test.ShouldEqual, 720)
}

func TestCloseIsIdempotent(t *testing.T) {
	cam, err := NewCameraFromSystem(
		context.Background(), fake.NewSystem(), testConfig(&Config{}), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cam.Close(context.Background()), test.ShouldBeNil)
	test.That(t, cam.Close(context.Background()), test.ShouldBeNil)
}

func TestGeometries(t *testing.T) {
	cam := newTestCamera(t, fake.NewSystem(), &Config{})
	geoms, err := cam.Geometries(context.Background(), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(geoms), test.ShouldEqual, 1)
}

func TestDoCommand(t *testing.T) {
	ctx := context.Background()
	cam := newTestCamera(t, fake.NewSystem(), &Config{})

	t.Run("sensor status", func(t *testing.T) {
		out, err := cam.DoCommand(ctx, map[string]interface{}{"command": "sensor_status"})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out["status"], test.ShouldEqual, "working")
	})

	t.Run("fov", func(t *testing.T) {
		out, err := cam.DoCommand(ctx, map[string]interface{}{"command": "get_fov"})
		test.That(t, err, test.ShouldBeNil)
		h := out["horizontal_deg"].(float64)
		v := out["vertical_deg"].(float64)
		test.That(t, h, test.ShouldBeBetween, 0, 180)
		test.That(t, v, test.ShouldBeBetween, 0, h)
	})

	t.Run("clip planes round trip", func(t *testing.T) {
		_, err := cam.DoCommand(ctx, map[string]interface{}{
			"command": "set_clip_planes", "near": 0.3, "far": 4.0,
		})
		test.That(t, err, test.ShouldBeNil)
		out, err := cam.DoCommand(ctx, map[string]interface{}{"command": "get_clip_planes"})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out["near"], test.ShouldEqual, 0.3)
		test.That(t, out["far"], test.ShouldEqual, 4.0)
	})

	t.Run("depth accuracy round trip", func(t *testing.T) {
		_, err := cam.DoCommand(ctx, map[string]interface{}{"command": "set_depth_accuracy", "value": 1.0})
		test.That(t, err, test.ShouldBeNil)
		out, err := cam.DoCommand(ctx, map[string]interface{}{"command": "get_depth_accuracy"})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out["value"], test.ShouldEqual, 1.0)
	})

	t.Run("resolution", func(t *testing.T) {
		_, err := cam.DoCommand(ctx, map[string]interface{}{
			"command": "set_depth_resolution", "width_px": 1280.0, "height_px": 720.0,
		})
		test.That(t, err, test.ShouldBeNil)
		rc := cam.(*realsenseCamera)
		w, h, err := rc.DepthResolution()
		test.That(t, err, test.ShouldBeNil)
		test.That(t, w, test.ShouldEqual, 1280)
		test.That(t, h, test.ShouldEqual, 720)
	})

	t.Run("feature", func(t *testing.T) {
		_, err := cam.DoCommand(ctx, map[string]interface{}{
			"command": "set_feature", "feature": "white_balance", "value": 0.5,
		})
		test.That(t, err, test.ShouldBeNil)
		out, err := cam.DoCommand(ctx, map[string]interface{}{
			"command": "get_feature", "feature": "white_balance",
		})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out["value"].(float64), test.ShouldAlmostEqual, 0.5, 1e-9)
	})

	t.Run("last error", func(t *testing.T) {
		// Force a boundary failure, then read it back.
		_, err := cam.DoCommand(ctx, map[string]interface{}{
			"command": "set_depth_accuracy", "value": 99.0,
		})
		test.That(t, err, test.ShouldNotBeNil)
		out, err := cam.DoCommand(ctx, map[string]interface{}{"command": "last_error"})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out["error"], test.ShouldContainSubstring, "out of range")
	})

	t.Run("unknown command", func(t *testing.T) {
		_, err := cam.DoCommand(ctx, map[string]interface{}{"command": "frobnicate"})
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("missing command key", func(t *testing.T) {
		_, err := cam.DoCommand(ctx, map[string]interface{}{"value": 1.0})
		test.That(t, err, test.ShouldNotBeNil)
	})
}
