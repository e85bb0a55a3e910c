package realsense

import (
	"testing"

	"go.viam.com/test"

	"github.com/viam-soleng/realsense-rgbd/rs2/fake"
)

func newFeatureCamera(t *testing.T) (*realsenseCamera, *fake.Device) {
	t.Helper()
	dev := fake.NewD435("")
	sys := fake.NewSystem(fake.WithDevice(dev))
	cam := newTestCamera(t, sys, &Config{})
	return cam.(*realsenseCamera), dev
}

func TestFeatureByName(t *testing.T) {
	f, err := FeatureByName("Exposure")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f, test.ShouldEqual, FeatureExposure)

	f, err = FeatureByName(" white_balance ")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f, test.ShouldEqual, FeatureWhiteBalance)

	_, err = FeatureByName("bogus")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestHasFeature(t *testing.T) {
	rc, _ := newFeatureCamera(t)

	supported := []Feature{
		FeatureExposure, FeatureWhiteBalance, FeatureGain,
		FeatureSharpness, FeatureHue, FeatureSaturation, FeatureFrameRate,
	}
	for _, f := range supported {
		has, err := rc.HasFeature(f)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, has, test.ShouldBeTrue)
	}

	unsupported := []Feature{
		FeatureBrightness, FeatureGamma, FeatureShutter, FeatureIris, FeatureMirror,
	}
	for _, f := range unsupported {
		has, err := rc.HasFeature(f)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, has, test.ShouldBeFalse)
	}

	_, err := rc.HasFeature(featureCount)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSetGetFeatureRoundTrip(t *testing.T) {
	rc, _ := newFeatureCamera(t)

	for _, f := range []Feature{FeatureExposure, FeatureGain, FeatureSharpness, FeatureHue, FeatureSaturation} {
		test.That(t, rc.SetFeature(f, 0.25), test.ShouldBeNil)
		got, err := rc.GetFeature(f)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldAlmostEqual, 0.25, 1e-9)
	}
}

func TestSetFeatureRejectsOutOfRange(t *testing.T) {
	rc, dev := newFeatureCamera(t)
	before := dev.ColorSensor().Writes()

	test.That(t, rc.SetFeature(FeatureGain, 1.5), test.ShouldNotBeNil)
	test.That(t, rc.SetFeature(FeatureGain, -0.1), test.ShouldNotBeNil)
	test.That(t, dev.ColorSensor().Writes(), test.ShouldEqual, before)
}

func TestUnsupportedFeatureNeverTouchesSensor(t *testing.T) {
	rc, dev := newFeatureCamera(t)
	before := dev.ColorSensor().Writes()

	test.That(t, rc.SetFeature(FeatureBrightness, 0.5), test.ShouldNotBeNil)
	_, err := rc.GetFeature(FeatureMirror)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, rc.SetMode(FeatureIris, ModeManual), test.ShouldNotBeNil)
	test.That(t, rc.SetOnePush(FeatureShutter), test.ShouldNotBeNil)

	test.That(t, dev.ColorSensor().Writes(), test.ShouldEqual, before)
}

func TestFrameRateHasNoValueAccess(t *testing.T) {
	rc, _ := newFeatureCamera(t)
	test.That(t, rc.SetFeature(FeatureFrameRate, 0.5), test.ShouldNotBeNil)
	_, err := rc.GetFeature(FeatureFrameRate)
	test.That(t, err, test.ShouldNotBeNil)

	// Still manual, still present.
	mode, err := rc.GetMode(FeatureFrameRate)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mode, test.ShouldEqual, ModeManual)
}

func TestFeaturePairsUnsupported(t *testing.T) {
	rc, _ := newFeatureCamera(t)
	test.That(t, rc.SetFeaturePair(FeatureExposure, 0.1, 0.2), test.ShouldNotBeNil)
	_, _, err := rc.GetFeaturePair(FeatureExposure)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestModeRoundTrip(t *testing.T) {
	rc, _ := newFeatureCamera(t)

	for _, f := range []Feature{FeatureExposure, FeatureWhiteBalance} {
		test.That(t, rc.SetMode(f, ModeAuto), test.ShouldBeNil)
		mode, err := rc.GetMode(f)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, mode, test.ShouldEqual, ModeAuto)

		test.That(t, rc.SetMode(f, ModeManual), test.ShouldBeNil)
		mode, err = rc.GetMode(f)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, mode, test.ShouldEqual, ModeManual)
	}

	// Manual-only features report manual and refuse auto.
	mode, err := rc.GetMode(FeatureGain)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mode, test.ShouldEqual, ModeManual)
	test.That(t, rc.SetMode(FeatureGain, ModeAuto), test.ShouldNotBeNil)
}

func TestOnOffFollowsAuto(t *testing.T) {
	rc, _ := newFeatureCamera(t)

	for _, f := range []Feature{FeatureExposure, FeatureWhiteBalance} {
		has, err := rc.HasOnOff(f)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, has, test.ShouldBeTrue)

		test.That(t, rc.SetActive(f, false), test.ShouldBeNil)
		on, err := rc.GetActive(f)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, on, test.ShouldBeFalse)

		test.That(t, rc.SetActive(f, true), test.ShouldBeNil)
		on, err = rc.GetActive(f)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, on, test.ShouldBeTrue)
	}

	has, err := rc.HasOnOff(FeatureGain)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, has, test.ShouldBeFalse)
	test.That(t, rc.SetActive(FeatureGain, true), test.ShouldNotBeNil)
}

func TestOnePushLandsInManual(t *testing.T) {
	rc, _ := newFeatureCamera(t)

	has, err := rc.HasOnePush(FeatureWhiteBalance)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, has, test.ShouldBeTrue)

	test.That(t, rc.SetOnePush(FeatureWhiteBalance), test.ShouldBeNil)
	mode, err := rc.GetMode(FeatureWhiteBalance)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mode, test.ShouldEqual, ModeManual)

	test.That(t, rc.SetOnePush(FeatureSaturation), test.ShouldNotBeNil)
}

func TestCapabilityAnswersAgree(t *testing.T) {
	rc, _ := newFeatureCamera(t)

	// Whatever has an automatic mode must also report an on/off switch and
	// a one-push adjustment; the single capability table keeps these in
	// lockstep.
	for f := Feature(0); f < featureCount; f++ {
		hasAuto, err := rc.HasAuto(f)
		test.That(t, err, test.ShouldBeNil)
		hasOnOff, err := rc.HasOnOff(f)
		test.That(t, err, test.ShouldBeNil)
		hasOnePush, err := rc.HasOnePush(f)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, hasOnOff, test.ShouldEqual, hasAuto)
		test.That(t, hasOnePush, test.ShouldEqual, hasAuto)
	}
}
