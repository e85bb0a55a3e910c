package rs2

import "math"

// DistortionModel names the lens distortion model of an Intrinsics.
type DistortionModel int

// Distortion models reported by the SDK.
const (
	DistortionNone DistortionModel = iota
	DistortionBrownConrady
	DistortionModifiedBrownConrady
	DistortionInverseBrownConrady
)

// Intrinsics is the camera model of one stream: focal lengths, principal
// point, and distortion coefficients, all in pixels.
type Intrinsics struct {
	Width  int
	Height int
	Fx     float64
	Fy     float64
	Ppx    float64
	Ppy    float64
	Model  DistortionModel
	Coeffs [5]float64
}

// Extrinsics is the rigid transform between two streams' reference frames:
// a row-major 3x3 rotation and a translation in meters.
type Extrinsics struct {
	Rotation    [9]float64
	Translation [3]float64
}

// Identity reports whether the transform is the identity.
func (e Extrinsics) Identity() bool {
	ident := Extrinsics{Rotation: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}}
	return e == ident
}

// FOV computes the horizontal and vertical field of view of a stream in
// degrees from its intrinsics, the way the vendor fov helper does.
func FOV(in Intrinsics) (horizontal, vertical float64) {
	horizontal = (math.Atan2(in.Ppx+0.5, in.Fx) +
		math.Atan2(float64(in.Width)-(in.Ppx+0.5), in.Fx)) * 180 / math.Pi
	vertical = (math.Atan2(in.Ppy+0.5, in.Fy) +
		math.Atan2(float64(in.Height)-(in.Ppy+0.5), in.Fy)) * 180 / math.Pi
	return horizontal, vertical
}
