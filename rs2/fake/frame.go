package fake

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/viam-soleng/realsense-rgbd/rs2"
)

// depthScale is the simulated depth unit: Z16 raw values are millimeters.
const depthScale = 0.001

type videoFrame struct {
	profile rs2.StreamProfile
	data    []byte
	ts      time.Time
}

func (f *videoFrame) Profile() rs2.StreamProfile { return f.profile }
func (f *videoFrame) Data() []byte               { return f.data }
func (f *videoFrame) Timestamp() time.Time       { return f.ts }

type depthFrame struct {
	videoFrame
	scale float64
}

// Distance implements rs2.DepthFrame by scaling the raw Z16 sample.
func (f *depthFrame) Distance(x, y int) float64 {
	w := f.profile.Width
	if x < 0 || y < 0 || x >= w || y >= f.profile.Height {
		return 0
	}
	raw := binary.LittleEndian.Uint16(f.data[2*(y*w+x):])
	return float64(raw) * f.scale
}

type frameSet struct {
	color rs2.VideoFrame
	depth rs2.DepthFrame
}

func (fs *frameSet) ColorFrame() (rs2.VideoFrame, bool) { return fs.color, fs.color != nil }
func (fs *frameSet) DepthFrame() (rs2.DepthFrame, bool) { return fs.depth, fs.depth != nil }

// NewVideoFrame wraps a raw buffer as an rs2.VideoFrame, for tests that
// need frames with hand-built contents.
func NewVideoFrame(profile rs2.StreamProfile, data []byte, ts time.Time) rs2.VideoFrame {
	return &videoFrame{profile: profile, data: data, ts: ts}
}

// NewDepthFrame wraps a raw Z16 buffer as an rs2.DepthFrame.
func NewDepthFrame(profile rs2.StreamProfile, data []byte, scale float64, ts time.Time) rs2.DepthFrame {
	if scale == 0 {
		scale = depthScale
	}
	return &depthFrame{videoFrame: videoFrame{profile: profile, data: data, ts: ts}, scale: scale}
}

// NewFrameSet bundles frames into an rs2.FrameSet.
func NewFrameSet(color rs2.VideoFrame, depth rs2.DepthFrame) rs2.FrameSet {
	return &frameSet{color: color, depth: depth}
}

// synthColorFrame renders a yellow-to-blue gradient, darkest at the
// origin, matching the resolution and format of the negotiated profile.
func synthColorFrame(prof rs2.StreamProfile, ts time.Time) rs2.VideoFrame {
	bpp := prof.Format.BytesPerPixel()
	data := make([]byte, prof.Width*prof.Height*bpp)
	totalDist := math.Hypot(float64(prof.Width), float64(prof.Height))
	for y := 0; y < prof.Height; y++ {
		for x := 0; x < prof.Width; x++ {
			dist := math.Hypot(float64(x), float64(y)) / totalDist
			warm := uint8(255 - 255*dist)
			cold := uint8(255 * dist)
			i := (y*prof.Width + x) * bpp
			switch prof.Format {
			case rs2.FormatBGR8:
				data[i], data[i+1], data[i+2] = cold, warm, warm
			default: // RGB8
				data[i], data[i+1], data[i+2] = warm, warm, cold
			}
		}
	}
	return &videoFrame{profile: prof, data: data, ts: ts}
}

// synthDepthFrame renders a radial depth field between 0.4m and 3.4m; the
// frame number nudges every sample so consecutive frames differ.
func synthDepthFrame(prof rs2.StreamProfile, frameNum int, ts time.Time) rs2.DepthFrame {
	data := make([]byte, prof.Width*prof.Height*2)
	totalDist := math.Hypot(float64(prof.Width), float64(prof.Height))
	for y := 0; y < prof.Height; y++ {
		for x := 0; x < prof.Width; x++ {
			dist := math.Hypot(float64(x), float64(y)) / totalDist
			mm := 400 + 3000*dist + float64(frameNum%10)
			binary.LittleEndian.PutUint16(data[2*(y*prof.Width+x):], uint16(mm))
		}
	}
	return &depthFrame{
		videoFrame: videoFrame{profile: prof, data: data, ts: ts},
		scale:      depthScale,
	}
}

// aligner reprojects a set's depth frame into the color viewport by
// nearest-neighbor resampling. The simulated imagers share a viewpoint, so
// resampling is the whole of alignment here.
type aligner struct {
	to rs2.Stream
}

// Align implements rs2.Aligner.
func (a aligner) Align(fs rs2.FrameSet) (rs2.FrameSet, error) {
	if a.to != rs2.StreamColor {
		return fs, nil
	}
	color, okColor := fs.ColorFrame()
	depth, okDepth := fs.DepthFrame()
	if !okColor || !okDepth {
		return fs, nil
	}

	cProf := color.Profile()
	dProf := depth.Profile()
	if cProf.Width == dProf.Width && cProf.Height == dProf.Height {
		return fs, nil
	}

	src := depth.Data()
	out := make([]byte, cProf.Width*cProf.Height*2)
	for y := 0; y < cProf.Height; y++ {
		sy := y * dProf.Height / cProf.Height
		for x := 0; x < cProf.Width; x++ {
			sx := x * dProf.Width / cProf.Width
			v := binary.LittleEndian.Uint16(src[2*(sy*dProf.Width+sx):])
			binary.LittleEndian.PutUint16(out[2*(y*cProf.Width+x):], v)
		}
	}
	alignedProf := rs2.StreamProfile{
		Stream: rs2.StreamDepth,
		Format: dProf.Format,
		Width:  cProf.Width,
		Height: cProf.Height,
		FPS:    dProf.FPS,
	}
	aligned := &depthFrame{
		videoFrame: videoFrame{profile: alignedProf, data: out, ts: depth.Timestamp()},
		scale:      depthScale,
	}
	return &frameSet{color: color, depth: aligned}, nil
}
