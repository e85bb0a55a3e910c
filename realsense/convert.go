package realsense

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"go.viam.com/rdk/rimage"

	"github.com/viam-soleng/realsense-rgbd/rs2"
)

// PixelCode is the host middleware's pixel-format vocabulary.
type PixelCode int

// Pixel codes a converted frame can carry.
const (
	PixelInvalid PixelCode = iota
	PixelMono
	PixelMono16
	PixelRGB
	PixelBGR
	PixelRGBA
	PixelBGRA
)

// pixelCodeOf translates a vendor pixel format into the middleware code,
// PixelInvalid for formats the adapter does not handle.
func pixelCodeOf(f rs2.Format) PixelCode {
	switch f {
	case rs2.FormatRGB8:
		return PixelRGB
	case rs2.FormatBGR8:
		return PixelBGR
	case rs2.FormatZ16, rs2.FormatDisparity16, rs2.FormatY16, rs2.FormatRaw16:
		return PixelMono16
	case rs2.FormatRGBA8:
		return PixelRGBA
	case rs2.FormatBGRA8:
		return PixelBGRA
	case rs2.FormatY8, rs2.FormatRaw8:
		return PixelMono
	default:
		return PixelInvalid
	}
}

// checkFrame validates a frame's format against the format table and its
// buffer length against width*height*bytes-per-pixel. Either failure is a
// hard per-call failure; no partial frame is ever produced.
func checkFrame(frame rs2.VideoFrame) (PixelCode, error) {
	prof := frame.Profile()
	code := pixelCodeOf(prof.Format)
	if code == PixelInvalid {
		return PixelInvalid, errors.Errorf("pixel format %s not recognized", prof.Format)
	}
	want := prof.Width * prof.Height * prof.Format.BytesPerPixel()
	if got := len(frame.Data()); got != want {
		return PixelInvalid, errors.Errorf(
			"device and local copy data size don't match: frame is %d bytes, %dx%d %s needs %d",
			got, prof.Width, prof.Height, prof.Format, want)
	}
	return code, nil
}

// frameToImage converts a color frame into an image. Bytes are copied
// verbatim; no scaling or resampling happens here.
func frameToImage(frame rs2.VideoFrame) (image.Image, error) {
	code, err := checkFrame(frame)
	if err != nil {
		return nil, err
	}
	prof := frame.Profile()
	w, h := prof.Width, prof.Height
	data := frame.Data()
	rect := image.Rect(0, 0, w, h)

	switch code {
	case PixelRGB, PixelBGR:
		img := image.NewNRGBA(rect)
		swap := code == PixelBGR
		for i, j := 0, 0; i < len(data); i, j = i+3, j+4 {
			r, g, b := data[i], data[i+1], data[i+2]
			if swap {
				r, b = b, r
			}
			img.Pix[j], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = r, g, b, 0xff
		}
		return img, nil
	case PixelRGBA, PixelBGRA:
		img := image.NewNRGBA(rect)
		copy(img.Pix, data)
		if code == PixelBGRA {
			for i := 0; i < len(img.Pix); i += 4 {
				img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
			}
		}
		return img, nil
	case PixelMono:
		img := image.NewGray(rect)
		copy(img.Pix, data)
		return img, nil
	case PixelMono16:
		// Gray16 is big-endian, the sensor is little-endian.
		img := image.NewGray16(rect)
		for i := 0; i < len(data); i += 2 {
			img.Pix[i], img.Pix[i+1] = data[i+1], data[i]
		}
		return img, nil
	default:
		return nil, errors.Errorf("pixel code %d not convertible", code)
	}
}

// frameToDepthMap converts a depth frame into a metric depth map. Every
// pixel goes through the SDK's distance query; there is no bulk copy path
// because the destination representation differs from the raw sample
// format.
func frameToDepthMap(frame rs2.DepthFrame) (*rimage.DepthMap, error) {
	if _, err := checkFrame(frame); err != nil {
		return nil, err
	}
	prof := frame.Profile()
	dm := rimage.NewEmptyDepthMap(prof.Width, prof.Height)
	for y := 0; y < prof.Height; y++ {
		for x := 0; x < prof.Width; x++ {
			mm := math.Round(frame.Distance(x, y) * 1000)
			if mm > math.MaxUint16 {
				mm = math.MaxUint16
			}
			dm.Set(x, y, rimage.Depth(mm))
		}
	}
	return dm, nil
}
