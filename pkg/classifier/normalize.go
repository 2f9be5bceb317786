package classifier

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/teslashibe/go-affect/pkg/frame"
)

// Normalize prepares a face crop for classification: grayscale, bilinear
// resize to size×size, then min-max stretch into [0, 1]. A flat crop maps
// to all zeros. An empty crop yields an invalid Input.
func Normalize(crop *frame.Frame, size int) Input {
	if crop.Empty() || size <= 0 {
		return Input{Size: size}
	}

	gray := crop
	if crop.Layout != frame.Gray {
		gray = crop.Gray()
	}

	src := gray.Image()
	dst := image.NewGray(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	lo, hi := uint8(255), uint8(0)
	for _, p := range dst.Pix {
		if p < lo {
			lo = p
		}
		if p > hi {
			hi = p
		}
	}

	data := make([]float32, size*size)
	if hi > lo {
		span := float32(hi - lo)
		for i, p := range dst.Pix {
			data[i] = float32(p-lo) / span
		}
	}
	return Input{Data: data, Size: size}
}
