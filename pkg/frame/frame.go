// Package frame defines the pixel buffer that flows through the capture pipeline.
//
// A Frame is immutable once it has been handed to another goroutine. Helpers
// such as Gray and Crop always return new frames and never touch the receiver.
package frame

import (
	"image"
	"image/color"
	"time"
)

// Layout describes how pixels are packed in Frame.Data.
type Layout int

const (
	// Gray is one byte per pixel.
	Gray Layout = iota
	// BGR is three bytes per pixel, blue first (OpenCV order).
	BGR
)

// Channels returns the bytes per pixel for the layout.
func (l Layout) Channels() int {
	switch l {
	case BGR:
		return 3
	default:
		return 1
	}
}

// String returns a human-readable layout name.
func (l Layout) String() string {
	switch l {
	case Gray:
		return "gray"
	case BGR:
		return "bgr"
	default:
		return "unknown"
	}
}

// Frame is a captured image with its capture metadata.
type Frame struct {
	Data       []byte
	Width      int
	Height     int
	Layout     Layout
	Seq        uint64    // Capture sequence number, starts at 1 per session
	CapturedAt time.Time // When the device returned the frame
}

// New allocates a zeroed frame.
func New(width, height int, layout Layout) *Frame {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Frame{
		Data:   make([]byte, width*height*layout.Channels()),
		Width:  width,
		Height: height,
		Layout: layout,
	}
}

// Empty reports whether the frame has no pixels or an inconsistent buffer.
func (f *Frame) Empty() bool {
	if f == nil || f.Width <= 0 || f.Height <= 0 {
		return true
	}
	return len(f.Data) < f.Width*f.Height*f.Layout.Channels()
}

// Bounds returns the frame rectangle.
func (f *Frame) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.Width, f.Height)
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	c := *f
	c.Data = make([]byte, len(f.Data))
	copy(c.Data, f.Data)
	return &c
}

// Gray returns a single-channel copy of the frame using ITU-R BT.601 luma weights.
func (f *Frame) Gray() *Frame {
	if f.Layout == Gray {
		return f.Clone()
	}
	g := New(f.Width, f.Height, Gray)
	g.Seq = f.Seq
	g.CapturedAt = f.CapturedAt
	if f.Empty() {
		return g
	}

	n := f.Width * f.Height
	for i := 0; i < n; i++ {
		b := uint32(f.Data[i*3])
		gr := uint32(f.Data[i*3+1])
		r := uint32(f.Data[i*3+2])
		g.Data[i] = uint8((299*r + 587*gr + 114*b + 500) / 1000)
	}
	return g
}

// Crop copies the region r, clipped to the frame bounds.
// An empty intersection yields an empty frame.
func (f *Frame) Crop(r image.Rectangle) *Frame {
	r = r.Intersect(f.Bounds())
	out := New(r.Dx(), r.Dy(), f.Layout)
	out.Seq = f.Seq
	out.CapturedAt = f.CapturedAt
	if out.Empty() || f.Empty() {
		return out
	}

	ch := f.Layout.Channels()
	rowBytes := r.Dx() * ch
	for y := 0; y < r.Dy(); y++ {
		src := ((r.Min.Y+y)*f.Width + r.Min.X) * ch
		copy(out.Data[y*rowBytes:(y+1)*rowBytes], f.Data[src:src+rowBytes])
	}
	return out
}

// Image converts the frame to a standard library image.
// Gray frames become *image.Gray, BGR frames become *image.RGBA.
func (f *Frame) Image() image.Image {
	if f.Layout == Gray {
		img := image.NewGray(f.Bounds())
		if !f.Empty() {
			copy(img.Pix, f.Data[:f.Width*f.Height])
		}
		return img
	}

	img := image.NewRGBA(f.Bounds())
	if f.Empty() {
		return img
	}
	n := f.Width * f.Height
	for i := 0; i < n; i++ {
		img.Pix[i*4] = f.Data[i*3+2]
		img.Pix[i*4+1] = f.Data[i*3+1]
		img.Pix[i*4+2] = f.Data[i*3]
		img.Pix[i*4+3] = 0xff
	}
	return img
}

// FromImage builds a frame from any image. Gray images stay single-channel,
// everything else is converted to BGR.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok {
		f := New(b.Dx(), b.Dy(), Gray)
		for y := 0; y < b.Dy(); y++ {
			copy(f.Data[y*b.Dx():(y+1)*b.Dx()], g.Pix[(y+b.Min.Y-g.Rect.Min.Y)*g.Stride+(b.Min.X-g.Rect.Min.X):])
		}
		return f
	}

	f := New(b.Dx(), b.Dy(), BGR)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			i := (y*b.Dx() + x) * 3
			f.Data[i] = c.B
			f.Data[i+1] = c.G
			f.Data[i+2] = c.R
		}
	}
	return f
}
