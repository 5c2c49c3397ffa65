package render

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"os"
	"path/filepath"

	"github.com/ericpauley/go-quantize/quantize"
)

// Quantize reduces img to an adaptive palette of at most 256 colors by
// median cut. Every quality-th pixel is sampled to build the palette, and
// each bucket contributes its most frequent color so flat fills keep their
// exact values. quality below 1 samples every pixel.
func Quantize(img image.Image, quality int) *image.Paletted {
	if quality < 1 {
		quality = 1
	}
	b := img.Bounds()
	q := quantize.MedianCutQuantizer{
		Aggregation: quantize.Mode,
		Weighting: func(_ image.Image, x, y int) uint32 {
			if ((y-b.Min.Y)*b.Dx()+x-b.Min.X)%quality != 0 {
				return 0
			}
			return 1
		},
	}
	pal := q.Quantize(make(color.Palette, 0, 256), img)
	if len(pal) == 0 {
		pal = append(pal, color.RGBA{0xff, 0xff, 0xff, 0xff})
	}

	out := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), pal)
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	return out
}

// DelayCentiseconds converts a frame delay in milliseconds to GIF units,
// rounding to the nearest hundredth of a second.
func DelayCentiseconds(ms int) int {
	if ms <= 0 {
		return 0
	}
	return (ms + 5) / 10
}

// Encoder accumulates frames of one looping animation.
type Encoder struct {
	anim  gif.GIF
	delay int
}

// NewEncoder creates an encoder with a fixed per-frame delay in
// milliseconds. The animation loops forever.
func NewEncoder(delayMs int) *Encoder {
	return &Encoder{
		anim:  gif.GIF{LoopCount: 0},
		delay: DelayCentiseconds(delayMs),
	}
}

// Add appends one frame.
func (e *Encoder) Add(frame *image.Paletted) {
	e.anim.Image = append(e.anim.Image, frame)
	e.anim.Delay = append(e.anim.Delay, e.delay)
	if len(e.anim.Image) == 1 {
		e.anim.Config = image.Config{
			ColorModel: frame.Palette,
			Width:      frame.Rect.Dx(),
			Height:     frame.Rect.Dy(),
		}
	}
}

// Len returns the number of frames added.
func (e *Encoder) Len() int { return len(e.anim.Image) }

// WriteFile encodes the animation to path atomically: it is written to a
// temporary file next to path and renamed into place only on success.
// It returns the size of the artifact.
func (e *Encoder) WriteFile(path string) (int64, error) {
	if len(e.anim.Image) == 0 {
		return 0, fmt.Errorf("no frames to encode")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".animation-*.gif")
	if err != nil {
		return 0, fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := gif.EncodeAll(w, &e.anim); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("encode gif: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("rename %s: %w", path, err)
	}
	return info.Size(), nil
}
