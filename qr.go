// Copyright 2011 The Go Authors.  All rights reserved.
// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package qr encodes QR codes.

Encode and EncodeText split text into segments, select the smallest
version holding them and return a Code, which renders itself as an
image, PNG, BMP, SVG, PBM, EPS or text, embeds as an HTML <img> tag
and serves as an HTTP download.
*/
package qr // import "github.com/unixdj/qrkit"

import (
	"errors"
	"image"
	"image/color"

	"github.com/unixdj/qrkit/coding"
	"github.com/unixdj/qrkit/split"
)

// A Level denotes a QR error correction level.
// From least to most tolerant of errors, they are L, M, Q, H.
type Level = coding.Level

const (
	L = coding.L // 20% redundant
	M = coding.M // 38% redundant
	Q = coding.Q // 55% redundant
	H = coding.H // 65% redundant
)

var (
	ErrArgs       = errors.New("qr: invalid arguments")
	ErrLargeImage = errors.New("qr: image too large")
)

// maxSide is the largest image side in pixels.
const maxSide = 1 << 16

// Encode returns an encoding of text at the given error correction
// level with default options.
func Encode(text string, level Level) (*Code, error) {
	opt := DefaultOptions()
	opt.Level = level
	return EncodeText(text, opt)
}

// EncodeText returns an encoding of text with the given options.
// A nil opt means DefaultOptions.
func EncodeText(text string, opt *Options) (*Code, error) {
	if opt == nil {
		opt = DefaultOptions()
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	s, err := split.Analyze(text, split.Options{
		Charset:    opt.Charset,
		NoKanji:    opt.NoKanji,
		Mode:       opt.Mode,
		MinRun:     opt.MinRun,
		ECI:        opt.ECI,
		AllowEmpty: opt.AllowEmpty,
	})
	if err != nil {
		return nil, err
	}
	segs, v, l, err := split.Select(s, opt.Level, opt.MinVersion, opt.Boost)
	if err != nil {
		return nil, err
	}
	cc, err := coding.Encode(v, l, segs...)
	if err != nil {
		return nil, err
	}
	c := &Code{
		Bitmap:   cc.Bitmap,
		Size:     cc.Size,
		Stride:   cc.Stride,
		Version:  v,
		Level:    l,
		Mask:     cc.Mask,
		Segments: segs,
		Scale:    opt.Size,
		Border:   opt.Margin,
	}
	if c.Scale == 0 {
		c.Scale = DefaultSize
	}
	if opt.Foreground != nil || opt.Background != nil {
		fg, bg := Black, White
		if opt.Foreground != nil {
			fg = *opt.Foreground
		}
		if opt.Background != nil {
			bg = *opt.Background
		}
		c.Palette = &[2]color.Color{bg.RGBA(), fg.RGBA()}
	}
	return c, nil
}

// A Code is a square pixel grid.
// It implements image.Image and direct PNG encoding.
type Code struct {
	Bitmap   []byte           // 1 is black, 0 is white
	Size     int              // number of pixels on a side
	Stride   int              // number of bytes per row
	Version  coding.Version   // QR code version
	Level    Level            // error correction level
	Mask     int              // mask pattern
	Segments []coding.Segment // encoded segments
	Scale    int              // number of image pixels per QR pixel
	Border   int              // quiet zone width in QR pixels

	// Palette holds background and foreground colours.  If nil,
	// white and black are used.
	Palette *[2]color.Color

	Reverse bool // swap background and foreground
}

// Black returns true if the pixel at (x,y) is black.
func (c *Code) Black(x, y int) bool {
	return 0 <= x && x < c.Size && 0 <= y && y < c.Size &&
		c.Bitmap[y*c.Stride+x/8]&(1<<uint(7&^x)) != 0
}

// isValid reports whether c describes a drawable code.
func (c *Code) isValid() bool {
	return c != nil && c.Size > 0 && c.Stride >= (c.Size+7)/8 &&
		len(c.Bitmap) >= c.Stride*c.Size &&
		c.Scale > 0 && c.Border >= 0
}

// side returns the image side in pixels.
func (c *Code) side() (int, error) {
	if !c.isValid() {
		return 0, ErrArgs
	}
	n := c.Size + 2*c.Border
	if n > maxSide || n*c.Scale > maxSide {
		return 0, ErrLargeImage
	}
	return n * c.Scale, nil
}

// palette returns the background and foreground colours.
func (c *Code) palette() color.Palette {
	p := color.Palette{color.Gray{0xff}, color.Gray{0x00}}
	if c.Palette != nil {
		p[0], p[1] = c.Palette[0], c.Palette[1]
	}
	if c.Reverse {
		p[0], p[1] = p[1], p[0]
	}
	return p
}

// Image returns an Image displaying the code, or nil if c is invalid
// or too large.
func (c *Code) Image() image.Image {
	if _, err := c.side(); err != nil {
		return nil
	}
	return &codeImage{c, c.palette()}
}

// codeImage implements image.Image
type codeImage struct {
	*Code
	pal color.Palette
}

func (c *codeImage) Bounds() image.Rectangle {
	d := (c.Size + 2*c.Border) * c.Scale
	return image.Rect(0, 0, d, d)
}

func (c *codeImage) At(x, y int) color.Color {
	if c.Black(x/c.Scale-c.Border, y/c.Scale-c.Border) {
		return c.pal[1]
	}
	return c.pal[0]
}

func (c *codeImage) ColorModel() color.Model {
	return c.pal
}

// paletted returns a two colour paletted image displaying the code.
func (c *Code) paletted() (*image.Paletted, error) {
	d, err := c.side()
	if err != nil {
		return nil, err
	}
	img := image.NewPaletted(image.Rect(0, 0, d, d), c.palette())
	scale, bord := c.Scale, c.Border
	row := make([]byte, d)
	for y := 0; y < c.Size; y++ {
		for x := 0; x < c.Size; x++ {
			var v byte
			if c.Black(x, y) {
				v = 1
			}
			p := row[(x+bord)*scale : (x+bord+1)*scale]
			for i := range p {
				p[i] = v
			}
		}
		for i := 0; i < scale; i++ {
			copy(img.Pix[((y+bord)*scale+i)*img.Stride:], row)
		}
	}
	return img, nil
}
