// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func helloWorld(t *testing.T) *Code {
	t.Helper()
	c, err := Encode("HELLO WORLD", M)
	require.NoError(t, err)
	return c
}

// sameImage checks that img shows c as drawn by c.Image.
func sameImage(t *testing.T, c *Code, img image.Image) {
	t.Helper()
	want := c.Image()
	require.Equal(t, want.Bounds(), img.Bounds())
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y += 3 {
		for x := b.Min.X; x < b.Max.X; x += 3 {
			r0, g0, b0, a0 := want.At(x, y).RGBA()
			r1, g1, b1, a1 := img.At(x, y).RGBA()
			if [4]uint32{r0, g0, b0, a0} != [4]uint32{r1, g1, b1, a1} {
				t.Fatalf("pixel (%d,%d) differs", x, y)
			}
		}
	}
}

func TestImage(t *testing.T) {
	c := helloWorld(t)
	img := c.Image()
	assert.Equal(t, image.Rect(0, 0, 232, 232), img.Bounds())
	gray := func(x, y int) uint32 {
		r, _, _, _ := img.At(x, y).RGBA()
		return r
	}
	assert.Equal(t, uint32(0xffff), gray(0, 0))
	assert.Equal(t, uint32(0), gray(32, 32))
	assert.Equal(t, uint32(0), gray(32+7*8-1, 32))
	assert.Equal(t, uint32(0xffff), gray(32+7*8, 32))

	assert.Nil(t, (&Code{}).Image())
}

func TestEncodePNG(t *testing.T) {
	c := helloWorld(t)
	var b bytes.Buffer
	require.NoError(t, c.EncodePNG(&b))
	img, err := png.Decode(&b)
	require.NoError(t, err)
	sameImage(t, c, img)
	assert.Equal(t, c.PNG()[:8], []byte("\x89PNG\r\n\x1a\n"))

	c.Reverse = true
	b.Reset()
	require.NoError(t, c.EncodePNG(&b))
	img, err = png.Decode(&b)
	require.NoError(t, err)
	sameImage(t, c, img)
}

func TestEncodeBMP(t *testing.T) {
	c := helloWorld(t)
	c.Scale = 3
	var b bytes.Buffer
	require.NoError(t, c.EncodeBMP(&b))
	assert.Equal(t, "BM", b.String()[:2])
	img, err := bmp.Decode(&b)
	require.NoError(t, err)
	sameImage(t, c, img)
}

func TestEncodePBM(t *testing.T) {
	c := helloWorld(t)
	c.Scale, c.Border = 1, 0
	var b bytes.Buffer
	require.NoError(t, c.EncodePBM(&b))
	head := "P4\n21 21\n"
	require.Equal(t, head, b.String()[:len(head)])
	assert.Equal(t, c.Bitmap, b.Bytes()[len(head):])

	c.Reverse = true
	b.Reset()
	require.NoError(t, c.EncodePBM(&b))
	body := b.Bytes()[len(head):]
	require.Len(t, body, len(c.Bitmap))
	for i := range body {
		assert.Equal(t, c.Bitmap[i]^0xff, body[i])
	}

	c.Scale, c.Border, c.Reverse = 8, 4, false
	b.Reset()
	require.NoError(t, c.EncodePBM(&b))
	head = "P4\n232 232\n"
	require.Equal(t, head, b.String()[:len(head)])
	body = b.Bytes()[len(head):]
	require.Len(t, body, 232*29)
	row := body[32*29 : 33*29] // top row of the finder pattern
	assert.Equal(t, []byte{0, 0, 0, 0, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0},
		row[:12])
	assert.Equal(t, make([]byte, 29), body[:29])

	// odd scale crossing byte boundaries
	c.Scale, c.Border = 3, 1
	b.Reset()
	require.NoError(t, c.EncodePBM(&b))
	head = "P4\n69 69\n"
	require.Equal(t, head, b.String()[:len(head)])
	body = b.Bytes()[len(head):]
	require.Len(t, body, 69*9)
	// row 3 is module row 0: 3 light pixels, then 21 dark
	assert.Equal(t, []byte{0x1f, 0xff, 0xff}, body[3*9:3*9+3])
}

func TestEncodeSVG(t *testing.T) {
	c := helloWorld(t)
	var b bytes.Buffer
	require.NoError(t, c.EncodeSVG(&b))
	s := b.String()
	assert.True(t, strings.HasPrefix(s, "<?xml"))
	assert.Contains(t, s, `width="232" height="232" viewBox="0 0 29 29"`)
	assert.Contains(t, s, `fill="#ffffff"`)
	assert.Contains(t, s, `fill="#000000"`)
	assert.Contains(t, s, "M4 4h7v1h-7z")
	assert.True(t, strings.HasSuffix(s, "</svg>\n"))
}

func TestEncodeEPS(t *testing.T) {
	c := helloWorld(t)
	var b bytes.Buffer
	require.NoError(t, c.EncodeEPS(&b))
	s := b.String()
	assert.True(t, strings.HasPrefix(s, "%!PS-Adobe-2.0 EPSF-2.0\n"))
	assert.Contains(t, s, "%%Title: QR Code 1-M\n")
	assert.NotContains(t, s, "setrgbcolor")
	assert.Equal(t, 21, strings.Count(s, " r\n")+strings.Count(s, "\nr\n"))
	assert.True(t, strings.HasSuffix(s, "%%Trailer\n"))

	c.Palette = &[2]color.Color{color.White, color.NRGBA{0, 0, 0xff, 0xff}}
	b.Reset()
	require.NoError(t, c.EncodeEPS(&b))
	assert.Contains(t, b.String(), "0 0 1 setrgbcolor")
}

func TestString(t *testing.T) {
	c := helloWorld(t)
	lines := strings.Split(strings.TrimSuffix(c.String(), "\n"), "\n")
	require.Len(t, lines, 15)
	for _, l := range lines {
		assert.Equal(t, 29, utf8.RuneCountInString(l))
	}
	assert.Equal(t, strings.Repeat("█", 29), lines[0])
	// rows 0 and 1: finder top edge over the finder's light ring
	assert.Equal(t, "████ ▄▄▄▄▄ █", string([]rune(lines[2])[:12]))

	assert.Equal(t, "", (&Code{}).String())
}

func TestEncodeASCII(t *testing.T) {
	c := helloWorld(t)
	c.Border = 1
	var b bytes.Buffer
	require.NoError(t, c.EncodeASCII(&b))
	lines := strings.Split(strings.TrimSuffix(b.String(), "\n"), "\n")
	require.Len(t, lines, 23)
	assert.Equal(t, strings.Repeat(" ", 46), lines[0])
	assert.Equal(t, "  "+strings.Repeat("#", 14)+"  ", lines[1][:18])

	c.Reverse = true
	b.Reset()
	require.NoError(t, c.EncodeASCII(&b))
	assert.Equal(t, strings.Repeat("#", 46), b.String()[:46])
}

func TestRenderErrors(t *testing.T) {
	var b bytes.Buffer
	bad := &Code{}
	assert.ErrorIs(t, bad.EncodePNG(&b), ErrArgs)
	assert.ErrorIs(t, bad.EncodeBMP(&b), ErrArgs)
	assert.ErrorIs(t, bad.EncodeSVG(&b), ErrArgs)
	assert.ErrorIs(t, bad.EncodePBM(&b), ErrArgs)
	assert.ErrorIs(t, bad.EncodeEPS(&b), ErrArgs)
	assert.ErrorIs(t, bad.EncodeASCII(&b), ErrArgs)
	assert.Nil(t, bad.PNG())

	c := helloWorld(t)
	c.Scale = maxSide
	assert.ErrorIs(t, c.EncodePNG(&b), ErrLargeImage)
	assert.Zero(t, b.Len())
}
