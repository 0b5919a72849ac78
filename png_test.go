// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"bytes"
	"encoding/binary"
	"hash/adler32"
	"image/color"
	"image/png"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunks returns the chunk names of a PNG image.
func chunks(t *testing.T, b []byte) []string {
	t.Helper()
	require.True(t, bytes.HasPrefix(b, []byte(pngHeader)))
	b = b[len(pngHeader):]
	var names []string
	for len(b) >= 12 {
		n := int(binary.BigEndian.Uint32(b))
		names = append(names, string(b[4:8]))
		b = b[12+n:]
	}
	require.Empty(t, b)
	return names
}

func TestPNGScales(t *testing.T) {
	for _, text := range []string{
		"HELLO WORLD",
		"https://example.com/a/somewhat/longer/path?with=query&and=more",
		strings.Repeat("0123456789", 60),
	} {
		c, err := Encode(text, M)
		require.NoError(t, err)
		for _, scale := range []int{1, 2, 3, 4, 5, 8, 13} {
			for _, border := range []int{0, 1, 4} {
				for _, rev := range []bool{false, true} {
					c.Scale, c.Border, c.Reverse = scale, border, rev
					b := c.PNG()
					require.NotNil(t, b)
					img, err := png.Decode(bytes.NewReader(b))
					require.NoError(t, err, "scale %d border %d reverse %v", scale, border, rev)
					sameImage(t, c, img)
				}
			}
		}
	}
}

func TestPNGPalette(t *testing.T) {
	c := helloWorld(t)
	b := c.PNG()
	assert.Equal(t, byte(0), b[len(pngHeader)+8+9], "gray colour type")
	assert.Equal(t, []string{"IHDR", "IDAT", "IEND"}, chunks(t, b))

	c.Palette = &[2]color.Color{
		color.NRGBA{0xff, 0xff, 0xff, 0x00},
		color.NRGBA{0x00, 0x00, 0x80, 0xff},
	}
	b = c.PNG()
	assert.Equal(t, byte(3), b[len(pngHeader)+8+9], "palette colour type")
	assert.Equal(t, []string{"IHDR", "PLTE", "tRNS", "IDAT", "IEND"}, chunks(t, b))
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	sameImage(t, c, img)

	// opaque palette needs no transparency
	c.Palette = &[2]color.Color{color.White, color.NRGBA{0xff, 0, 0, 0xff}}
	b = c.PNG()
	assert.Equal(t, []string{"IHDR", "PLTE", "IDAT", "IEND"}, chunks(t, b))
	img, err = png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	sameImage(t, c, img)

	// black and white palette is written as gray
	c.Palette = &[2]color.Color{color.White, color.Black}
	c.Reverse = true
	b = c.PNG()
	assert.Equal(t, byte(0), b[len(pngHeader)+8+9])
	img, err = png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	sameImage(t, c, img)
}

func TestPNGLongRepeats(t *testing.T) {
	c := helloWorld(t)
	// rows of over 258 bytes repeated for more than 8 KB
	c.Scale, c.Border = 120, 4
	b := c.PNG()
	require.NotNil(t, b)
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	sameImage(t, c, img)
}

func TestPNGLargeCode(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	text := make([]byte, 2000)
	for i := range text {
		text[i] = byte(' ' + r.Intn(95))
	}
	c, err := Encode(string(text), L)
	require.NoError(t, err)
	for _, scale := range []int{1, 3, 7} {
		c.Scale = scale
		b := c.PNG()
		names := chunks(t, b)
		assert.Equal(t, "IHDR", names[0])
		assert.Equal(t, "IEND", names[len(names)-1])
		for _, n := range names[1 : len(names)-1] {
			assert.Equal(t, "IDAT", n)
		}
		img, err := png.Decode(bytes.NewReader(b))
		require.NoError(t, err, "scale %d", scale)
		sameImage(t, c, img)
	}
}

func TestLengthAndDistanceCodes(t *testing.T) {
	for _, tc := range []struct {
		n    int
		sym  uint16
		ext  code
		dsym uint16
		dext code
	}{
		{3, 257, code{}, 2, code{}},
		{10, 264, code{}, 6, code{1, 2}},
		{11, 265, code{0, 1}, 6, code{2, 2}},
		{258, 285, code{}, 16, code{1, 7}},
		{257, 284, code{30, 5}, 16, code{0, 7}},
	} {
		s, e := lcode(tc.n)
		assert.Equal(t, tc.sym, s, "length %d", tc.n)
		assert.Equal(t, tc.ext, e, "length %d", tc.n)
		s, e = dcode(tc.n)
		assert.Equal(t, tc.dsym, s, "distance %d", tc.n)
		assert.Equal(t, tc.dext, e, "distance %d", tc.n)
	}
	s, e := dcode(32768)
	assert.Equal(t, uint16(29), s)
	assert.Equal(t, code{0x1fff, 13}, e)
	assert.Panics(t, func() { lcode(2) })
	assert.Panics(t, func() { dcode(32769) })
}

func TestBuildCodes(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for _, tc := range []struct{ n, maxdepth int }{
		{nhcodes, 7},
		{ndcodes, 15},
		{nsyms, 15},
	} {
		for i := 0; i < 50; i++ {
			f := make([]int, tc.n)
			for j := range f {
				if r.Intn(3) == 0 {
					f[j] = 1 + r.Intn(1000)
				}
			}
			f[0], f[tc.n-1] = 1, 1
			maxdepth := tc.maxdepth
			want := append([]int(nil), f...)
			c := buildCodes(make(ctable, tc.n), f, maxdepth)
			// complete and within depth
			var kraft uint64
			for s, cc := range c {
				if want[s] == 0 {
					assert.Zero(t, cc.nbit)
					continue
				}
				require.NotZero(t, cc.nbit)
				require.LessOrEqual(t, int(cc.nbit), maxdepth)
				kraft += 1 << (32 - cc.nbit)
			}
			assert.Equal(t, uint64(1)<<32, kraft)
		}
	}
}

func TestAdigest(t *testing.T) {
	var d adigest
	d.Reset()
	var b []byte
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		v, n := byte(r.Intn(4)*85), r.Intn(20000)
		d.WriteNByte(v, n)
		b = append(b, bytes.Repeat([]byte{v}, n)...)
		p := make([]byte, r.Intn(50))
		r.Read(p)
		d.Write(p)
		b = append(b, p...)
	}
	assert.Equal(t, adler32.Checksum(b), d.Sum32())
}
