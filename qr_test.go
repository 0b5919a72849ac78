// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	skip2 "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unixdj/qrkit/coding"
	"github.com/unixdj/qrkit/split"
)

// decode reads img with the gozxing QR reader.
func decode(t *testing.T, img image.Image) string {
	t.Helper()
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	require.NoError(t, err)
	res, err := zxqr.NewQRCodeReader().Decode(bmp, nil)
	require.NoError(t, err)
	return res.GetText()
}

func TestRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		text string
		set  func(*Options)
	}{
		{"alphanumeric", "HELLO WORLD", nil},
		{"numeric", "0123456789012345678901234567890123456789", nil},
		{"url", "https://example.com/path?q=1&r=ABC123", nil},
		{"mixed", "0123456789ABCdef 42 PLUS 0001112223334445556667", nil},
		{"kanji", "日本語テキスト", nil},
		{"utf8 eci", "Grüße, Welt!", func(o *Options) { o.ECI = true }},
		{"latin1 eci", "Grüße", func(o *Options) {
			o.Charset = split.ISO8859_1
			o.ECI = true
		}},
		{"long", strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20), nil},
		{"level H", "HIGH LEVEL", func(o *Options) { o.Level = H }},
		{"min version", "v10", func(o *Options) { o.MinVersion = 10 }},
		{"byte mode", "1234", func(o *Options) { o.Mode = coding.Byte }},
		{"latin1 byte mode", "Grüße", func(o *Options) {
			o.Charset = split.ISO8859_1
			o.ECI = true
			o.Mode = coding.Byte
		}},
		{"min run", "abc123def456ghi", func(o *Options) { o.MinRun = 4 }},
		{"boost", "BOOST", func(o *Options) { o.Boost = true }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			opt := DefaultOptions()
			if tc.set != nil {
				tc.set(opt)
			}
			c, err := EncodeText(tc.text, opt)
			require.NoError(t, err)
			assert.Equal(t, tc.text, decode(t, c.Image()))
		})
	}
}

func TestRoundTripLevels(t *testing.T) {
	digits := strings.Repeat("31415926535897932384626433832795", 20)
	alnum := strings.Repeat("THE QUICK $%*+-./: FOX 0123 ", 20)
	text := strings.Repeat("the quick brown fox, 0123! ", 20)
	for _, l := range []Level{L, M, Q, H} {
		for _, tc := range []struct {
			name string
			text string
			mode coding.Mode
		}{
			{"numeric", digits[:1], coding.Numeric},
			{"numeric", digits[:100], coding.Numeric},
			{"numeric", digits, coding.Numeric},
			{"alphanumeric", alnum[:5], coding.Alphanumeric},
			{"alphanumeric", alnum[:150], coding.Alphanumeric},
			{"alphanumeric", alnum, coding.Alphanumeric},
			{"byte", text[:3], coding.Byte},
			{"byte", text[:120], coding.Byte},
			{"byte", text, coding.Byte},
		} {
			t.Run(fmt.Sprintf("%v/%s/%d", l, tc.name, len(tc.text)), func(t *testing.T) {
				c, err := Encode(tc.text, l)
				require.NoError(t, err)
				assert.Equal(t, l, c.Level)
				require.Len(t, c.Segments, 1)
				assert.Equal(t, tc.mode, c.Segments[0].Mode)
				assert.Equal(t, tc.text, decode(t, c.Image()))
			})
		}
	}
}

func TestVersionAgreesWithSkip2(t *testing.T) {
	for _, s := range []string{
		"1", strings.Repeat("7", 41), strings.Repeat("7", 100),
		strings.Repeat("7", 1000), strings.Repeat("7", 3000),
		"HELLO WORLD", strings.Repeat("ABC", 20), strings.Repeat("ABC", 300),
		"hello", strings.Repeat("abc", 50), strings.Repeat("abc", 400),
	} {
		c, err := Encode(s, M)
		require.NoError(t, err)
		ref, err := skip2.New(s, skip2.Medium)
		require.NoError(t, err)
		assert.Equal(t, ref.VersionNumber, int(c.Version), "len %d", len(s))
		assert.Equal(t, M, c.Level)
	}
}

func TestEncode(t *testing.T) {
	c, err := Encode("HELLO WORLD", M)
	require.NoError(t, err)
	assert.Equal(t, coding.Version(1), c.Version)
	assert.Equal(t, M, c.Level)
	assert.Equal(t, 0, c.Mask)
	assert.Equal(t, 21, c.Size)
	assert.Equal(t, 3, c.Stride)
	assert.Equal(t, DefaultSize, c.Scale)
	assert.Equal(t, DefaultMargin, c.Border)
	assert.Nil(t, c.Palette)
	assert.Equal(t, []coding.Segment{{Text: "HELLO WORLD", Mode: coding.Alphanumeric}},
		c.Segments)

	// same input, same symbol
	c2, err := Encode("HELLO WORLD", M)
	require.NoError(t, err)
	assert.Equal(t, c.Bitmap, c2.Bitmap)

	// finder pattern corners
	for _, p := range [][2]int{{0, 0}, {6, 6}, {20, 0}, {0, 20}, {8, 13}} {
		assert.True(t, c.Black(p[0], p[1]), "%v", p)
	}
	for _, p := range [][2]int{{7, 7}, {-1, 0}, {0, 21}, {13, 7}} {
		assert.False(t, c.Black(p[0], p[1]), "%v", p)
	}
}

func TestEncodeTextOptions(t *testing.T) {
	opt := DefaultOptions()
	opt.MinVersion = 5
	opt.Size = 2
	opt.Margin = 0
	c, err := EncodeText("A", opt)
	require.NoError(t, err)
	assert.Equal(t, coding.Version(5), c.Version)
	assert.Equal(t, 2, c.Scale)
	assert.Equal(t, 0, c.Border)

	opt = DefaultOptions()
	opt.Boost = true
	c, err = EncodeText("A", opt)
	require.NoError(t, err)
	assert.Equal(t, coding.Version(1), c.Version)
	assert.Equal(t, H, c.Level)

	c, err = EncodeText("HELLO WORLD", nil)
	require.NoError(t, err)
	assert.Equal(t, L, c.Level)

	opt = DefaultOptions()
	opt.AllowEmpty = true
	c, err = EncodeText("", opt)
	require.NoError(t, err)
	assert.Equal(t, coding.Version(1), c.Version)
	assert.Empty(t, c.Segments)
}

func TestEncodeColours(t *testing.T) {
	opt := DefaultOptions()
	opt.Foreground = &Color{0xff, 0, 0, 0xff}
	c, err := EncodeText("HELLO WORLD", opt)
	require.NoError(t, err)
	require.NotNil(t, c.Palette)
	img := c.Image()
	assert.Equal(t, color.NRGBA{0xff, 0, 0, 0xff}, img.At(32, 32))
	assert.Equal(t, color.NRGBA{0xff, 0xff, 0xff, 0xff}, img.At(0, 0))

	c.Reverse = true
	img = c.Image()
	assert.Equal(t, color.NRGBA{0xff, 0xff, 0xff, 0xff}, img.At(32, 32))
	assert.Equal(t, color.NRGBA{0xff, 0, 0, 0xff}, img.At(0, 0))

	// transparent black is a colour, not the default
	opt = DefaultOptions()
	opt.Background = &Color{}
	c, err = EncodeText("HELLO WORLD", opt)
	require.NoError(t, err)
	require.NotNil(t, c.Palette)
	img = c.Image()
	assert.Equal(t, color.NRGBA{0, 0, 0, 0xff}, img.At(32, 32))
	assert.Equal(t, color.NRGBA{}, img.At(0, 0))

	opt.Background = nil
	c, err = EncodeText("HELLO WORLD", opt)
	require.NoError(t, err)
	assert.Nil(t, c.Palette)
}

func TestEncodeErrors(t *testing.T) {
	var ie *coding.InvalidInputError
	_, err := Encode("", L)
	assert.ErrorAs(t, err, &ie)

	opt := DefaultOptions()
	opt.Charset = split.ISO8859_1
	_, err = EncodeText("😀", opt)
	assert.ErrorAs(t, err, &ie)

	opt = DefaultOptions()
	opt.Mode = coding.Numeric
	_, err = EncodeText("12a", opt)
	assert.ErrorAs(t, err, &ie)

	var ce *coding.CapacityExceededError
	_, err = Encode(strings.Repeat("x", 3000), H)
	assert.ErrorAs(t, err, &ce)

	var oe *OptionError
	for _, set := range []func(*Options){
		func(o *Options) { o.Level = 4 },
		func(o *Options) { o.MinVersion = 41 },
		func(o *Options) { o.Mode = coding.ECI },
		func(o *Options) { o.Charset = 5 },
		func(o *Options) { o.MinRun = -1 },
		func(o *Options) { o.Size = -1 },
		func(o *Options) { o.Margin = MaxMargin + 1 },
	} {
		opt := DefaultOptions()
		set(opt)
		_, err = EncodeText("x", opt)
		assert.ErrorAs(t, err, &oe)
	}
}

func TestConcurrentEncode(t *testing.T) {
	want, err := Encode("CONCURRENT 12345", Q)
	require.NoError(t, err)
	done := make(chan []byte)
	for i := 0; i < 8; i++ {
		go func() {
			c, err := Encode("CONCURRENT 12345", Q)
			if err != nil {
				done <- nil
				return
			}
			done <- c.Bitmap
		}()
	}
	for i := 0; i < 8; i++ {
		assert.Equal(t, want.Bitmap, <-done)
	}
}
