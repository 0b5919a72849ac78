// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unixdj/qrkit/coding"
	"github.com/unixdj/qrkit/split"
)

func TestParseOptions(t *testing.T) {
	opt, err := ParseOptions(strings.NewReader(`
level: Q
min_version: 3
mode: alphanumeric
charset: latin1
no_kanji: true
min_run: 5
eci: true
boost: true
allow_empty: true
size: 4
margin: 2
foreground: "#336699"
background: white
`))
	require.NoError(t, err)
	assert.Equal(t, &Options{
		Level:      Q,
		MinVersion: 3,
		Mode:       coding.Alphanumeric,
		Charset:    split.ISO8859_1,
		NoKanji:    true,
		MinRun:     5,
		ECI:        true,
		Boost:      true,
		AllowEmpty: true,
		Size:       4,
		Margin:     2,
		Foreground: &Color{0x33, 0x66, 0x99, 0xff},
		Background: &White,
	}, opt)

	opt, err = ParseOptions(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opt)

	opt, err = ParseOptions(strings.NewReader("level: high\nmargin: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, H, opt.Level)
	assert.Equal(t, 0, opt.Margin)
	assert.Equal(t, DefaultSize, opt.Size)
}

func TestParseOptionsErrors(t *testing.T) {
	for _, in := range []string{
		"colour: red\n",
		"level: X\n",
		"mode: eci\n",
		"charset: ebcdic\n",
		"foreground: chartreuse-ish\n",
		"size: big\n",
		"- a list\n",
	} {
		_, err := ParseOptions(strings.NewReader(in))
		assert.Error(t, err, in)
	}

	var oe *OptionError
	_, err := ParseOptions(strings.NewReader("margin: -1\n"))
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "margin", oe.Name)
	_, err = ParseOptions(strings.NewReader("min_version: 41\n"))
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, "min_version", oe.Name)
}

func TestOptionsFromMap(t *testing.T) {
	opt, err := OptionsFromMap(map[string]any{
		"level":      "m",
		"size":       3,
		"foreground": "f00",
		"mode":       "auto",
		"boost":      true,
	})
	require.NoError(t, err)
	assert.Equal(t, M, opt.Level)
	assert.Equal(t, 3, opt.Size)
	assert.Equal(t, &Color{0xff, 0, 0, 0xff}, opt.Foreground)
	assert.Equal(t, coding.Mode(0), opt.Mode)
	assert.True(t, opt.Boost)
	assert.Equal(t, DefaultMargin, opt.Margin)

	// typed values marshal as text
	opt, err = OptionsFromMap(map[string]any{"level": H, "charset": split.ISO8859_1})
	require.NoError(t, err)
	assert.Equal(t, H, opt.Level)
	assert.Equal(t, split.ISO8859_1, opt.Charset)

	_, err = OptionsFromMap(map[string]any{"writer": "png"})
	assert.Error(t, err)
}

func TestColor(t *testing.T) {
	for in, want := range map[string]Color{
		"black":     Black,
		"White":     White,
		"dark green": {0x00, 0x64, 0x00, 0xff},
		"f00":       {0xff, 0x00, 0x00, 0xff},
		"8000":      {0x88, 0x00, 0x00, 0x00},
		"#336699":   {0x33, 0x66, 0x99, 0xff},
		"33669980":  {0x33, 0x66, 0x99, 0x80},
	} {
		var c Color
		require.NoError(t, c.UnmarshalText([]byte(in)), in)
		assert.Equal(t, want, c, in)

		b, err := c.MarshalText()
		require.NoError(t, err)
		var c2 Color
		require.NoError(t, c2.UnmarshalText(b))
		assert.Equal(t, c, c2, in)
	}
	for _, in := range []string{"", "12", "12345", "ggg", "#1234567890"} {
		var c Color
		assert.Error(t, c.UnmarshalText([]byte(in)), in)
	}
}

func TestModeText(t *testing.T) {
	var m coding.Mode
	require.NoError(t, m.UnmarshalText([]byte("Latin1")))
	assert.Equal(t, coding.Latin1, m)
	b, err := m.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "latin-1", string(b))
	b, err = coding.Mode(0).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "auto", string(b))
}
