// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/unixdj/qrkit/coding"
	"github.com/unixdj/qrkit/split"
)

// Defaults.
const (
	DefaultSize   = 8                // image pixels per module
	DefaultMargin = coding.QuietZone // quiet zone in modules
	MaxSize       = 1 << 10
	MaxMargin     = 1 << 10
)

// Options control EncodeText.  The set is closed: ParseOptions and
// OptionsFromMap reject unknown names.
type Options struct {
	Level      Level          `yaml:"level"`       // error correction level
	MinVersion coding.Version `yaml:"min_version"` // smallest version, 0 for 1
	Mode       coding.Mode    `yaml:"mode"`        // forced mode, 0 for automatic
	Charset    split.Charset  `yaml:"charset"`     // byte mode charset
	NoKanji    bool           `yaml:"no_kanji"`    // never use kanji mode
	MinRun     int            `yaml:"min_run"`     // shortest run worth a mode switch
	ECI        bool           `yaml:"eci"`         // prepend ECI segment
	Boost      bool           `yaml:"boost"`       // raise level if it fits
	AllowEmpty bool           `yaml:"allow_empty"` // accept empty text

	Size       int   `yaml:"size"`       // image pixels per module
	Margin     int   `yaml:"margin"`     // quiet zone in modules
	Foreground *Color `yaml:"foreground"` // dark module colour, nil for black
	Background *Color `yaml:"background"` // light module colour, nil for white
}

// DefaultOptions returns the default options: level L, automatic
// modes, UTF-8, kanji enabled, 8 pixels per module, 4 module margin.
func DefaultOptions() *Options {
	return &Options{
		Level:  L,
		Size:   DefaultSize,
		Margin: DefaultMargin,
	}
}

// OptionError reports an invalid option value.
type OptionError struct {
	Name   string // option name as in YAML
	Value  any
	Reason string
}

func (e *OptionError) Error() string {
	return fmt.Sprintf("qr: option %s: invalid value %v: %s",
		e.Name, e.Value, e.Reason)
}

// Validate checks option values.
func (opt *Options) Validate() error {
	switch {
	case opt.Level < L || opt.Level > H:
		return &OptionError{"level", int(opt.Level), "out of range"}
	case opt.MinVersion != 0 &&
		(opt.MinVersion < coding.MinVersion || opt.MinVersion > coding.MaxVersion):
		return &OptionError{"min_version", int(opt.MinVersion), "out of range"}
	case opt.Charset != split.UTF8 && opt.Charset != split.ISO8859_1:
		return &OptionError{"charset", int(opt.Charset), "unknown charset"}
	case opt.MinRun < 0:
		return &OptionError{"min_run", opt.MinRun, "negative"}
	case opt.Size < 0 || opt.Size > MaxSize:
		return &OptionError{"size", opt.Size, "out of range"}
	case opt.Margin < 0 || opt.Margin > MaxMargin:
		return &OptionError{"margin", opt.Margin, "out of range"}
	}
	switch opt.Mode {
	case 0, coding.Numeric, coding.Alphanumeric, coding.Byte,
		coding.Kanji, coding.Latin1:
	default:
		return &OptionError{"mode", opt.Mode, "not a text mode"}
	}
	return nil
}

// ParseOptions reads options in YAML from r over the defaults.
// Unknown option names are an error.
func ParseOptions(r io.Reader) (*Options, error) {
	opt := DefaultOptions()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(opt); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("qr: options: %w", err)
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	return opt, nil
}

// OptionsFromMap returns options set from m over the defaults, as
// ParseOptions does.
func OptionsFromMap(m map[string]any) (*Options, error) {
	b, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("qr: options: %w", err)
	}
	return ParseOptions(bytes.NewReader(b))
}

// A Color is an 8-bit RGBA colour, not premultiplied.
type Color struct {
	R, G, B, A uint8
}

// Colours.
var (
	Black = Color{0x00, 0x00, 0x00, 0xff}
	White = Color{0xff, 0xff, 0xff, 0xff}
)

var colorNames = map[string]Color{
	"black":       Black,
	"white":       White,
	"transparent": {0xff, 0xff, 0xff, 0x00},
	"red":         {0xff, 0x00, 0x00, 0xff},
	"green":       {0x00, 0xff, 0x00, 0xff},
	"blue":        {0x00, 0x00, 0xff, 0xff},
	"cyan":        {0x00, 0xff, 0xff, 0xff},
	"magenta":     {0xff, 0x00, 0xff, 0xff},
	"yellow":      {0xff, 0xff, 0x00, 0xff},
	"gray":        {0xbe, 0xbe, 0xbe, 0xff},
	"grey":        {0xbe, 0xbe, 0xbe, 0xff},
	"darkgreen":   {0x00, 0x64, 0x00, 0xff},
	"navy":        {0x00, 0x00, 0x80, 0xff},
	"orange":      {0xff, 0xa5, 0x00, 0xff},
	"purple":      {0xa0, 0x20, 0xf0, 0xff},
}

// RGBA returns c as color.NRGBA.
func (c Color) RGBA() color.NRGBA {
	return color.NRGBA(c)
}

func (c Color) String() string {
	switch {
	case c == Black:
		return "black"
	case c == White:
		return "white"
	case c.A == 0xff:
		return fmt.Sprintf("%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.  It accepts a
// colour name, or 3, 4, 6 or 8 hex digits with an optional leading
// '#', as RGB[A] or RRGGBB[AA].
func (c *Color) UnmarshalText(b []byte) error {
	s := strings.ToLower(strings.ReplaceAll(string(b), " ", ""))
	if v, ok := colorNames[s]; ok {
		*c = v
		return nil
	}
	s = strings.TrimPrefix(s, "#")
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fmt.Errorf("%q: bad colour spec", b)
	}
	switch len(s) {
	case 3:
		n = n<<4 | 0xf
		fallthrough
	case 4:
		var nn uint64
		for i := 0; i < 4; i++ {
			nn <<= 8
			nn |= n >> 12 & 0xf * 0x11
			n <<= 4
		}
		n = nn
	case 6:
		n = n<<8 | 0xff
	case 8:
	default:
		return fmt.Errorf("%q: bad colour spec", b)
	}
	c.R, c.G, c.B, c.A = uint8(n>>24), uint8(n>>16), uint8(n>>8), uint8(n)
	return nil
}
