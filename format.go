// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

// ErrFormat is returned for an unknown output format.
var ErrFormat = errors.New("qr: unknown format")

// A Format is an output format.
type Format int

// Output formats.
const (
	PNG   Format = iota // PNG image
	BMP                 // BMP image
	SVG                 // SVG image
	PBM                 // netpbm bitmap
	EPS                 // Encapsulated PostScript
	UTF8                // UTF-8 half blocks
	ASCII               // ASCII art
)

var formats = [...]struct {
	name, ext, mime string
	enc             func(*Code, io.Writer) error
}{
	PNG: {"png", ".png", "image/png", (*Code).EncodePNG},
	BMP: {"bmp", ".bmp", "image/bmp", (*Code).EncodeBMP},
	SVG: {"svg", ".svg", "image/svg+xml", (*Code).EncodeSVG},
	PBM: {"pbm", ".pbm", "image/x-portable-bitmap", (*Code).EncodePBM},
	EPS: {"eps", ".eps", "application/postscript", (*Code).EncodeEPS},
	UTF8: {"utf8", ".txt", "text/plain; charset=utf-8",
		func(c *Code, w io.Writer) error {
			if !c.isValid() {
				return ErrArgs
			}
			_, err := io.WriteString(w, c.String())
			return err
		}},
	ASCII: {"ascii", ".asc", "text/plain; charset=us-ascii", (*Code).EncodeASCII},
}

func (f Format) valid() bool { return f >= 0 && int(f) < len(formats) }

func (f Format) String() string {
	if f.valid() {
		return formats[f].name
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// MIME returns the MIME type of f.
func (f Format) MIME() string {
	if f.valid() {
		return formats[f].mime
	}
	return "application/octet-stream"
}

// Ext returns the filename extension of f, including the dot.
func (f Format) Ext() string {
	if f.valid() {
		return formats[f].ext
	}
	return ""
}

// ParseFormat returns the Format with the given name.
func ParseFormat(name string) (Format, error) {
	for i := range formats {
		if strings.EqualFold(formats[i].name, name) {
			return Format(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrFormat, name)
}

// FormatOf returns the Format for the extension of filename.
func FormatOf(filename string) (Format, error) {
	ext := strings.ToLower(path.Ext(filename))
	for i := range formats {
		if ext != "" && formats[i].ext == ext {
			return Format(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q", ErrFormat, filename)
}

// Encode writes the code to w in format f.
func (c *Code) Encode(w io.Writer, f Format) error {
	if !f.valid() {
		return ErrFormat
	}
	return formats[f].enc(c, w)
}
