// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"strings"

	"golang.org/x/image/bmp"
)

// EncodeBMP writes a paletted BMP image displaying the code to w.
func (c *Code) EncodeBMP(w io.Writer) error {
	img, err := c.paletted()
	if err != nil {
		return err
	}
	return bmp.Encode(w, img)
}

// hexColor returns c as an SVG colour and opacity.
func hexColor(c color.Color) (string, float64) {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B), float64(n.A) / 0xff
}

// EncodeSVG writes an SVG image displaying the code to w.  Each row
// of dark modules is drawn as one path of unit squares, c.Scale
// user units per module.
func (c *Code) EncodeSVG(w io.Writer) error {
	d, err := c.side()
	if err != nil {
		return err
	}
	pal := c.palette()
	bg, bgo := hexColor(pal[0])
	fg, fgo := hexColor(pal[1])
	n := c.Size + 2*c.Border
	b := bufio.NewWriter(w)
	fmt.Fprintf(b, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" version="1.1" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">
<rect width="%d" height="%d" fill="%s" fill-opacity="%.3g"/>
<path fill="%s" fill-opacity="%.3g" d="`,
		d, d, n, n, n, n, bg, bgo, fg, fgo)
	for y := 0; y < c.Size; y++ {
		for x := 0; x < c.Size; {
			if !c.Black(x, y) {
				x++
				continue
			}
			s := x
			for x < c.Size && c.Black(x, y) {
				x++
			}
			fmt.Fprintf(b, "M%d %dh%dv1h-%dz", s+c.Border, y+c.Border,
				x-s, x-s)
		}
	}
	b.WriteString("\"/>\n</svg>\n")
	return b.Flush()
}

// EncodeEPS writes an Encapsulated PostScript image displaying the
// code centred on a US Letter page to w, c.Scale points per module.
func (c *Code) EncodeEPS(w io.Writer) error {
	if _, err := c.side(); err != nil {
		return err
	}
	const midx, midy = 306, 396
	siz := c.Size
	scale := c.Scale
	bord := c.Border
	xorig := (midx*2 - (siz+2*bord)*scale) / 2
	yorig := (midy*2 - (siz+2*bord)*scale) / 2
	b := bufio.NewWriter(w)
	fmt.Fprintf(b, `%%!PS-Adobe-2.0 EPSF-2.0
%%%%Creator: QR https://github.com/unixdj/qrkit
%%%%Title: QR Code %v-%v
%%%%BoundingBox: %d %d %d %d
%%%%EndComments
%%%%EndProlog
<< >> begin
gsave
%g %g translate
%d dup neg scale
/row 0 def
/p { 0 rmoveto 0 rlineto } def
/r { 0 row 1 add dup /row exch def moveto } def
`,
		c.Version, c.Level, xorig-1, yorig-1, midx*2-xorig, midy*2-yorig,
		midx-float64(siz*scale)/2, midy+float64((siz-1)*scale)/2-1,
		scale)
	if c.Palette != nil || c.Reverse {
		pal := c.palette()
		bg := color.NRGBAModel.Convert(pal[0]).(color.NRGBA)
		fg := color.NRGBAModel.Convert(pal[1]).(color.NRGBA)
		fmt.Fprintf(b, `gsave
newpath %d %d moveto
%d dup neg scale
%.3g %.3g %.3g setrgbcolor
1 0 rlineto stroke
grestore
%.3g %.3g %.3g setrgbcolor
`,
			-bord, siz/2, siz+2*bord,
			float64(bg.R)/0xff, float64(bg.G)/0xff, float64(bg.B)/0xff,
			float64(fg.R)/0xff, float64(fg.G)/0xff, float64(fg.B)/0xff)
	}
	fmt.Fprintln(b, "newpath 0 0 moveto")
	for y := 0; y < siz; y++ {
		for x := 0; x < siz; {
			s := x
			for x < siz && !c.Black(x, y) {
				x++
			}
			if x == siz {
				break
			}
			start := x
			for x < siz && c.Black(x, y) {
				x++
			}
			fmt.Fprintf(b, "%d %d p ", x-start, start-s)
		}
		fmt.Fprintln(b, "r")
	}
	b.WriteString("stroke grestore\nend\n%%Trailer\n")
	return b.Flush()
}

// String returns the code drawn with UTF-8 half block characters,
// two rows of modules per line, including the quiet zone.  Dark
// modules are drawn as spaces and light ones as blocks, for display
// on dark terminals, unless c.Reverse is set.
func (c *Code) String() string {
	if !c.isValid() {
		return ""
	}
	// index: 2 if the upper module is dark, | 1 if the lower one is
	blocks := [4]string{"█", "▀", "▄", " "}
	if c.Reverse {
		blocks = [4]string{" ", "▄", "▀", "█"}
	}
	var b strings.Builder
	lo, hi := -c.Border, c.Size+c.Border
	for y := lo; y < hi; y += 2 {
		for x := lo; x < hi; x++ {
			var i int
			if c.Black(x, y) {
				i |= 2
			}
			if y+1 < hi && c.Black(x, y+1) {
				i |= 1
			}
			if y+1 == hi && !c.Reverse {
				// lower half beyond the image
				i |= 1
			}
			b.WriteString(blocks[i])
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// EncodeASCII writes the code to w using two '#' characters per dark
// module and two spaces per light module, a line per row.
func (c *Code) EncodeASCII(w io.Writer) error {
	if !c.isValid() {
		return ErrArgs
	}
	bord := c.Border
	pix := c.Size + 2*bord
	b := make([]byte, 0, (pix*2+1)*pix)
	for y := -bord; y < c.Size+bord; y++ {
		for x := -bord; x < c.Size+bord; x++ {
			p := byte(' ')
			if c.Black(x, y) != c.Reverse {
				p = '#'
			}
			b = append(b, p, p)
		}
		b = append(b, '\n')
	}
	_, err := w.Write(b)
	return err
}
