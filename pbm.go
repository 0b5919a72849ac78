// Copyright 2011 The Go Authors.  All rights reserved.
// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

import (
	"bufio"
	"io"
	"strconv"
)

// EncodePBM writes a Portable Bit Map image displaying the code to w,
// for use with netpbm.  EncodePBM disregards c.Palette, as other PNM
// formats are not supported.
func (c *Code) EncodePBM(w io.Writer) error {
	d, err := c.side()
	if err != nil {
		return err
	}
	b := bufio.NewWriter(w)
	ds := strconv.Itoa(d)
	if _, err := b.WriteString("P4\n" + ds + " " + ds + "\n"); err != nil {
		return err
	}
	var white byte
	if c.Reverse {
		white = 0xff
	}
	row := make([]byte, (d+7)/8)
	fill(row, white)
	// horizontal quiet zone
	for i := 0; i < c.Scale*c.Border; i++ {
		if _, err := b.Write(row); err != nil {
			return err
		}
	}
	for y := 0; y < c.Size; y++ {
		c.pbmRow(row, y, white)
		for i := 0; i < c.Scale; i++ {
			if _, err := b.Write(row); err != nil {
				return err
			}
		}
	}
	fill(row, white)
	for i := 0; i < c.Scale*c.Border; i++ {
		if _, err := b.Write(row); err != nil {
			return err
		}
	}
	return b.Flush()
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}

// pbmRow packs QR row y at c.Scale, preceded by the quiet zone, into
// row, one bit per pixel, most significant bit first.  Set bits are
// black, unless inverted by white.
func (c *Code) pbmRow(row []byte, y int, white byte) {
	fill(row, 0)
	scale := c.Scale
	bit := c.Border * scale // pixel offset
	srow := c.Bitmap[y*c.Stride : (y+1)*c.Stride]
	for x := 0; x < c.Size; x++ {
		if srow[x>>3]&(0x80>>(x&7)) == 0 {
			bit += scale
			continue
		}
		// set pixels [bit, bit+scale)
		for n := scale; n > 0; {
			i, off := bit>>3, bit&7
			k := min(8-off, n)
			row[i] |= byte(0xff<<(8-k)) >> off
			bit += k
			n -= k
		}
	}
	if white != 0 {
		for i := range row {
			row[i] ^= white
		}
	}
}
