// Copyright 2011 The Go Authors.  All rights reserved.
// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qr

/*
Bespoke PNG Encoder

Images have two colours at one bit per pixel, grayscale when the
colours are opaque black and white, paletted otherwise.  The zlib
stream is a single DEFLATE block with dynamic Huffman codes built from
exact symbol counts.  The LZ77 vocabulary is limited to:

  - Literals.
  - Runs of equal bytes, as repeats at distance 1.
  - Runs of equal image rows, as repeats at row distance.  At scale n
    each QR row costs one literal row and one repeat.

The image is tokenised in one pass, then codes are built and the
tokens written.
*/

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image/color"
	"io"
)

// PNG returns a PNG image displaying the code, or nil if c is invalid
// or too large.
func (c *Code) PNG() []byte {
	b, err := encodePNG(c)
	if err != nil {
		return nil
	}
	return b
}

// EncodePNG writes a PNG image displaying the code to w.
func (c *Code) EncodePNG(w io.Writer) error {
	if w == nil {
		return ErrArgs
	}
	b, err := encodePNG(c)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

const (
	pngHeader = "\x89PNG\r\n\x1a\n"
	chunkSize = 0x8000 // IDAT chunks split after 32 KB
)

func encodePNG(c *Code) ([]byte, error) {
	d, err := c.side()
	if err != nil {
		return nil, err
	}
	pal, light := c.pngPalette()

	var b bytes.Buffer
	b.WriteString(pngHeader)

	// Header block
	var tmp [13]byte
	binary.BigEndian.PutUint32(tmp[0:4], uint32(d))
	binary.BigEndian.PutUint32(tmp[4:8], uint32(d))
	tmp[8] = 1 // 1-bit
	if pal != nil {
		tmp[9] = 3 // palette
	} else {
		tmp[9] = 0 // gray
	}
	tmp[10] = 0 // deflate
	tmp[11] = 0 // adaptive filtering
	tmp[12] = 0 // no interlace
	writeChunk(&b, "IHDR", tmp[:13])

	// Palette and transparency
	if pal != nil {
		for i, p := range pal {
			tmp[3*i], tmp[3*i+1], tmp[3*i+2] = p.R, p.G, p.B
		}
		writeChunk(&b, "PLTE", tmp[:6])
		tmp[0], tmp[1] = pal[0].A, pal[1].A
		for a := 2; a > 0; a-- {
			if tmp[a-1] != 0xff {
				writeChunk(&b, "tRNS", tmp[:a])
				break
			}
		}
	}

	// Data
	z := c.zlib(d, light)
	for len(z) > chunkSize {
		writeChunk(&b, "IDAT", z[:chunkSize])
		z = z[chunkSize:]
	}
	writeChunk(&b, "IDAT", z)

	// End
	writeChunk(&b, "IEND", nil)
	return b.Bytes(), nil
}

// pngPalette returns the PNG palette, nil for grayscale, and the
// value of light pixel bits in a packed row.
func (c *Code) pngPalette() (*[2]color.NRGBA, byte) {
	const b, w, o = 0x00, 0xff, 0xff // black, white, opaque
	var pal [2]color.NRGBA
	for i, v := range c.palette() {
		pal[i] = color.NRGBAModel.Convert(v).(color.NRGBA)
	}
	switch pal {
	case [2]color.NRGBA{{w, w, w, o}, {b, b, b, o}}:
		return nil, 0xff
	case [2]color.NRGBA{{b, b, b, o}, {w, w, w, o}}:
		return nil, 0
	}
	return &pal, 0
}

func writeChunk(b *bytes.Buffer, name string, data []byte) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(data)))
	b.Write(tmp[:])
	start := b.Len()
	b.WriteString(name)
	b.Write(data)
	binary.BigEndian.PutUint32(tmp[:], crc32.ChecksumIEEE(b.Bytes()[start:]))
	b.Write(tmp[:])
}

// A token is a literal byte or a repeat of earlier data.
type token struct {
	len  uint16 // repeat length, 0 for a literal
	dist uint16 // repeat distance, or the literal
}

// lz77 collects tokens and counts their symbols.
type lz77 struct {
	toks []token
	lit  [nsyms]int   // literal/length symbol counts
	dist [ndcodes]int // distance symbol counts
}

func (z *lz77) literal(v byte) {
	z.toks = append(z.toks, token{0, uint16(v)})
	z.lit[v]++
}

// repeat adds a repeat of n>=3 bytes at distance dist, split into
// lengths of 3 to 258.
func (z *lz77) repeat(n, dist int) {
	ds, _ := dcode(dist)
	for n > 0 {
		k := min(n, 258)
		if r := n - k; r > 0 && r < 3 {
			k = n - 3
		}
		s, _ := lcode(k)
		z.lit[s]++
		z.dist[ds]++
		z.toks = append(z.toks, token{uint16(k), uint16(dist)})
		n -= k
	}
}

// data adds b as literals, with runs of more than three equal bytes
// as repeats.
func (z *lz77) data(b []byte) {
	for i := 0; i < len(b); {
		v := b[i]
		j := i + 1
		for j < len(b) && b[j] == v {
			j++
		}
		z.literal(v)
		if n := j - i - 1; n >= 3 {
			z.repeat(n, 1)
		} else {
			for ; n > 0; n-- {
				z.literal(v)
			}
		}
		i = j
	}
}

// zlib returns the zlib stream of the d×d image.  Each row is filter
// type none followed by pixels packed as by pbmRow.
func (c *Code) zlib(d int, light byte) []byte {
	const ftNone = 0
	length := (d + 7) / 8
	row := make([]byte, length)
	prev := make([]byte, length)
	var (
		z     lz77
		sum   adigest
		first = true
		same  int // rows equal to prev not yet added
	)
	sum.Reset()
	flush := func() {
		if same != 0 {
			z.repeat(same*(1+length), 1+length)
			same = 0
		}
	}
	add := func() {
		sum.WriteNByte(ftNone, 1)
		sum.Write(row)
		if !first && bytes.Equal(row, prev) {
			same++
			return
		}
		flush()
		z.literal(ftNone)
		z.data(row)
		copy(prev, row)
		first = false
	}

	fill(row, light)
	for i := 0; i < c.Scale*c.Border; i++ {
		add()
	}
	for y := 0; y < c.Size; y++ {
		c.pbmRow(row, y, light)
		for i := 0; i < c.Scale; i++ {
			add()
		}
	}
	fill(row, light)
	for i := 0; i < c.Scale*c.Border; i++ {
		add()
	}
	flush()
	z.lit[256] = 1 // end of block

	var w bitWriter

	// zlib header
	var cinfo byte // log2 LZ77 window size minus 8, size >= length+1.
	for n := length >> 8; n != 0; n >>= 1 {
		cinfo++
	}
	w.tmp[0] = cinfo<<4 | 0x08
	w.tmp[1] = 0
	w.tmp[1] += uint8(31 - (uint16(w.tmp[0])<<8+uint16(w.tmp[1]))%31)
	w.buf.Write(w.tmp[0:2])

	// Huffman codes and dynamic header
	sym := buildCodes(make(ctable, nsyms), z.lit[:], 15)
	dist := buildCodes(make(ctable, ndcodes), z.dist[:], 15)
	lens := make([]code, 0, len(sym)+len(dist))
	codes := lenCodes(append(append(lens, sym...), dist...))
	var hf [nhcodes]int
	for _, v := range codes {
		hf[v.cmd]++
	}
	ht := buildCodes(make(ctable, nhcodes), hf[:], 7)
	var clens uint64 // ordered header code length code lengths
	clenlen := 4     // length of clens in 3 bit units
	for o, s := range hcorder {
		if int(s) < len(ht) && ht[s].nbit != 0 {
			clens |= uint64(ht[s].nbit) << (o * 3)
			clenlen = max(clenlen, o+1)
		}
	}

	w.writeBits(1, 1) // final block
	w.writeBits(2, 2) // compressed, dynamic Huffman tables
	w.writeBits(uint64(len(sym)-257), 5)
	w.writeBits(uint64(len(dist)-1), 5)
	w.writeBits(uint64(clenlen-4), 4)
	w.writeBits(clens, byte(clenlen*3))
	for _, v := range codes {
		w.code(ht.codex(v.cmd, v.arg))
	}

	// Data
	for _, t := range z.toks {
		if t.len == 0 {
			w.code(sym.code(t.dist))
			continue
		}
		w.xcode(sym.xcodex(lcode(int(t.len))))
		w.xcode(dist.xcodex(dcode(int(t.dist))))
	}

	// End of block.
	w.code(sym.code(256))
	w.flushBits()

	// adler32
	binary.BigEndian.PutUint32(w.tmp[0:], sum.Sum32())
	w.buf.Write(w.tmp[0:4])
	return w.buf.Bytes()
}

// lcode returns the length code and extra bits for rlen.
func lcode(rlen int) (uint16, code) {
	/*
	        Extra               Extra               Extra
	   Code Bits Length(s) Code Bits Lengths   Code Bits Length(s)
	   ---- ---- ------     ---- ---- -------   ---- ---- -------
	    257   0     3       267   1   15,16     277   4   67-82
	    258   0     4       268   1   17,18     278   4   83-98
	    259   0     5       269   2   19-22     279   4   99-114
	    260   0     6       270   2   23-26     280   4  115-130
	    261   0     7       271   2   27-30     281   5  131-162
	    262   0     8       272   2   31-34     282   5  163-194
	    263   0     9       273   3   35-42     283   5  195-226
	    264   0    10       274   3   43-50     284   5  227-257
	    265   1  11,12      275   3   51-58     285   0    258
	    266   1  13,14      276   3   59-66
	*/
	if rlen -= 3; rlen == 0xff {
		return 285, code{}
	} else if rlen&^0xff != 0 {
		panic("qr: invalid repeat length")
	}
	r := uint16(rlen)
	var n uint16
	for 8<<n <= r {
		n++
	}
	// r>>n is [0,7] if n=0, otherwise [4,7].
	return 257 + n<<2 + r>>n, code{r & (1<<n - 1), byte(n)}
}

// dcode returns the distance code and extra bits for dist.
func dcode(dist int) (uint16, code) {
	/*
	        Extra           Extra               Extra
	   Code Bits Dist  Code Bits   Dist     Code Bits Distance
	   ---- ---- ----  ---- ----  ------    ---- ---- --------
	     0   0    1     10   4     33-48    20    9   1025-1536
	     1   0    2     11   4     49-64    21    9   1537-2048
	     2   0    3     12   5     65-96    22   10   2049-3072
	     3   0    4     13   5     97-128   23   10   3073-4096
	     4   1   5,6    14   6    129-192   24   11   4097-6144
	     5   1   7,8    15   6    193-256   25   11   6145-8192
	     6   2   9-12   16   7    257-384   26   12  8193-12288
	     7   2  13-16   17   7    385-512   27   12 12289-16384
	     8   3  17-24   18   8    513-768   28   13 16385-24576
	     9   3  25-32   19   8   769-1024   29   13 24577-32768
	*/
	if dist--; dist&^0x7fff != 0 {
		panic("qr: invalid repeat distance")
	}
	d := uint16(dist)
	var n uint16
	for 4<<n <= d {
		n++
	}
	// d>>n is [0,3] if n=0, otherwise [2,3].
	return n<<1 + d>>n, code{d & (1<<n - 1), byte(n)}
}

// A bitWriter is a write buffer for bit-oriented data like deflate.
type bitWriter struct {
	buf  bytes.Buffer
	tmp  [15]byte
	nbit byte
	bit  uint64
}

func (w *bitWriter) flushBits() {
	if n := w.nbit; n > 0 {
		binary.LittleEndian.PutUint64(w.tmp[:], w.bit)
		w.buf.Write(w.tmp[:(n+7)/8])
		w.bit, w.nbit = 0, 0
	}
}

func (w *bitWriter) writeBits(bit uint64, nbit byte) {
	n := w.nbit
	b := w.bit | bit<<n
	n += nbit
	if n >= 64 {
		binary.LittleEndian.PutUint64(w.tmp[:], b)
		w.buf.Write(w.tmp[:8])
		n -= 64
		b = bit >> (nbit - n)
	}
	w.bit, w.nbit = b, n
}

func (w *bitWriter) code(c code)   { w.writeBits(uint64(c.bit), c.nbit) }
func (w *bitWriter) xcode(c xcode) { w.writeBits(c.bit, c.nbit) }

// adigest is an Adler-32 digest accepting runs of a byte.
type adigest struct {
	a, b uint32
}

func (d *adigest) Reset() { d.a, d.b = 1, 0 }

const amod = 65521

func aupdate(a, b uint32, pi byte, n int) (aa, bb uint32) {
	// invariant: a, b < amod
	if pi == 0 {
		b += uint32(n%amod) * a
		b = b % amod
		return a, b
	}

	// n times:
	//	a += pi
	//	b += a
	// is same as
	//	b += n*a + n*(n+1)/2*pi
	//	a += n*pi
	m := uint64(n)
	b += uint32(m%amod) * a
	b = b % amod
	b += uint32(m*(m+1)/2%amod) * uint32(pi)
	b = b % amod
	a += uint32(m%amod) * uint32(pi)
	a = a % amod
	return a, b
}

func (d *adigest) Write(p []byte) {
	for _, pi := range p {
		d.a, d.b = aupdate(d.a, d.b, pi, 1)
	}
}

func (d *adigest) WriteNByte(pi byte, n int) {
	d.a, d.b = aupdate(d.a, d.b, pi, n)
}

func (d *adigest) Sum32() uint32 { return d.b<<16 | d.a }
