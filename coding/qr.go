// Copyright 2011 The Go Authors.  All rights reserved.
// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package coding implements low-level QR coding details.
package coding // import "github.com/unixdj/qrkit/coding"

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/unixdj/qrkit/gf256"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
)

// Field is the field for QR error correction.
var Field = gf256.NewField(0x11d, 2)

// QuietZone is the recommended width in modules of the light border
// around a QR code.
const QuietZone = 4

// A Version represents a QR version.
// The version specifies the size of the QR code:
// a QR code with version v has 4v+17 pixels on a side.
// Versions range from 1 to 40: the larger the version,
// the more information the code can store.
type Version int

const (
	MinVersion Version = 1  // Minimum QR version
	MaxVersion Version = 40 // Maximum QR version
)

func (v Version) String() string { return strconv.Itoa(int(v)) }

// Size returns the number of modules on a side of a QR code of
// version v.
func (v Version) Size() int { return int(v)*4 + 17 }

// QR version size classes.  The length of the character count field
// of a segment depends on the size class.
const (
	Class0 = iota // QR versions 1 to 9
	Class1        // QR versions 10 to 26
	Class2        // QR versions 27 to 40
)

// SizeClass returns the size class of v, as documented under Class0.
func (v Version) SizeClass() int {
	switch {
	case v <= 9:
		return Class0
	case v <= 26:
		return Class1
	}
	return Class2
}

// dataBytes returns the number of data bytes that can be
// stored in a QR code with the given version and level.
func (v Version) dataBytes(l Level) int {
	vt := &vtab[v]
	lev := vt.level[l]
	return vt.bytes - lev.nblock*lev.check
}

// DataBits returns the number of data bits that can be
// stored in a QR code with the given version and level,
// or 0 if either is invalid.
func (v Version) DataBits(l Level) int {
	if v < MinVersion || v > MaxVersion || l < L || l > H {
		return 0
	}
	return v.dataBytes(l) * 8
}

// A Level represents a QR error correction level.
// From least to most tolerant of errors, they are L, M, Q, H.
type Level int

const (
	L Level = iota // 20% redundant
	M              // 38% redundant
	Q              // 55% redundant
	H              // 65% redundant
)

var levelNames = [...]string{"low", "medium", "quartile", "high"}

func (l Level) String() string {
	if L <= l && l <= H {
		return "LMQH"[l : l+1]
	}
	return strconv.Itoa(int(l))
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if l < L || l > H {
		return nil, ErrLevel
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.  It accepts the
// letters L, M, Q and H and the words low, medium, quartile and high
// in any case.
func (l *Level) UnmarshalText(b []byte) error {
	s := strings.ToLower(string(b))
	for i, name := range levelNames {
		if s == name || s == name[:1] {
			*l = Level(i)
			return nil
		}
	}
	return fmt.Errorf("%w %q", ErrLevel, b)
}

// Bits is a buffer of bits, most significant bit first.
type Bits struct {
	b    []byte
	nbit int
}

func (b *Bits) Reset() {
	b.b = b.b[:0]
	b.nbit = 0
}

// Bits returns the number of bits written to b.
func (b *Bits) Bits() int { return b.nbit }

// Bytes returns the content of b.  Bytes panics unless b holds a
// whole number of bytes.
func (b *Bits) Bytes() []byte {
	if b.nbit%8 != 0 {
		panic("qr: fractional byte")
	}
	return b.b
}

// Write appends the nbit low bits of v to b.
func (b *Bits) Write(v uint32, nbit int) {
	for nbit > 0 {
		if b.nbit&7 == 0 {
			b.b = append(b.b, 0)
		}
		free := 8 - b.nbit&7
		n := min(free, nbit)
		chunk := byte(v>>(nbit-n)) & (0xff >> (8 - n))
		b.b[len(b.b)-1] |= chunk << (free - n)
		b.nbit += n
		nbit -= n
	}
}

// truncate shortens b to n bits.
func (b *Bits) truncate(n int) {
	b.b = b.b[:(n+7)>>3]
	if n&7 != 0 {
		b.b[len(b.b)-1] &^= 0xff >> (n & 7)
	}
	b.nbit = n
}

// Pad adds up to 4 terminator bits to b, zero bits to the byte
// boundary and alternating pad codewords up to n bits, which must be
// a multiple of 8.
func (b *Bits) Pad(n int) {
	if b.nbit > n || n&7 != 0 {
		panic("qr: too much data")
	}
	b.Write(0, min(4, n-b.nbit))
	b.Write(0, -b.nbit&7)
	for pad := uint32(0xec); b.nbit < n; pad ^= 0xec ^ 0x11 {
		b.Write(pad, 8)
	}
}

// Encoding modes.
const (
	Numeric       Mode = iota + 1 // numeric mode, ASCII-compatible text
	Alphanumeric                  // alphanumeric mode, ASCII-compatible text
	Byte                          // byte mode, any data
	Kanji                         // kanji mode, UTF-8 text
	Latin1                        // byte mode, UTF-8 text encoded as ISO 8859-1
	ShiftJISKanji                 // kanji mode, Shift JIS text
	ECI                           // eci mode, raw designator
)

// A Mode is a QR segment encoder.  The zero Mode is invalid.
type Mode int

// ModeEncoder implements a QR segment encoding.
//
// Text modes other than Numeric, Alphanumeric, Byte and ShiftJISKanji
// have a Transform function returning a segment of one of those
// modes.  Segment.Encode validates and transforms the segment before
// encoding.
type ModeEncoder struct {
	Name      string // Name for error reporting
	Indicator byte   // 4 bit mode indicator

	// CountLength lists lengths of the character count field in the
	// three QR version size classes.
	CountLength [3]byte

	// EncodedLength returns the encoded data length in bits of a valid
	// string of the given length in bytes and runes.  If nil, each
	// byte is encoded as 8 bits.
	EncodedLength func(bytes, runes int) int

	// Valid reports whether the string is valid for the encoding mode.
	// If nil, the string is validated rune by rune using Accepts.
	Valid func(string) bool

	// Accepts reports whether the encoding mode accepts the rune.
	// If nil, any rune is accepted.
	Accepts func(rune) bool

	// Transform returns a segment of another Mode with the string
	// transformed for encoding and a boolean indicating whether the
	// transform was successful.
	Transform func(string) (Segment, bool)

	// Count returns the character count of the transformed string.
	// If nil, the length of the string in bytes is used.
	Count func(string) int

	// Encode3, Encode2 and Encode1 return the encoding of the bytes
	// and its length in bits.  The encoder calls a non-nil Encode{N}
	// repeatedly as long as N source bytes are available, in
	// descending order of N.  If all are nil, each byte is encoded as
	// 8 bits.
	Encode3 func([3]byte) (uint32, int)
	Encode2 func([2]byte) (uint32, int)
	Encode1 func(byte) (uint32, int)
}

// alphaChars lists the alphanumeric character set in value order.
const alphaChars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ $%*+-./:"

func alphaValue(b byte) uint32 {
	return uint32(strings.IndexByte(alphaChars, b))
}

// IsAlphanumeric reports whether r is in the alphanumeric mode
// character set.
func IsAlphanumeric(r rune) bool {
	return r < 0x80 && strings.IndexByte(alphaChars, byte(r)) >= 0
}

// IsDigit reports whether r is an ASCII digit.
func IsDigit(r rune) bool { return uint32(r-'0') < 10 }

// isKanjiCode reports whether the Shift JIS double byte character
// hi, lo is encodable in kanji mode.
func isKanjiCode(hi, lo byte) bool {
	c := uint16(hi)<<8 | uint16(lo)
	return lo >= 0x40 && lo <= 0xfc && lo != 0x7f &&
		(0x8140 <= c && c <= 0x9ffc || 0xe040 <= c && c <= 0xebbf)
}

// IsKanji reports whether the Unicode rune r belongs to the JIS X 0208
// subset encodable in QR kanji mode.
func IsKanji(r rune) bool {
	if r < 0x80 || r == utf8.RuneError {
		return false
	}
	s, err := japanese.ShiftJIS.NewEncoder().String(string(r))
	return err == nil && len(s) == 2 && isKanjiCode(s[0], s[1])
}

var modes = [...]ModeEncoder{
	Numeric: {
		Name:          "numeric",
		Indicator:     1,
		CountLength:   [3]byte{10, 12, 14},
		EncodedLength: func(b, r int) int { return (10*b + 2) / 3 },
		Accepts:       IsDigit,
		Encode3: func(b [3]byte) (uint32, int) {
			return uint32(b[0]-'0')*100 + uint32(b[1]-'0')*10 +
				uint32(b[2]-'0'), 10
		},
		Encode2: func(b [2]byte) (uint32, int) {
			return uint32(b[0]-'0')*10 + uint32(b[1]-'0'), 7
		},
		Encode1: func(b byte) (uint32, int) {
			return uint32(b - '0'), 4
		},
	},
	Alphanumeric: {
		Name:          "alphanumeric",
		Indicator:     2,
		CountLength:   [3]byte{9, 11, 13},
		EncodedLength: func(b, r int) int { return (11*b + 1) / 2 },
		Accepts:       IsAlphanumeric,
		Encode2: func(b [2]byte) (uint32, int) {
			return alphaValue(b[0])*45 + alphaValue(b[1]), 11
		},
		Encode1: func(b byte) (uint32, int) {
			return alphaValue(b), 6
		},
	},
	Byte: {
		Name:        "byte",
		Indicator:   4,
		CountLength: [3]byte{8, 16, 16},
	},
	Kanji: {
		Name:          "kanji",
		Indicator:     8,
		CountLength:   [3]byte{8, 10, 12},
		EncodedLength: func(b, r int) int { return r * 13 },
		Accepts:       IsKanji,
		Transform: func(s string) (Segment, bool) {
			t, err := japanese.ShiftJIS.NewEncoder().String(s)
			return Segment{t, ShiftJISKanji}, err == nil
		},
	},
	Latin1: {
		Name:          "latin-1",
		Indicator:     4,
		CountLength:   [3]byte{8, 16, 16},
		EncodedLength: func(b, r int) int { return r * 8 },
		Accepts:       func(r rune) bool { return r < 0x100 },
		Transform: func(s string) (Segment, bool) {
			t, err := charmap.ISO8859_1.NewEncoder().String(s)
			return Segment{t, Byte}, err == nil
		},
	},
	ShiftJISKanji: {
		Name:          "shift-jis-kanji",
		Indicator:     8,
		CountLength:   [3]byte{8, 10, 12},
		EncodedLength: func(b, r int) int { return b >> 1 * 13 },
		Count:         func(s string) int { return len(s) >> 1 },
		Valid: func(s string) bool {
			if len(s)&1 != 0 {
				return false
			}
			for i := 0; i < len(s); i += 2 {
				if !isKanjiCode(s[i], s[i+1]) {
					return false
				}
			}
			return true
		},
		Encode2: func(b [2]byte) (uint32, int) {
			c := uint32(b[0])<<8 | uint32(b[1])
			if c <= 0x9ffc {
				c -= 0x8140
			} else {
				c -= 0xc140
			}
			return c>>8*0xc0 + c&0xff, 13
		},
	},
	ECI: {
		Name:      "eci",
		Indicator: 7,
		Valid: func(s string) bool {
			_, ok := eciValue(s)
			return ok
		},
	},
}

func getMode(mode Mode) *ModeEncoder {
	if mode > 0 && int(mode) < len(modes) {
		return &modes[mode]
	}
	return nil
}

func (mode Mode) String() string {
	if m := getMode(mode); m != nil {
		return m.Name
	}
	return strconv.Itoa(int(mode))
}

// GetMode returns a copy of ModeEncoder for the mode, or nil.
func GetMode(mode Mode) *ModeEncoder {
	if m := getMode(mode); m != nil {
		mm := *m
		return &mm
	}
	return nil
}

// ParseMode returns the text Mode with the given name.
// "latin1" is accepted for "latin-1".
func ParseMode(name string) (Mode, error) {
	name = strings.ToLower(name)
	if name == "latin1" {
		return Latin1, nil
	}
	for mode := Numeric; mode < ShiftJISKanji; mode++ {
		if modes[mode].Name == name {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("qr: unknown mode %q", name)
}

// MarshalText implements encoding.TextMarshaler.  Mode 0 is "auto".
func (mode Mode) MarshalText() ([]byte, error) {
	if mode == 0 {
		return []byte("auto"), nil
	}
	if getMode(mode) == nil {
		return nil, fmt.Errorf("qr: invalid mode %d", int(mode))
	}
	return []byte(mode.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for the text
// modes accepted by ParseMode, and "auto" or "" for Mode 0.
func (mode *Mode) UnmarshalText(b []byte) error {
	s := string(b)
	if s == "" || strings.EqualFold(s, "auto") {
		*mode = 0
		return nil
	}
	m, err := ParseMode(s)
	if err != nil {
		return err
	}
	*mode = m
	return nil
}

// Length returns the length in bits of a valid string of the given
// length in bytes and runes encoded in mode at the given QR version
// size class, including the header.  Length returns 0 if and only if
// mode is invalid.
func (mode Mode) Length(bytes, runes, class int) int {
	m := getMode(mode)
	if m == nil {
		return 0
	}
	n := 4 + int(m.CountLength[class])
	if f := m.EncodedLength; f != nil {
		n += f(bytes, runes)
	} else {
		n += bytes * 8
	}
	return n
}

// Is reports whether r is encodable in mode.
func Is(r rune, mode Mode) bool {
	m := getMode(mode)
	return m != nil && (m.Accepts == nil || m.Accepts(r))
}

// eciValue decodes an ECI designator of 1 to 3 bytes.
func eciValue(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 1
	switch {
	case s[0]&0x80 == 0:
	case s[0]&0xc0 == 0x80:
		n = 2
	case s[0]&0xe0 == 0xc0:
		n = 3
	default:
		return 0, false
	}
	if len(s) != n {
		return 0, false
	}
	v := int(s[0]) & (0xff >> n)
	for i := 1; i < n; i++ {
		v = v<<8 | int(s[i])
	}
	return v, v < 1e6
}

// Extended Channel Interpretation assignment numbers.
const (
	Latin1ECI   = 3   // ISO 8859-1
	ShiftJISECI = 20  // Shift JIS
	UTF8ECI     = 26  // UTF-8
	BinaryECI   = 899 // 8-bit binary data
)

// ECIDesignator returns an ECI Mode Segment setting the Extended
// Channel Interpretation assignment number to n.
func ECIDesignator(n int) (Segment, error) {
	var b []byte
	switch {
	case n < 0 || n >= 1e6:
		return Segment{}, invalid(strconv.Itoa(n), ECI,
			"assignment number out of range")
	case n < 1<<7:
		b = []byte{byte(n)}
	case n < 1<<14:
		b = []byte{0x80 | byte(n>>8), byte(n)}
	default:
		b = []byte{0xc0 | byte(n>>16), byte(n >> 8), byte(n)}
	}
	return Segment{string(b), ECI}, nil
}

// A Segment describes a QR code segment.
type Segment struct {
	Text string // data to encode
	Mode Mode   // encoding mode
}

// isValid reports whether seg is encodable by m.
func (m *ModeEncoder) isValid(seg Segment) bool {
	if f := m.Valid; f != nil {
		return f(seg.Text)
	}
	if is := m.Accepts; is != nil {
		if seg.Mode == Numeric || seg.Mode == Alphanumeric {
			for i := 0; i < len(seg.Text); i++ {
				if !is(rune(seg.Text[i])) {
					return false
				}
			}
			return true
		}
		for _, r := range seg.Text {
			if !is(r) {
				return false
			}
		}
	}
	return true
}

// IsValid reports whether seg is encodable.
func (seg Segment) IsValid() bool {
	if m := getMode(seg.Mode); m != nil {
		return m.isValid(seg)
	}
	return false
}

// EncodedLength returns the encoded length in bits of seg in the
// given QR version size class.  EncodedLength returns 0 if and only
// if mode is invalid.  The segment is not validated.
func (seg Segment) EncodedLength(class int) int {
	runes := 0
	if seg.Mode == Kanji || seg.Mode == Latin1 {
		runes = utf8.RuneCountInString(seg.Text)
	}
	return seg.Mode.Length(len(seg.Text), runes, class)
}

// transform validates and transforms seg for encoding.
func (seg Segment) transform() (Segment, *ModeEncoder, error) {
	m := getMode(seg.Mode)
	switch {
	case m == nil:
		return Segment{}, nil, invalid(seg.Text, seg.Mode, "invalid mode")
	case !m.isValid(seg):
		return Segment{}, nil, invalid(seg.Text, seg.Mode, "")
	case m.Transform == nil:
		return seg, m, nil
	}
	ts, ok := m.Transform(seg.Text)
	if !ok {
		return Segment{}, nil, invalid(seg.Text, seg.Mode, "")
	}
	if tm := getMode(ts.Mode); tm != nil && tm.Transform == nil &&
		tm.isValid(ts) {
		return ts, tm, nil
	}
	return Segment{}, nil, invalid(seg.Text, seg.Mode, "")
}

// Transform returns seg transformed for encoding: Kanji segments
// become ShiftJISKanji and Latin1 segments Byte.
func (seg Segment) Transform() (Segment, error) {
	ts, _, err := seg.transform()
	return ts, err
}

// Encode writes seg encoded for the given QR version size class to b.
func (seg Segment) Encode(b *Bits, class int) error {
	ts, m, err := seg.transform()
	if err != nil {
		return err
	}
	s := ts.Text
	w := len(s)
	if m.Count != nil {
		w = m.Count(s)
	}
	cl := int(m.CountLength[class])
	if cl != 0 && w >= 1<<cl {
		return invalid(seg.Text, seg.Mode, "too long for the count field")
	}
	b.Write(uint32(m.Indicator), 4)
	b.Write(uint32(w), cl)
	if m.Encode3 == nil && m.Encode2 == nil && m.Encode1 == nil {
		for i := 0; i < len(s); i++ {
			b.Write(uint32(s[i]), 8)
		}
		return nil
	}
	if enc := m.Encode3; enc != nil {
		for ; len(s) >= 3; s = s[3:] {
			b.Write(enc([3]byte{s[0], s[1], s[2]}))
		}
	}
	if enc := m.Encode2; enc != nil {
		for ; len(s) >= 2; s = s[2:] {
			b.Write(enc([2]byte{s[0], s[1]}))
		}
	}
	if enc := m.Encode1; enc != nil {
		for ; len(s) >= 1; s = s[1:] {
			b.Write(enc(s[0]))
		}
	}
	if s != "" {
		panic("qr: " + m.Name + " mode internal error")
	}
	return nil
}

// A Block is a block of data codewords and its check codewords.
type Block struct {
	Data  []byte
	Check []byte
}

// MakeBlocks splits data codewords for the given version and level
// into blocks and computes their check codewords.  The blocks with
// fewer data codewords come first.
func MakeBlocks(v Version, l Level, data []byte) ([]Block, error) {
	vt, lev, err := lookup(v, l)
	if err != nil {
		return nil, err
	}
	nd := vt.bytes - lev.nblock*lev.check
	if len(data) != nd {
		return nil, fmt.Errorf("qr: %d data codewords for %v-%v, want %d",
			len(data), v, l, nd)
	}
	db := nd / lev.nblock
	short := (db+1)*lev.nblock - nd
	rs := gf256.NewRSEncoder(Field, lev.check)
	check := make([]byte, lev.nblock*lev.check)
	blocks := make([]Block, lev.nblock)
	for i := range blocks {
		if i == short {
			db++
		}
		blk := &blocks[i]
		blk.Data, data = data[:db:db], data[db:]
		blk.Check, check = check[:lev.check:lev.check], check[lev.check:]
		rs.ECC(blk.Data, blk.Check)
	}
	return blocks, nil
}

// Interleave returns the codewords of blocks in transmission order:
// data codewords column by column across blocks, then check codewords
// likewise.
func Interleave(blocks []Block) []byte {
	var n, maxData, maxCheck int
	for _, blk := range blocks {
		n += len(blk.Data) + len(blk.Check)
		maxData = max(maxData, len(blk.Data))
		maxCheck = max(maxCheck, len(blk.Check))
	}
	out := make([]byte, 0, n)
	for i := 0; i < maxData; i++ {
		for _, blk := range blocks {
			if i < len(blk.Data) {
				out = append(out, blk.Data[i])
			}
		}
	}
	for i := 0; i < maxCheck; i++ {
		for _, blk := range blocks {
			if i < len(blk.Check) {
				out = append(out, blk.Check[i])
			}
		}
	}
	return out
}

// A Code is a square pixel grid.
type Code struct {
	Bitmap  []byte  // 1 is black, 0 is white
	Size    int     // number of pixels on a side
	Stride  int     // number of bytes per row
	Version Version // QR code version
	Level   Level   // error correction level
	Mask    int     // mask pattern
}

// Black reports whether the module at column x, row y is dark.
// Modules outside the grid are light.
func (c *Code) Black(x, y int) bool {
	return 0 <= x && x < c.Size && 0 <= y && y < c.Size &&
		c.Bitmap[y*c.Stride+x/8]&(1<<uint(7&^x)) != 0
}

// Penalty weights.
const (
	penaltyN1 = 3  // run of 5 same colour modules, plus 1 per extra
	penaltyN2 = 3  // 2x2 box of same colour modules
	penaltyN3 = 40 // finder-like pattern
	penaltyN4 = 10 // per 5% of imbalance
)

// Penalty returns the penalty value of c used for choosing the mask.
//
// https://www.nayuki.io/page/creating-a-qr-code-step-by-step
func (c *Code) Penalty() int {
	siz := c.Size
	p := 0
	for _, vertical := range [2]bool{false, true} {
		for i := 0; i < siz; i++ {
			var h finderHistory
			var colour bool
			run := 0
			for j := 0; j < siz; j++ {
				dark := c.Black(j, i)
				if vertical {
					dark = c.Black(i, j)
				}
				if dark == colour {
					if run++; run == 5 {
						p += penaltyN1
					} else if run > 5 {
						p++
					}
					continue
				}
				h.add(run, siz)
				if !colour {
					p += h.count() * penaltyN3
				}
				colour, run = dark, 1
			}
			p += h.terminate(colour, run, siz) * penaltyN3
		}
	}

	dark := 0
	for y := 0; y < siz; y++ {
		for x := 0; x < siz; x++ {
			d := c.Black(x, y)
			if d {
				dark++
			}
			if x+1 < siz && y+1 < siz && d == c.Black(x+1, y) &&
				d == c.Black(x, y+1) && d == c.Black(x+1, y+1) {
				p += penaltyN2
			}
		}
	}

	total := siz * siz
	diff := dark*20 - total*10
	if diff < 0 {
		diff = -diff
	}
	k := (diff+total-1)/total - 1
	return p + k*penaltyN4
}

// finderHistory holds the lengths of the last 7 runs, newest first.
type finderHistory [7]int

// add records a run, counting the quiet zone into the first run.
func (h *finderHistory) add(run, siz int) {
	if h[0] == 0 {
		run += siz
	}
	copy(h[1:], h[:6])
	h[0] = run
}

// count returns the number of 1:1:3:1:1 patterns with a 4 module light
// run on either side ending at the newest light run.
func (h *finderHistory) count() int {
	n := h[1]
	core := n > 0 && h[2] == n && h[3] == n*3 && h[4] == n && h[5] == n
	c := 0
	if core && h[0] >= n*4 && h[6] >= n {
		c++
	}
	if core && h[6] >= n*4 && h[0] >= n {
		c++
	}
	return c
}

// terminate records the final run and the quiet zone after it.
func (h *finderHistory) terminate(dark bool, run, siz int) int {
	if dark {
		h.add(run, siz)
		run = 0
	}
	h.add(run+siz, siz)
	return h.count()
}

// A MaskResult is the penalty of a code with the given mask.
type MaskResult struct {
	Mask    int
	Penalty int
}

// A Plan describes how to construct a QR code
// with a specific version and level.
type Plan struct {
	Version Version // QR code version
	Level   Level   // QR error correction Level

	DataBits int // number of data bits
	Size     int // number of pixels on a side
	Stride   int // number of bytes per row

	Map     []byte    // pixel map: 0 is data or checksum, 1 is other
	Pattern [8][]byte // function patterns, format bits and mask
}

// Pre-allocated Plans.  A Plan is created the first time a
// combination of version and level is used.
var plans [MaxVersion + 1][H + 1]struct {
	once sync.Once
	p    *Plan
}

// NewPlan returns the Plan for a QR code with the given version and
// level.  Plans are shared and must not be modified.
func NewPlan(v Version, l Level) (*Plan, error) {
	if _, _, err := lookup(v, l); err != nil {
		return nil, err
	}
	pp := &plans[v][l]
	pp.once.Do(func() { pp.p = vplan(v, l) })
	return pp.p, nil
}

// grid is a packed bitmap helper.
type grid struct {
	b      []byte
	stride int
}

func (g grid) get(x, y int) bool {
	return g.b[y*g.stride+x>>3]&(0x80>>(x&7)) != 0
}

func (g grid) set(x, y int, v bool) {
	bit := byte(0x80) >> (x & 7)
	if v {
		g.b[y*g.stride+x>>3] |= bit
	} else {
		g.b[y*g.stride+x>>3] &^= bit
	}
}

// planner builds a Plan.
type planner struct {
	siz       int
	fun, base grid
}

// function sets a function module.
func (pl *planner) function(x, y int, dark bool) {
	pl.fun.set(x, y, true)
	pl.base.set(x, y, dark)
}

// finder draws a finder pattern and its separator with the upper left
// corner at x, y.
func (pl *planner) finder(x, y int) {
	for dy := -1; dy <= 7; dy++ {
		for dx := -1; dx <= 7; dx++ {
			xx, yy := x+dx, y+dy
			if xx < 0 || xx >= pl.siz || yy < 0 || yy >= pl.siz {
				continue
			}
			d := max(abs(dx-3), abs(dy-3))
			pl.function(xx, yy, d != 2 && d != 4)
		}
	}
}

// alignment draws an alignment pattern centred at x, y.
func (pl *planner) alignment(x, y int) {
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			pl.function(x+dx, y+dy, max(abs(dx), abs(dy)) != 1)
		}
	}
}

// format sets the format bits fb in both copies in dst and reserves
// their modules.
func (pl *planner) format(dst grid, fb uint16) {
	siz := pl.siz
	set := func(x, y, i int) {
		pl.fun.set(x, y, true)
		dst.set(x, y, fb>>i&1 != 0)
	}
	for i := 0; i < 6; i++ {
		set(8, i, i)
	}
	set(8, 7, 6)
	set(8, 8, 7)
	set(7, 8, 8)
	for i := 9; i < 15; i++ {
		set(14-i, 8, i)
	}
	for i := 0; i < 8; i++ {
		set(siz-1-i, 8, i)
	}
	for i := 8; i < 15; i++ {
		set(8, siz-15+i, i)
	}
	pl.function(8, siz-8, true) // dark module
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// vplan creates a Plan for the given version and level.
func vplan(v Version, l Level) *Plan {
	siz := v.Size()
	stride := (siz + 7) >> 3
	n := stride * siz
	p := &Plan{
		Version:  v,
		Level:    l,
		DataBits: v.DataBits(l),
		Size:     siz,
		Stride:   stride,
	}
	bitmap := make([]byte, n*10)
	pl := &planner{
		siz:  siz,
		fun:  grid{bitmap[:n:n], stride},
		base: grid{bitmap[n : 2*n : 2*n], stride},
	}
	bitmap = bitmap[2*n:]

	// Timing patterns, partly overwritten by finder patterns.
	for i := 0; i < siz; i++ {
		pl.function(6, i, i&1 == 0)
		pl.function(i, 6, i&1 == 0)
	}
	pl.finder(0, 0)
	pl.finder(siz-7, 0)
	pl.finder(0, siz-7)

	// Alignment patterns, except where they overlap finders.
	apos := vtab[v].apos
	last := len(apos) - 1
	for i, x := range apos {
		for j, y := range apos {
			if i == 0 && j == 0 || i == 0 && j == last ||
				i == last && j == 0 {
				continue
			}
			pl.alignment(x, y)
		}
	}

	// Version information.
	if vb := vtab[v].pattern; vb != 0 {
		for i := 0; i < 18; i++ {
			a, b, dark := siz-11+i%3, i/3, vb>>i&1 != 0
			pl.function(a, b, dark)
			pl.function(b, a, dark)
		}
	}

	// Reserve the format areas; format bits are set per mask.
	pl.format(pl.base, 0)
	p.Map = pl.fun.b

	// Mask patterns over data modules.
	for mask := range p.Pattern {
		pat := grid{bitmap[:n:n], stride}
		bitmap = bitmap[n:]
		copy(pat.b, pl.base.b)
		pl.format(pat, ftab[l][mask])
		for y := 0; y < siz; y++ {
			for x := 0; x < siz; x++ {
				if !pl.fun.get(x, y) && maskBit(mask, x, y) {
					pat.set(x, y, true)
				}
			}
		}
		p.Pattern[mask] = pat.b
	}
	return p
}

// maskBit reports whether mask inverts the module at column x, row y.
func maskBit(mask, x, y int) bool {
	switch mask {
	case 0:
		return (x+y)%2 == 0
	case 1:
		return y%2 == 0
	case 2:
		return x%3 == 0
	case 3:
		return (x+y)%3 == 0
	case 4:
		return (x/3+y/2)%2 == 0
	case 5:
		return x*y%2+x*y%3 == 0
	case 6:
		return (x*y%2+x*y%3)%2 == 0
	case 7:
		return ((x+y)%2+x*y%3)%2 == 0
	}
	panic("qr: internal error")
}

// Serialise returns a bitmap holding the codewords cw in zigzag scan
// order over the data modules.  Remainder modules stay light.
func (p *Plan) Serialise(cw []byte) []byte {
	siz := p.Size
	fun := grid{p.Map, p.Stride}
	out := grid{make([]byte, len(p.Map)), p.Stride}
	i, n := 0, len(cw)*8
	for right := siz - 1; right >= 1; right -= 2 {
		if right == 6 { // vertical timing pattern
			right = 5
		}
		upward := (right+1)&2 == 0
		for vert := 0; vert < siz; vert++ {
			y := vert
			if upward {
				y = siz - 1 - vert
			}
			for j := 0; j < 2; j++ {
				x := right - j
				if fun.get(x, y) || i >= n {
					continue
				}
				if cw[i>>3]>>(7&^i)&1 != 0 {
					out.set(x, y, true)
				}
				i++
			}
		}
	}
	if i != n {
		panic("qr: internal error")
	}
	return out.b
}

// Apply returns the code with data, as returned by Serialise, and the
// function patterns, format and mask for the given mask.
func (p *Plan) Apply(data []byte, mask int) *Code {
	pat := p.Pattern[mask]
	c := &Code{
		Bitmap:  make([]byte, len(pat)),
		Size:    p.Size,
		Stride:  p.Stride,
		Version: p.Version,
		Level:   p.Level,
		Mask:    mask,
	}
	for i := range pat {
		c.Bitmap[i] = data[i] ^ pat[i]
	}
	return c
}

// Choose applies all masks to data and returns the code with the
// lowest penalty, the lowest mask on ties, with the penalties of all
// masks.
func (p *Plan) Choose(data []byte) (*Code, [8]MaskResult) {
	var res [8]MaskResult
	var best *Code
	for mask := range p.Pattern {
		c := p.Apply(data, mask)
		res[mask] = MaskResult{mask, c.Penalty()}
		if best == nil || res[mask].Penalty < res[best.Mask].Penalty {
			best = c
		}
	}
	return best, res
}

// Encoder encodes a QR code.
type Encoder struct {
	p *Plan
	b Bits
}

// NewEncoder returns an Encoder for the given version and level.
func NewEncoder(v Version, l Level) (*Encoder, error) {
	p, err := NewPlan(v, l)
	if err != nil {
		return nil, err
	}
	return &Encoder{p: p}, nil
}

// Write adds segments to e.  On error e is unchanged.
func (e *Encoder) Write(segs ...Segment) error {
	start := e.b.Bits()
	class := e.p.Version.SizeClass()
	for _, seg := range segs {
		if err := seg.Encode(&e.b, class); err != nil {
			e.b.truncate(start)
			return err
		}
	}
	if n := e.b.Bits(); n > e.p.DataBits {
		e.b.truncate(start)
		return &CapacityExceededError{
			Bits:     n,
			Capacity: e.p.DataBits,
			Version:  e.p.Version,
			Level:    e.p.Level,
		}
	}
	return nil
}

func (e *Encoder) Reset() { e.b.Reset() }

// DataCodewords returns the padded data codewords written to e.
func (e *Encoder) DataCodewords() []byte {
	b := Bits{b: append([]byte(nil), e.b.b...), nbit: e.b.nbit}
	b.Pad(e.p.DataBits)
	return b.Bytes()
}

// Codewords returns data and check codewords in transmission order.
func (e *Encoder) Codewords() ([]byte, error) {
	blocks, err := MakeBlocks(e.p.Version, e.p.Level, e.DataCodewords())
	if err != nil {
		return nil, err
	}
	return Interleave(blocks), nil
}

// Code returns a QR code containing data written to e.
func (e *Encoder) Code() (*Code, error) {
	cw, err := e.Codewords()
	if err != nil {
		return nil, err
	}
	c, _ := e.p.Choose(e.p.Serialise(cw))
	return c, nil
}

// Encode encodes segments in a QR code with the given version and level.
func Encode(v Version, l Level, segs ...Segment) (*Code, error) {
	e, err := NewEncoder(v, l)
	if err != nil {
		return nil, err
	}
	if err := e.Write(segs...); err != nil {
		return nil, err
	}
	return e.Code()
}
