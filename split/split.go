// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package split splits text into QR code segments and selects the
smallest QR code version holding them.
*/
package split // import "github.com/unixdj/qrkit/split"

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/unixdj/qrkit/coding"
)

// ErrCharset is returned for an unknown Charset.
var ErrCharset = errors.New("qr: invalid charset")

// A Charset selects the encoding of byte mode segments.
type Charset int

const (
	UTF8      Charset = iota // byte mode segments hold UTF-8
	ISO8859_1                // byte mode segments hold ISO 8859-1
)

var charsetNames = [...]string{"utf-8", "iso-8859-1"}

func (c Charset) String() string {
	if c == UTF8 || c == ISO8859_1 {
		return charsetNames[c]
	}
	return fmt.Sprintf("charset(%d)", int(c))
}

// ECI returns the Extended Channel Interpretation assignment number
// of c.
func (c Charset) ECI() int {
	if c == ISO8859_1 {
		return coding.Latin1ECI
	}
	return coding.UTF8ECI
}

// MarshalText implements encoding.TextMarshaler.
func (c Charset) MarshalText() ([]byte, error) {
	if c != UTF8 && c != ISO8859_1 {
		return nil, ErrCharset
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.  Besides the
// names returned by String it accepts utf8, latin1 and latin-1.
func (c *Charset) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "utf-8", "utf8":
		*c = UTF8
	case "iso-8859-1", "iso8859-1", "latin1", "latin-1":
		*c = ISO8859_1
	default:
		return fmt.Errorf("%w %q", ErrCharset, b)
	}
	return nil
}

// Options control Analyze.
type Options struct {
	Charset    Charset     // encoding of byte mode segments
	NoKanji    bool        // never use kanji mode
	Mode       coding.Mode // if set, encode the whole text in Mode
	MinRun     int         // shortest digit or alphanumeric run worth a mode switch
	ECI        bool        // prepend an ECI segment naming Charset
	AllowEmpty bool        // accept empty text
}

// slot bits: modes in which a rune is encodable.
const (
	numBit   = 1 << iota // numeric
	alphaBit             // alphanumeric
	byteBit              // byte or latin-1
	kanjiBit             // kanji
)

const nslot = 4 // number of mode slots

// span describes a run of runes encodable in the same modes.
type span struct {
	len  int  // length in bytes
	rlen int  // length in runes
	set  byte // slot bits
}

// A Splitter holds analyzed text.  Split returns an optimal split of
// the text for a version size class.
type Splitter struct {
	text   string
	header coding.Segment     // ECI segment, if any
	modes  [nslot]coding.Mode // mode per slot
	spans  []span
}

// Analyze classifies the runes of text by the modes they are
// encodable in.  It returns an InvalidInputError if text is empty
// and opt.AllowEmpty is false, or if text is not encodable.
func Analyze(text string, opt Options) (*Splitter, error) {
	if opt.Charset != UTF8 && opt.Charset != ISO8859_1 {
		return nil, ErrCharset
	}
	s := &Splitter{
		text: text,
		modes: [nslot]coding.Mode{
			coding.Numeric, coding.Alphanumeric, coding.Byte, coding.Kanji,
		},
	}
	if opt.Charset == ISO8859_1 {
		s.modes[2] = coding.Latin1
	}
	// forced byte modes follow the charset, and the ECI header
	// follows the forced mode
	charset := opt.Charset
	switch {
	case opt.Mode == coding.Byte && charset == ISO8859_1:
		opt.Mode = coding.Latin1
	case opt.Mode == coding.Latin1:
		charset = ISO8859_1
	}
	if opt.ECI {
		seg, err := coding.ECIDesignator(charset.ECI())
		if err != nil {
			return nil, err
		}
		s.header = seg
	}
	if text == "" {
		if !opt.AllowEmpty {
			return nil, coding.NewInvalidInputError("", 0, "empty text")
		}
		return s, nil
	}

	switch opt.Mode {
	case 0:
	case coding.Numeric, coding.Alphanumeric, coding.Byte,
		coding.Kanji, coding.Latin1:
		seg := coding.Segment{Text: text, Mode: opt.Mode}
		if !seg.IsValid() {
			return nil, coding.NewInvalidInputError(text, opt.Mode, "")
		}
		// one span, encodable only in the forced mode
		s.modes[0] = opt.Mode
		s.spans = []span{{len(text), utf8.RuneCountInString(text), numBit}}
		return s, nil
	default:
		return nil, coding.NewInvalidInputError(text, opt.Mode,
			"not a text mode")
	}

	runes, err := s.classify(opt)
	if err != nil {
		return nil, err
	}
	if opt.MinRun > 1 {
		narrow(runes, numBit, numBit, opt.MinRun)
		narrow(runes, alphaBit, alphaBit|numBit, opt.MinRun)
	}
	for _, r := range runes {
		if n := len(s.spans) - 1; n >= 0 && s.spans[n].set == r.set {
			s.spans[n].len += r.size
			s.spans[n].rlen++
		} else {
			s.spans = append(s.spans, span{r.size, 1, r.set})
		}
	}
	return s, nil
}

// runeInfo is the width and slot bits of a rune.
type runeInfo struct {
	size int
	set  byte
}

// classify returns the slot bits of each rune in s.text.
func (s *Splitter) classify(opt Options) ([]runeInfo, error) {
	runes := make([]runeInfo, 0, len(s.text))
	for i, sz := 0, 0; i < len(s.text); i += sz {
		var r rune
		r, sz = utf8.DecodeRuneInString(s.text[i:])
		var set byte
		switch {
		case coding.IsDigit(r):
			set = numBit | alphaBit | byteBit
		case coding.IsAlphanumeric(r):
			set = alphaBit | byteBit
		case r == utf8.RuneError && sz == 1:
			// invalid UTF-8 goes to byte mode as is
			if opt.Charset == UTF8 {
				set = byteBit
			}
		default:
			if !opt.NoKanji && coding.IsKanji(r) {
				set = kanjiBit
			}
			if opt.Charset == UTF8 || r < 0x100 {
				set |= byteBit
			}
		}
		if set == 0 {
			return nil, coding.NewInvalidInputError(s.text[i:i+sz],
				s.modes[2], "not encodable")
		}
		runes = append(runes, runeInfo{sz, set})
	}
	return runes, nil
}

// narrow clears the drop bits on runs of runes with bit set that are
// shorter than n runes, unless the run is the whole text.
func narrow(runes []runeInfo, bit, drop byte, n int) {
	for i := 0; i < len(runes); {
		if runes[i].set&bit == 0 {
			i++
			continue
		}
		j := i
		for j < len(runes) && runes[j].set&bit != 0 {
			j++
		}
		if j-i < n && (i != 0 || j != len(runes)) {
			for k := i; k < j; k++ {
				runes[k].set &^= drop
			}
		}
		i = j
	}
}

const inf = 1 << 30 // excessive encoded length

// node is a segment in an optimal split from a span to the end.
type node struct {
	slot int   // mode slot
	len  int   // length in bytes
	rlen int   // length in runes
	bits int   // encoded length of this and following segments
	next *node // next segment
}

func (s *Splitter) length(n *node, class int) int {
	return s.modes[n.slot].Length(n.len, n.rlen, class)
}

/*
Split returns an optimal split of the text into segments for the
given QR version size class, preceded by the ECI segment if
requested, and its encoded length in bits.

The spans are walked backwards.  For each span n and each mode m in
which it is encodable, a node (n,m) holds the best split of the text
from span n to the end starting in mode m: of the candidates linking
span n in mode m to (n+1,mm) for each mode mm of span n+1, merged
into one segment when m=mm, the shortest is kept.  The shortest of
the nodes for span 0 describes the split of the whole text.
*/
func (s *Splitter) Split(class int) ([]coding.Segment, int) {
	var segs []coding.Segment
	bits := 0
	if s.header.Mode != 0 {
		segs = append(segs, s.header)
		bits += s.header.EncodedLength(class)
	}
	if len(s.spans) == 0 {
		return segs, bits
	}

	nodes := make([][nslot]node, len(s.spans))
	var next *[nslot]node
	for i := len(s.spans) - 1; i >= 0; i-- {
		sp := &s.spans[i]
		for slot := range nodes[i] {
			nd := &nodes[i][slot]
			nd.bits = inf
			if sp.set&(1<<slot) == 0 {
				continue
			}
			if next == nil {
				*nd = node{slot: slot, len: sp.len, rlen: sp.rlen}
				nd.bits = s.length(nd, class)
				continue
			}
			for ns := range next {
				nn := &next[ns]
				if nn.bits >= inf {
					continue
				}
				c := node{slot: slot, len: sp.len, rlen: sp.rlen, next: nn}
				if ns == slot {
					c.len += nn.len
					c.rlen += nn.rlen
					c.next = nn.next
				}
				c.bits = s.length(&c, class)
				if c.next != nil {
					c.bits += c.next.bits
				}
				if c.bits < nd.bits || c.bits == nd.bits && ns == slot {
					*nd = c
				}
			}
		}
		next = &nodes[i]
	}

	best := &nodes[0][0]
	for slot := range nodes[0] {
		if nodes[0][slot].bits < best.bits {
			best = &nodes[0][slot]
		}
	}
	if best.bits >= inf {
		panic("qr: internal error")
	}
	bits += best.bits
	text := s.text
	for n := best; n != nil; n = n.next {
		segs = append(segs, coding.Segment{
			Text: text[:n.len],
			Mode: s.modes[n.slot],
		})
		text = text[n.len:]
	}
	return segs, bits
}

var sizeClass = [3]struct{ min, max coding.Version }{
	{1, 9}, {10, 26}, {27, 40},
}

// Select returns segments for s and the smallest version not below
// minVersion able to hold them at level l.  A minVersion of 0 means
// version 1.  If boost is set, the level is raised as long as the
// data still fits in the chosen version.  Select returns a
// CapacityExceededError if the data does not fit into version 40.
func Select(s *Splitter, l coding.Level, minVersion coding.Version, boost bool) ([]coding.Segment, coding.Version, coding.Level, error) {
	if l < coding.L || l > coding.H {
		return nil, 0, l, coding.ErrLevel
	}
	if minVersion == 0 {
		minVersion = coding.MinVersion
	}
	if minVersion < coding.MinVersion || minVersion > coding.MaxVersion {
		return nil, 0, l, coding.ErrVersion
	}

	// The count field length changes with the size class,
	// so resplit for each.
	var bits int
	for class := minVersion.SizeClass(); class < len(sizeClass); class++ {
		var segs []coding.Segment
		segs, bits = s.Split(class)
		v, hi := max(minVersion, sizeClass[class].min), sizeClass[class].max
		if hi.DataBits(l) < bits {
			continue
		}
		for v < hi {
			if mid := (v + hi) / 2; mid.DataBits(l) < bits {
				v = mid + 1
			} else {
				hi = mid
			}
		}
		if boost {
			for b := l + 1; b <= coding.H; b++ {
				if v.DataBits(b) >= bits {
					l = b
				}
			}
		}
		return segs, v, l, nil
	}
	return nil, 0, l, &coding.CapacityExceededError{
		Bits:     bits,
		Capacity: coding.MaxVersion.DataBits(l),
		Version:  coding.MaxVersion,
		Level:    l,
	}
}
