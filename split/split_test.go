// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package split

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unixdj/qrkit/coding"
)

func seg(text string, mode coding.Mode) coding.Segment {
	return coding.Segment{Text: text, Mode: mode}
}

func mustSelect(t *testing.T, text string, opt Options, l coding.Level) ([]coding.Segment, coding.Version, coding.Level) {
	t.Helper()
	s, err := Analyze(text, opt)
	require.NoError(t, err)
	segs, v, l, err := Select(s, l, 0, false)
	require.NoError(t, err)
	return segs, v, l
}

func TestSplit(t *testing.T) {
	for _, tc := range []struct {
		text string
		opt  Options
		want []coding.Segment
		bits int
	}{
		{"HELLO WORLD", Options{},
			[]coding.Segment{seg("HELLO WORLD", coding.Alphanumeric)}, 74},
		{"01234567", Options{},
			[]coding.Segment{seg("01234567", coding.Numeric)}, 41},
		{"0123456789ABCdef", Options{},
			[]coding.Segment{
				seg("0123456789", coding.Numeric),
				seg("ABCdef", coding.Byte),
			}, 108},
		{"a123456b", Options{},
			[]coding.Segment{
				seg("a", coding.Byte),
				seg("123456", coding.Numeric),
				seg("b", coding.Byte),
			}, 74},
		{"a123456b", Options{MinRun: 7},
			[]coding.Segment{seg("a123456b", coding.Byte)}, 76},
		{"123456", Options{MinRun: 7},
			[]coding.Segment{seg("123456", coding.Numeric)}, 34},
		{"日本語", Options{},
			[]coding.Segment{seg("日本語", coding.Kanji)}, 51},
		{"日本語", Options{NoKanji: true},
			[]coding.Segment{seg("日本語", coding.Byte)}, 84},
		{"Grüße", Options{Charset: ISO8859_1},
			[]coding.Segment{seg("Grüße", coding.Latin1)}, 52},
		{"😀", Options{},
			[]coding.Segment{seg("😀", coding.Byte)}, 44},
		{"\xff\xfe", Options{},
			[]coding.Segment{seg("\xff\xfe", coding.Byte)}, 28},
		{"hi", Options{ECI: true},
			[]coding.Segment{seg("\x1a", coding.ECI), seg("hi", coding.Byte)},
			12 + 28},
		{"123", Options{Mode: coding.Alphanumeric},
			[]coding.Segment{seg("123", coding.Alphanumeric)}, 30},
		{"Grüße", Options{Charset: ISO8859_1, ECI: true, Mode: coding.Byte},
			[]coding.Segment{seg("\x03", coding.ECI), seg("Grüße", coding.Latin1)},
			12 + 52},
		{"Grüße", Options{ECI: true, Mode: coding.Latin1},
			[]coding.Segment{seg("\x03", coding.ECI), seg("Grüße", coding.Latin1)},
			12 + 52},
	} {
		s, err := Analyze(tc.text, tc.opt)
		require.NoError(t, err, tc.text)
		segs, bits := s.Split(coding.Class0)
		assert.Equal(t, tc.want, segs, "%q %+v", tc.text, tc.opt)
		assert.Equal(t, tc.bits, bits, "%q %+v", tc.text, tc.opt)

		// the reported length is the encoded length
		var b coding.Bits
		for _, sg := range segs {
			require.NoError(t, sg.Encode(&b, coding.Class0))
		}
		assert.Equal(t, bits, b.Bits(), "%q", tc.text)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	var ie *coding.InvalidInputError
	for _, tc := range []struct {
		text string
		opt  Options
	}{
		{"", Options{}},
		{"😀", Options{Charset: ISO8859_1}},
		{"\xff", Options{Charset: ISO8859_1}},
		{"12a", Options{Mode: coding.Numeric}},
		{"abc", Options{Mode: coding.Alphanumeric}},
		{"abc", Options{Mode: coding.ECI}},
		{"日本", Options{Charset: ISO8859_1, Mode: coding.Byte}},
	} {
		_, err := Analyze(tc.text, tc.opt)
		assert.ErrorAs(t, err, &ie, "%q %+v", tc.text, tc.opt)
	}
	_, err := Analyze("x", Options{Charset: 7})
	assert.ErrorIs(t, err, ErrCharset)
}

func TestEmpty(t *testing.T) {
	s, err := Analyze("", Options{AllowEmpty: true})
	require.NoError(t, err)
	segs, v, l, err := Select(s, coding.Q, 0, false)
	require.NoError(t, err)
	assert.Empty(t, segs)
	assert.Equal(t, coding.Version(1), v)
	assert.Equal(t, coding.Q, l)
}

func TestSelect(t *testing.T) {
	_, v, l := mustSelect(t, "HELLO WORLD", Options{}, coding.M)
	assert.Equal(t, coding.Version(1), v)
	assert.Equal(t, coding.M, l)

	_, v, l = mustSelect(t, "A", Options{}, coding.L)
	assert.Equal(t, coding.Version(1), v)
	assert.Equal(t, coding.L, l)

	// 300 bytes need the larger count field of versions 10 to 26
	segs, v, _ := mustSelect(t, strings.Repeat("a", 300), Options{}, coding.L)
	assert.Equal(t, coding.Version(11), v)
	assert.Len(t, segs, 1)

	segs, v, _ = mustSelect(t, strings.Repeat("9", 7089), Options{}, coding.L)
	assert.Equal(t, coding.MaxVersion, v)
	assert.Equal(t, []coding.Segment{seg(strings.Repeat("9", 7089), coding.Numeric)}, segs)
}

func TestSelectMinVersionAndBoost(t *testing.T) {
	s, err := Analyze("A", Options{})
	require.NoError(t, err)

	_, v, l, err := Select(s, coding.L, 5, false)
	require.NoError(t, err)
	assert.Equal(t, coding.Version(5), v)
	assert.Equal(t, coding.L, l)

	_, v, l, err = Select(s, coding.L, 0, true)
	require.NoError(t, err)
	assert.Equal(t, coding.Version(1), v)
	assert.Equal(t, coding.H, l)

	// 128 bits fill 1-M exactly
	s, err = Analyze(strings.Repeat("7", 34), Options{})
	require.NoError(t, err)
	_, v, l, err = Select(s, coding.L, 0, true)
	require.NoError(t, err)
	assert.Equal(t, coding.Version(1), v)
	assert.Equal(t, coding.M, l)

	_, _, _, err = Select(s, coding.H+1, 0, false)
	assert.ErrorIs(t, err, coding.ErrLevel)
	_, _, _, err = Select(s, coding.L, 41, false)
	assert.ErrorIs(t, err, coding.ErrVersion)
}

func TestCapacityExceeded(t *testing.T) {
	var ce *coding.CapacityExceededError

	s, err := Analyze(strings.Repeat("9", 7090), Options{})
	require.NoError(t, err)
	_, _, _, err = Select(s, coding.L, 0, false)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, coding.MaxVersion, ce.Version)
	assert.Equal(t, coding.L, ce.Level)
	assert.Greater(t, ce.Bits, ce.Capacity)

	rnd := rand.New(rand.NewSource(1))
	b := make([]byte, 3000)
	rnd.Read(b)
	s, err = Analyze(string(b), Options{})
	require.NoError(t, err)
	_, _, _, err = Select(s, coding.H, 0, false)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, coding.H, ce.Level)
}

func TestCharsetText(t *testing.T) {
	for in, want := range map[string]Charset{
		"UTF-8": UTF8, "utf8": UTF8, "latin1": ISO8859_1, "ISO-8859-1": ISO8859_1,
	} {
		var c Charset
		require.NoError(t, c.UnmarshalText([]byte(in)))
		assert.Equal(t, want, c, in)
	}
	var c Charset
	assert.ErrorIs(t, c.UnmarshalText([]byte("ebcdic")), ErrCharset)
	assert.Equal(t, 3, ISO8859_1.ECI())
	assert.Equal(t, 26, UTF8.ECI())
}
