// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coding

import (
	"errors"
	"fmt"
)

var (
	ErrLevel   = errors.New("qr: invalid level")
	ErrVersion = errors.New("qr: invalid version")
)

// InvalidInputError reports text that cannot be encoded: empty text
// where a payload is required, or characters not encodable in Mode.
type InvalidInputError struct {
	Text   string // offending text, possibly truncated
	Mode   Mode   // mode the text was checked against, or 0
	Reason string // optional explanation
}

func (e *InvalidInputError) Error() string {
	switch {
	case e.Reason != "" && e.Mode != 0:
		return fmt.Sprintf("qr: %s string %#q: %s", e.Mode, e.Text, e.Reason)
	case e.Reason != "":
		return fmt.Sprintf("qr: invalid input %#q: %s", e.Text, e.Reason)
	}
	return fmt.Sprintf("qr: non-%s string %#q", e.Mode, e.Text)
}

// invalid returns an InvalidInputError for text, truncating long text.
func invalid(text string, mode Mode, reason string) *InvalidInputError {
	const max = 32
	if len(text) > max {
		text = text[:max] + "..."
	}
	return &InvalidInputError{Text: text, Mode: mode, Reason: reason}
}

// NewInvalidInputError returns an InvalidInputError for text, with
// long text truncated.
func NewInvalidInputError(text string, mode Mode, reason string) error {
	return invalid(text, mode, reason)
}

// CapacityExceededError reports data that does not fit into a QR code
// of the given version and level.
type CapacityExceededError struct {
	Bits     int     // encoded data length
	Capacity int     // data capacity of Version at Level
	Version  Version // largest version tried
	Level    Level
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("qr: cannot encode %d bits into %d-bit code %v-%v",
		e.Bits, e.Capacity, e.Version, e.Level)
}

// EncodingTableError reports a version and level combination without
// a consistent entry in the encoding tables.  It indicates a defect in
// the tables, never bad input.
type EncodingTableError struct {
	Version Version
	Level   Level
}

func (e *EncodingTableError) Error() string {
	return fmt.Sprintf("qr: no encoding table entry for %v-%v",
		e.Version, e.Level)
}

// lookup returns the table entries for v and l.
func lookup(v Version, l Level) (*version, level, error) {
	if v < MinVersion || v > MaxVersion {
		return nil, level{}, ErrVersion
	}
	if l < L || l > H {
		return nil, level{}, ErrLevel
	}
	vt := &vtab[v]
	lev := vt.level[l]
	if lev.nblock <= 0 || lev.check <= 0 ||
		lev.nblock*lev.check != capacity[v].ec[l] ||
		vt.bytes-lev.nblock*lev.check < lev.nblock ||
		vt.bytes != rawModules(v)/8 {
		return nil, level{}, &EncodingTableError{v, l}
	}
	return vt, lev, nil
}
