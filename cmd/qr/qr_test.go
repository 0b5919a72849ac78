// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qr "github.com/unixdj/qrkit"
)

func code(t *testing.T) *qr.Code {
	t.Helper()
	c, err := qr.Encode("HELLO WORLD", qr.M)
	require.NoError(t, err)
	return c
}

func withRandr(cx int, inc [2]int, c *qr.Code) *qr.Code {
	saved := g.cx
	savedInc := g.inc
	defer func() { g.cx, g.inc = saved, savedInc }()
	g.cx, g.inc = cx, inc
	return randr(c)
}

func TestRandr(t *testing.T) {
	orig := code(t)
	n := orig.Size - 1

	c := withRandr(0, [2]int{1, 1}, code(t))
	assert.Equal(t, orig.Bitmap, c.Bitmap)

	g.cx, g.inc = 0, [2]int{1, 1}
	flip()
	c = withRandr(g.cx, g.inc, code(t))
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			require.Equal(t, orig.Black(n-x, y), c.Black(x, y), "flip (%d,%d)", x, y)
		}
	}

	g.cx, g.inc = 0, [2]int{1, 1}
	rotate()
	c = withRandr(g.cx, g.inc, code(t))
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			require.Equal(t, orig.Black(n-y, x), c.Black(x, y), "rotate (%d,%d)", x, y)
		}
	}

	// four rotations and two flips are the identity
	g.cx, g.inc = 0, [2]int{1, 1}
	rotate()
	flip()
	rotate()
	rotate()
	flip()
	rotate()
	assert.Equal(t, 0, g.cx)
	assert.Equal(t, [2]int{1, 1}, g.inc)
	g.cx, g.inc = 0, [2]int{1, 1}
}
