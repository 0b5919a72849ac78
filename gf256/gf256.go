// Copyright 2011 The Go Authors.  All rights reserved.
// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gf256 implements arithmetic over the Galois Field GF(256)
// and a Reed-Solomon encoder over it.
package gf256 // import "github.com/unixdj/qrkit/gf256"

import "strconv"

// A Field represents an instance of GF(256) defined by a specific
// polynomial.
type Field struct {
	log [256]byte // log[0] is unused
	exp [510]byte // exp[i] = α**i, doubled to avoid reducing sums
}

// NewField returns a new field corresponding to the polynomial poly
// and generator α.  The Reed-Solomon encoding in QR codes uses
// polynomial 0x11d with generator 2.
//
// The choice of generator α only matters if multiple Reed-Solomon
// encodings are used with the same field.
func NewField(poly, α int) *Field {
	if poly < 0x100 || poly >= 0x200 || reducible(poly) {
		panic("gf256: invalid polynomial: " + strconv.Itoa(poly))
	}

	var f Field
	x := 1
	for i := 0; i < 255; i++ {
		if x == 1 && i != 0 {
			panic("gf256: invalid generator " + strconv.Itoa(α) +
				" for polynomial " + strconv.Itoa(poly))
		}
		f.exp[i] = byte(x)
		f.exp[i+255] = byte(x)
		f.log[x] = byte(i)
		x = mul(x, α, poly)
	}
	f.log[0] = 255
	return &f
}

// nbit returns the number of significant bits in p.
func nbit(p int) uint {
	n := uint(0)
	for ; p > 0; p >>= 1 {
		n++
	}
	return n
}

// polyDiv divides the polynomial p by q and returns the remainder.
func polyDiv(p, q int) int {
	np := nbit(p)
	nq := nbit(q)
	for ; np >= nq; np-- {
		if p&(1<<(np-1)) != 0 {
			p ^= q << (np - nq)
		}
	}
	return p
}

// mul returns the product x*y mod poly, a GF(256) multiplication.
func mul(x, y, poly int) int {
	z := 0
	for x > 0 {
		if x&1 != 0 {
			z ^= y
		}
		x >>= 1
		y <<= 1
		if y&0x100 != 0 {
			y ^= poly
		}
	}
	return z
}

// reducible reports whether p is reducible.
func reducible(p int) bool {
	// Multiplying n-bit * n-bit produces (2n-1)-bit,
	// so if p is reducible, one of its factors must be
	// of np/2+1 bits or fewer.
	np := nbit(p)
	for q := 2; q < 1<<(np/2+1); q++ {
		if polyDiv(p, q) == 0 {
			return true
		}
	}
	return false
}

// Add returns the sum of x and y in the field.
func (f *Field) Add(x, y byte) byte {
	return x ^ y
}

// Exp returns the result of raising the generator α to the power e.
// The exponent is reduced modulo 255.
func (f *Field) Exp(e int) byte {
	if e < 0 {
		e = 255 - -e%255
	}
	return f.exp[e%255]
}

// Log returns the base-α logarithm of x.  Log panics if x is 0.
func (f *Field) Log(x byte) int {
	if x == 0 {
		panic("gf256: log of 0")
	}
	return int(f.log[x])
}

// Inv returns the multiplicative inverse of x in the field.
// If x == 0, Inv returns 0.
func (f *Field) Inv(x byte) byte {
	if x == 0 {
		return 0
	}
	return f.exp[255-f.log[x]]
}

// Mul returns the product of x and y in the field.
func (f *Field) Mul(x, y byte) byte {
	if x == 0 || y == 0 {
		return 0
	}
	return f.exp[int(f.log[x])+int(f.log[y])]
}

// An RSEncoder implements Reed-Solomon encoding over a given field
// using a given number of error correction bytes.
type RSEncoder struct {
	f    *Field
	c    int
	gen  []byte // generator polynomial, highest degree first, gen[0] == 1
	lgen []byte // logs of gen[1:]; 255 marks a zero coefficient
	p    []byte // work space
}

// gen returns the generator polynomial ∏(x - α**i) for i in [0, e).
func (f *Field) gen(e int) []byte {
	p := make([]byte, e+1)
	p[0] = 1
	for i := 0; i < e; i++ {
		// p *= (x + α**i), computed from the lowest coefficient up
		r := f.exp[i]
		for j := i + 1; j > 0; j-- {
			p[j] ^= f.Mul(p[j-1], r)
		}
	}
	return p
}

// NewRSEncoder returns a new Reed-Solomon encoder
// over the given field and number of error correction bytes.
func NewRSEncoder(f *Field, c int) *RSEncoder {
	if c < 1 || c > 254 {
		panic("gf256: invalid number of check bytes: " + strconv.Itoa(c))
	}
	gen := f.gen(c)
	lgen := make([]byte, c)
	for i, v := range gen[1:] {
		if v == 0 {
			lgen[i] = 255
		} else {
			lgen[i] = f.log[v]
		}
	}
	return &RSEncoder{f: f, c: c, gen: gen, lgen: lgen, p: make([]byte, c)}
}

// Check returns the number of check bytes computed by rs.
func (rs *RSEncoder) Check() int { return rs.c }

// ECC writes to check the error correcting code bytes
// for data using the given Reed-Solomon parameters.
// check must be at least rs.Check() bytes long.
// ECC is not safe for concurrent use.
func (rs *RSEncoder) ECC(data []byte, check []byte) {
	if len(check) < rs.c {
		panic("gf256: invalid check byte length")
	}
	if rs.c == 0 {
		return
	}

	// The check bytes are the remainder after dividing
	// data padded with c zeros by the generator polynomial.
	p := rs.p
	for i := range p {
		p[i] = 0
	}
	f := rs.f
	for _, d := range data {
		factor := d ^ p[0]
		copy(p, p[1:])
		p[len(p)-1] = 0
		if factor == 0 {
			continue
		}
		lf := int(f.log[factor])
		for i, lg := range rs.lgen {
			if lg != 255 {
				p[i] ^= f.exp[lf+int(lg)]
			}
		}
	}
	copy(check, p)
}

// Syndromes returns the syndromes of the codeword cw, which is data
// followed by n check bytes.  A codeword without errors has all
// syndromes zero.
func (f *Field) Syndromes(cw []byte, n int) []byte {
	s := make([]byte, n)
	for i := range s {
		// evaluate cw at α**i, Horner's rule
		var v byte
		r := f.exp[i]
		for _, c := range cw {
			v = f.Mul(v, r) ^ c
		}
		s[i] = v
	}
	return s
}
