// Copyright 2011 The Go Authors.  All rights reserved.
// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coding

// Tables from qrencode-3.1.1/qrspec.c, versions 1 to 40.

// capacity lists, per version, the total number of codewords and the
// total number of error correction codewords for levels L, M, Q, H.
var capacity = [MaxVersion + 1]struct {
	words int
	ec    [4]int
}{
	{0, [4]int{0, 0, 0, 0}},
	{26, [4]int{7, 10, 13, 17}}, // 1
	{44, [4]int{10, 16, 22, 28}},
	{70, [4]int{15, 26, 36, 44}},
	{100, [4]int{20, 36, 52, 64}},
	{134, [4]int{26, 48, 72, 88}}, // 5
	{172, [4]int{36, 64, 96, 112}},
	{196, [4]int{40, 72, 108, 130}},
	{242, [4]int{48, 88, 132, 156}},
	{292, [4]int{60, 110, 160, 192}},
	{346, [4]int{72, 130, 192, 224}}, // 10
	{404, [4]int{80, 150, 224, 264}},
	{466, [4]int{96, 176, 260, 308}},
	{532, [4]int{104, 198, 288, 352}},
	{581, [4]int{120, 216, 320, 384}},
	{655, [4]int{132, 240, 360, 432}}, // 15
	{733, [4]int{144, 280, 408, 480}},
	{815, [4]int{168, 308, 448, 532}},
	{901, [4]int{180, 338, 504, 588}},
	{991, [4]int{196, 364, 546, 650}},
	{1085, [4]int{224, 416, 600, 700}}, // 20
	{1156, [4]int{224, 442, 644, 750}},
	{1258, [4]int{252, 476, 690, 816}},
	{1364, [4]int{270, 504, 750, 900}},
	{1474, [4]int{300, 560, 810, 960}},
	{1588, [4]int{312, 588, 870, 1050}}, // 25
	{1706, [4]int{336, 644, 952, 1110}},
	{1828, [4]int{360, 700, 1020, 1200}},
	{1921, [4]int{390, 728, 1050, 1260}},
	{2051, [4]int{420, 784, 1140, 1350}},
	{2185, [4]int{450, 812, 1200, 1440}}, // 30
	{2323, [4]int{480, 868, 1290, 1530}},
	{2465, [4]int{510, 924, 1350, 1620}},
	{2611, [4]int{540, 980, 1440, 1710}},
	{2761, [4]int{570, 1036, 1530, 1800}},
	{2876, [4]int{570, 1064, 1590, 1890}}, // 35
	{3034, [4]int{600, 1120, 1680, 1980}},
	{3196, [4]int{630, 1204, 1770, 2100}},
	{3362, [4]int{660, 1260, 1860, 2220}},
	{3532, [4]int{720, 1316, 1950, 2310}},
	{3706, [4]int{750, 1372, 2040, 2430}}, // 40
}

// eccTable lists, per version and level, the number of blocks in the
// two block groups.  Blocks of the second group hold one more data
// codeword than those of the first.
var eccTable = [MaxVersion + 1][4][2]int{
	{{0, 0}, {0, 0}, {0, 0}, {0, 0}},
	{{1, 0}, {1, 0}, {1, 0}, {1, 0}}, // 1
	{{1, 0}, {1, 0}, {1, 0}, {1, 0}},
	{{1, 0}, {1, 0}, {2, 0}, {2, 0}},
	{{1, 0}, {2, 0}, {2, 0}, {4, 0}},
	{{1, 0}, {2, 0}, {2, 2}, {2, 2}}, // 5
	{{2, 0}, {4, 0}, {4, 0}, {4, 0}},
	{{2, 0}, {4, 0}, {2, 4}, {4, 1}},
	{{2, 0}, {2, 2}, {4, 2}, {4, 2}},
	{{2, 0}, {3, 2}, {4, 4}, {4, 4}},
	{{2, 2}, {4, 1}, {6, 2}, {6, 2}}, // 10
	{{4, 0}, {1, 4}, {4, 4}, {3, 8}},
	{{2, 2}, {6, 2}, {4, 6}, {7, 4}},
	{{4, 0}, {8, 1}, {8, 4}, {12, 4}},
	{{3, 1}, {4, 5}, {11, 5}, {11, 5}},
	{{5, 1}, {5, 5}, {5, 7}, {11, 7}}, // 15
	{{5, 1}, {7, 3}, {15, 2}, {3, 13}},
	{{1, 5}, {10, 1}, {1, 15}, {2, 17}},
	{{5, 1}, {9, 4}, {17, 1}, {2, 19}},
	{{3, 4}, {3, 11}, {17, 4}, {9, 16}},
	{{3, 5}, {3, 13}, {15, 5}, {15, 10}}, // 20
	{{4, 4}, {17, 0}, {17, 6}, {19, 6}},
	{{2, 7}, {17, 0}, {7, 16}, {34, 0}},
	{{4, 5}, {4, 14}, {11, 14}, {16, 14}},
	{{6, 4}, {6, 14}, {11, 16}, {30, 2}},
	{{8, 4}, {8, 13}, {7, 22}, {22, 13}}, // 25
	{{10, 2}, {19, 4}, {28, 6}, {33, 4}},
	{{8, 4}, {22, 3}, {8, 26}, {12, 28}},
	{{3, 10}, {3, 23}, {4, 31}, {11, 31}},
	{{7, 7}, {21, 7}, {1, 37}, {19, 26}},
	{{5, 10}, {19, 10}, {15, 25}, {23, 25}}, // 30
	{{13, 3}, {2, 29}, {42, 1}, {23, 28}},
	{{17, 0}, {10, 23}, {10, 35}, {19, 35}},
	{{17, 1}, {14, 21}, {29, 19}, {11, 46}},
	{{13, 6}, {14, 23}, {44, 7}, {59, 1}},
	{{12, 7}, {12, 26}, {39, 14}, {22, 41}}, // 35
	{{6, 14}, {6, 34}, {46, 10}, {2, 64}},
	{{17, 4}, {29, 14}, {49, 10}, {24, 46}},
	{{4, 18}, {13, 32}, {48, 14}, {42, 32}},
	{{20, 4}, {40, 7}, {43, 22}, {10, 67}},
	{{19, 6}, {18, 31}, {34, 34}, {20, 61}}, // 40
}

// align lists, per version, the second and third alignment pattern
// centre coordinates.  The first is always 6; further ones continue
// with the same stride up to size-7.
var align = [MaxVersion + 1][2]int{
	{0, 0},
	{0, 0}, {18, 0}, {22, 0}, {26, 0}, {30, 0}, // 1- 5
	{34, 0}, {22, 38}, {24, 42}, {26, 46}, {28, 50}, // 6-10
	{30, 54}, {32, 58}, {34, 62}, {26, 46}, {26, 48}, // 11-15
	{26, 50}, {30, 54}, {30, 56}, {30, 58}, {34, 62}, // 16-20
	{28, 50}, {26, 50}, {30, 54}, {28, 54}, {32, 58}, // 21-25
	{30, 58}, {34, 62}, {26, 50}, {30, 54}, {26, 52}, // 26-30
	{30, 56}, {34, 60}, {30, 58}, {34, 62}, {30, 54}, // 31-35
	{24, 50}, {28, 54}, {32, 58}, {26, 54}, {30, 58}, // 36-40
}

// A version describes metadata associated with a version.
type version struct {
	apos    []int // alignment pattern centre coordinates
	bytes   int   // total codewords
	pattern int   // 18 bit version information, 0 below version 7
	level   [4]level
}

type level struct {
	nblock int // number of blocks
	check  int // check bytes per block
}

// Version table, derived from the tables above.
var vtab [MaxVersion + 1]version

// QR Code format bits for each level and mask.
var ftab [4][8]uint16

func init() {
	for v := MinVersion; v <= MaxVersion; v++ {
		vt := &vtab[v]
		vt.bytes = capacity[v].words
		vt.apos = alignPositions(v)
		if v >= 7 {
			vt.pattern = versionBits(v)
		}
		for l := L; l <= H; l++ {
			n := eccTable[v][l][0] + eccTable[v][l][1]
			if n != 0 {
				vt.level[l] = level{n, capacity[v].ec[l] / n}
			}
		}
	}
	for l := L; l <= H; l++ {
		for mask := range ftab[l] {
			ftab[l][mask] = formatBits(l, mask)
		}
	}
}

// alignPositions returns alignment pattern centre coordinates for v.
func alignPositions(v Version) []int {
	a := align[v]
	if a[0] == 0 {
		return nil
	}
	stride := a[1] - a[0]
	if a[1] == 0 {
		stride = 1 << 10
	}
	last := v.Size() - 7
	pos := []int{6}
	for p := a[0]; p <= last; p += stride {
		pos = append(pos, p)
	}
	return pos
}

// bch returns data with the BCH code for the generator poly of degree
// n appended.
func bch(data, poly int, n uint) int {
	rem := data
	for i := uint(0); i < n; i++ {
		rem = rem<<1 ^ (rem>>(n-1))*poly
	}
	return data<<n | rem&(1<<n-1)
}

// versionBits returns the 18 bit version information for v.
func versionBits(v Version) int {
	return bch(int(v), 0x1f25, 12)
}

// formatBits returns the masked 15 bit format information for level l
// and mask.  Levels are coded L=01, M=00, Q=11, H=10.
func formatBits(l Level, mask int) uint16 {
	data := int(l^1)<<3 | mask
	return uint16(bch(data, 0x537, 10) ^ 0x5412)
}

// rawModules returns the number of data and check modules in a QR
// code of version v, remainder bits included.
func rawModules(v Version) int {
	n := (16*int(v)+128)*int(v) + 64
	if v >= 2 {
		na := int(v)/7 + 2
		n -= (25*na-10)*na - 55
		if v >= 7 {
			n -= 36
		}
	}
	return n
}
