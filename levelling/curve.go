package levelling

import "math"

// A scales the triangular level curve
const A int64 = 75

// XPForLevel returns the experience needed to be at level n
func XPForLevel(n int) int64 {
	if n <= 1 {
		return 0
	}
	k := int64(n)
	return A * k * (k - 1) / 2
}

// Level returns the level for an experience total. Levels start at 1.
func Level(xp int64) int {
	if xp < A {
		return 1
	}

	n := int(math.Floor(-0.5+math.Sqrt(1+8*float64(xp)/float64(A))/2)) + 1

	// float rounding can land one off near a boundary
	for XPForLevel(n+1) <= xp {
		n++
	}
	for n > 1 && XPForLevel(n) > xp {
		n--
	}
	return n
}

// XPToNext returns how much more experience is needed for the next level
func XPToNext(xp int64) int64 {
	return XPForLevel(Level(xp)+1) - xp
}
