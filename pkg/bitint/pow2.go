// SPDX-License-Identifier: MIT
/*
Package bitint holds the power-of-two helpers used to size the capture
queue and to check chunk sizes.

A power-of-two ring lets the queue wrap its cursors with a mask instead of a
modulo, and the real FFT is fastest when the chunk length is a power of two.

	slots := bitint.NextPowerOfTwo(capacity) // 5 -> 8
	mask := slots - 1
	ok := bitint.IsPowerOfTwo(chunkSize)
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size, and 1 for
// size <= 1. Powers of two are returned unchanged because the highest bit of
// size-1 is one position lower than that of size.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two: such numbers
// have exactly one bit set, so n&(n-1) clears it.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Log2 returns the exponent of a power of two, or -1 if n is not one.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}
