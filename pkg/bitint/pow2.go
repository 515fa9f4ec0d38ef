// SPDX-License-Identifier: MIT
/*
Package bitint provides the integer helpers used to size analysis frames.
Supported frame sizes are powers of two and three times a power of two,
the lengths the FFT and the envelope tables handle without padding.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: No locks, syscalls, or blocking operations

Usage:

	// Round a requested latency up to a usable frame size
	frameSize := bitint.NextPowerOfTwoOrTriple(900) // Returns 1024

	// Validate a configured frame size
	ok := bitint.IsPowerOfTwoOrTriple(768) // true, 3 * 256
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
// Subtracting 1 first keeps exact powers of two unchanged.
//
// Examples:
//
//	Input  Output  Explanation
//	4      4      Already power of 2 (preserved)
//	5      8      Next power after 5
//	0      1      Handle zero case
//	-1     1      Handle negative case
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2 using bit manipulation.
// Powers of 2 have exactly one bit set, so n & (n-1) clears it to zero.
//
// Examples:
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
//	-8     false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// IsPowerOfTwoOrTriple reports whether n is 2^k or 3*2^k.
func IsPowerOfTwoOrTriple(n int) bool {
	if IsPowerOfTwo(n) {
		return true
	}
	return n > 0 && n%3 == 0 && IsPowerOfTwo(n/3)
}

// NextPowerOfTwoOrTriple returns the smallest 2^k or 3*2^k >= size.
// The triple below a power of two p is 3p/4, so only two candidates need
// checking.
//
//	Input  Output
//	5      6
//	7      8
//	900    1024
//	700    768
func NextPowerOfTwoOrTriple(size int) int {
	p := NextPowerOfTwo(size)
	if t := p/2 + p/4; t >= size && t > 0 && IsPowerOfTwoOrTriple(t) {
		return t
	}
	return p
}

// Log2 returns floor(log2(n)) for n > 0 and -1 otherwise.
func Log2(n int) int {
	if n <= 0 {
		return -1
	}
	return bits.Len(uint(n)) - 1
}
