// Package checksum implements the additive ones'-complement arithmetic
// used to build and preserve transport checksums across CLAT/NAT64
// address translation.
package checksum

// Add accumulates the ones'-complement sum of b into sum. Bytes are
// summed as big-endian 16-bit words; a trailing odd byte counts as the
// high byte of a zero-padded word.
func Add(sum uint32, b []byte) uint32 {
	for i := 0; i < len(b)-1; i += 2 {
		sum += uint32(b[i])<<8 | uint32(b[i+1])
	}
	if len(b)%2 != 0 {
		sum += uint32(b[len(b)-1]) << 8
	}
	return sum
}

// Sum returns the ones'-complement sum of b starting from a zero
// accumulator.
func Sum(b []byte) uint32 {
	return Add(0, b)
}

// Fold reduces a sum accumulator to 16 bits with end-around carry.
func Fold(sum uint32) uint16 {
	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}
	return uint16(sum)
}

// Finish folds the accumulator and returns its ones' complement, the
// form checksum fields carry on the wire.
func Finish(sum uint32) uint16 {
	return ^Fold(sum)
}

// Adjust returns the replacement value for a 16-bit field so that the
// ones'-complement checksum over the containing structure is unchanged
// after the bytes summarized by oldSum are replaced by the bytes
// summarized by newSum. field must be the current value of the field
// as it contributes to newSum. RFC 1624 incremental update.
func Adjust(field uint16, oldSum, newSum uint32) uint16 {
	field = ^field
	foldedSum := Fold(uint32(field) + newSum)
	foldedOld := Fold(oldSum)
	if foldedSum > foldedOld {
		return ^(foldedSum - foldedOld)
	}
	return ^(foldedSum - foldedOld - 1)
}
