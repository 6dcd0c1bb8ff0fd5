package smf

import "github.com/pkg/errors"

// MaxVLV is the largest value a 4-byte variable-length quantity can hold.
const MaxVLV = 0x0FFFFFFF

const maxVLVBytes = 4

// ReadVLV decodes a variable-length quantity from the head of b.
// It returns the value and the number of bytes consumed.
func ReadVLV(b []byte) (uint32, int, error) {
	value := uint32(0)
	for i := 0; i < maxVLVBytes; i++ {
		if i >= len(b) {
			return 0, i, errors.Wrap(ErrMalformedVLV, "unexpected end of data")
		}
		c := b[i]
		value = value<<7 | uint32(c&0x7F)
		if c&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, maxVLVBytes, errors.Wrapf(ErrMalformedVLV, "continuation bit set on byte %d", maxVLVBytes)
}

// AppendVLV appends the variable-length encoding of v to dst.
func AppendVLV(dst []byte, v uint32) ([]byte, error) {
	if v > MaxVLV {
		return dst, errors.Wrapf(ErrVLVOverflow, "0x%08x", v)
	}
	var tmp [maxVLVBytes]byte
	n := 0
	for {
		tmp[n] = byte(v & 0x7F)
		n++
		v >>= 7
		if v == 0 {
			break
		}
	}
	for i := n - 1; i >= 0; i-- {
		c := tmp[i]
		if i != 0 {
			c |= 0x80
		}
		dst = append(dst, c)
	}
	return dst, nil
}
