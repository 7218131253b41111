// Package keycodec turns typed values into binary-comparable byte sequences
// and back. Encoded bytes from the Encoder sort, under plain memcmp, in the
// same order as the semantic ordering of the original typed values.
package keycodec

import (
	"math"
)

const inlineCap = 256

// ErrValueTooLong is returned when an encoded value would overflow the
// 32-bit length field used by the leaf record format.
type lengthError struct{ got uint64 }

func (e *lengthError) Error() string { return "keycodec: value too long to encode" }

// ErrValueTooLong is the sentinel compared against with errors.Is.
var ErrValueTooLong error = &lengthError{}

func (e *lengthError) Is(target error) bool {
	_, ok := target.(*lengthError)
	return ok
}

// Encoder accumulates binary-comparable key bytes. The zero value is ready
// to use. Small keys never touch the heap: the first inlineCap bytes live in
// an inline array, and the buffer grows by doubling only once that is
// exceeded.
type Encoder struct {
	inline [inlineCap]byte
	buf    []byte // either inline[:n] or a heap-grown slice
	n      int
}

func (e *Encoder) ensure(extra int) []byte {
	if e.buf == nil {
		e.buf = e.inline[:0]
	}
	if cap(e.buf)-len(e.buf) >= extra {
		return e.buf
	}
	need := len(e.buf) + extra
	newCap := cap(e.buf)
	if newCap == 0 {
		newCap = inlineCap
	}
	for newCap < need {
		newCap *= 2
	}
	grown := make([]byte, len(e.buf), newCap)
	copy(grown, e.buf)
	e.buf = grown
	return e.buf
}

// Reset clears the encoder so it can be reused without reallocating its
// inline buffer.
func (e *Encoder) Reset() {
	if e.buf != nil {
		e.buf = e.buf[:0]
	}
	e.n = 0
}

// View returns the accumulated bytes. The returned slice is only valid until
// the next mutating call on e.
func (e *Encoder) View() []byte {
	if e.buf == nil {
		return nil
	}
	return e.buf
}

func (e *Encoder) append(b ...byte) {
	e.buf = e.ensure(len(b))
	e.buf = append(e.buf, b...)
}

// AppendBytes copies a raw byte span verbatim onto the end of the buffer.
func (e *Encoder) AppendBytes(p []byte) {
	e.buf = e.ensure(len(p))
	e.buf = append(e.buf, p...)
}

// EncodeUint8/16/32/64 append a big-endian encoding of an unsigned integer.
func (e *Encoder) EncodeUint8(v uint8)   { e.append(v) }
func (e *Encoder) EncodeUint16(v uint16) { e.append(byte(v>>8), byte(v)) }
func (e *Encoder) EncodeUint32(v uint32) {
	e.append(byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
func (e *Encoder) EncodeUint64(v uint64) {
	e.append(
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v),
	)
}

// EncodeInt8/16/32/64 flip the sign bit before big-endian encoding so that
// the resulting bytes order the same as the signed integers do.
func (e *Encoder) EncodeInt8(v int8)   { e.EncodeUint8(uint8(v) ^ 0x80) }
func (e *Encoder) EncodeInt16(v int16) { e.EncodeUint16(uint16(v) ^ 0x8000) }
func (e *Encoder) EncodeInt32(v int32) { e.EncodeUint32(uint32(v) ^ 0x80000000) }
func (e *Encoder) EncodeInt64(v int64) { e.EncodeUint64(uint64(v) ^ 0x8000000000000000) }

// EncodeFloat32 encodes an IEEE-754 binary32 so that the byte order matches
// the real-number order across the full range including infinities. NaN
// encodes as all-ones (the maximum value).
func (e *Encoder) EncodeFloat32(v float32) {
	bits := math.Float32bits(v)
	e.EncodeUint32(floatOrderUint32(bits))
}

// EncodeFloat64 is the binary64 analogue of EncodeFloat32.
func (e *Encoder) EncodeFloat64(v float64) {
	bits := math.Float64bits(v)
	e.EncodeUint64(floatOrderUint64(bits))
}

func floatOrderUint32(bits uint32) uint32 {
	if bits&0x7F80_0000 == 0x7F80_0000 && bits&0x007F_FFFF != 0 {
		return ^uint32(0) // NaN
	}
	if bits&0x8000_0000 == 0 {
		// non-negative (including +0): set the sign bit.
		return bits | 0x8000_0000
	}
	// negative: complement everything.
	return ^bits
}

func floatOrderUint64(bits uint64) uint64 {
	if bits&0x7FF0_0000_0000_0000 == 0x7FF0_0000_0000_0000 && bits&0x000F_FFFF_FFFF_FFFF != 0 {
		return ^uint64(0) // NaN
	}
	if bits&0x8000_0000_0000_0000 == 0 {
		return bits | 0x8000_0000_0000_0000
	}
	return ^bits
}

// EncodeText appends a fixed-width text field of exactly maxLen+3 bytes:
// trailing pad bytes are stripped, the result is truncated to maxLen bytes,
// padded back out to maxLen with pad, a single pad terminator byte is
// appended, followed by the big-endian uint16 residual pad count
// (maxLen - truncatedLen). Padding out to a fixed width (rather than
// stopping at truncatedLen) means a shorter string's encoding agrees with a
// longer one's byte for byte up to the first position where the longer one
// has real content and the shorter one has pad, so it sorts strictly before
// it as long as pad sorts below every valid content byte.
func (e *Encoder) EncodeText(s []byte, maxLen uint16, pad byte) {
	trimmed := s
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == pad {
		trimmed = trimmed[:len(trimmed)-1]
	}
	if uint16(len(trimmed)) > maxLen {
		trimmed = trimmed[:maxLen]
	}
	e.AppendBytes(trimmed)
	residual := maxLen - uint16(len(trimmed))
	for i := uint16(0); i < residual; i++ {
		e.append(pad)
	}
	e.append(pad)
	e.EncodeUint16(residual)
}

// Len reports the number of accumulated bytes. It does no length check;
// CheckLength tests the count against a uint32 length field.
func (e *Encoder) Len() int { return len(e.buf) }

// CheckLength returns ErrValueTooLong if the accumulated bytes would not fit
// in a uint32 length field.
func (e *Encoder) CheckLength() error {
	if uint64(len(e.buf)) > math.MaxUint32 {
		return &lengthError{got: uint64(len(e.buf))}
	}
	return nil
}
