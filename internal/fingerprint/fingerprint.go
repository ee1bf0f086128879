package fingerprint

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/corona10/goimagehash"
)

var (
	// ErrUnreadable is returned when an image cannot be opened, is not an
	// image, or cannot be decoded.
	ErrUnreadable = errors.New("image unreadable")

	// ErrWidthMismatch is returned when comparing fingerprints of different widths.
	ErrWidthMismatch = errors.New("fingerprint widths differ")

	// ErrInvalidEncoding is returned by Parse for malformed hex strings.
	ErrInvalidEncoding = errors.New("invalid fingerprint encoding")
)

const wordBits = 64

// Fingerprint is a fixed-width average hash. Bit i (counted from the most
// significant bit of the first word) is set when grid cell i, in row-major
// order, is brighter than the mean of the grid.
type Fingerprint struct {
	words []uint64
}

// Bits returns the width of the fingerprint in bits.
func (f Fingerprint) Bits() int {
	return len(f.words) * wordBits
}

// Equal reports whether both fingerprints have the same width and bits.
func (f Fingerprint) Equal(other Fingerprint) bool {
	if len(f.words) != len(other.words) {
		return false
	}
	for i := range f.words {
		if f.words[i] != other.words[i] {
			return false
		}
	}
	return true
}

// Hex encodes f as lowercase hex, 16 characters per 64-bit word. The width
// is implied by the length of the string.
func (f Fingerprint) Hex() string {
	buf := make([]byte, len(f.words)*8)
	for i, w := range f.words {
		binary.BigEndian.PutUint64(buf[i*8:], w)
	}
	return hex.EncodeToString(buf)
}

func (f Fingerprint) String() string {
	return f.Hex()
}

// Parse decodes a string produced by Hex.
func Parse(s string) (Fingerprint, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s)%16 != 0 {
		return Fingerprint{}, fmt.Errorf("%w: length %d is not a positive multiple of 16", ErrInvalidEncoding, len(s))
	}

	buf, err := hex.DecodeString(s)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("%w: %w", ErrInvalidEncoding, err)
	}

	words := make([]uint64, len(buf)/8)
	for i := range words {
		words[i] = binary.BigEndian.Uint64(buf[i*8:])
	}
	return Fingerprint{words: words}, nil
}

// Distance returns the Hamming distance between two fingerprints of equal
// width. It is symmetric and zero exactly when a and b are equal.
func Distance(a, b Fingerprint) (int, error) {
	if a.Bits() != b.Bits() {
		return 0, fmt.Errorf("%w: %d vs %d bits", ErrWidthMismatch, a.Bits(), b.Bits())
	}

	d, err := a.extHash().Distance(b.extHash())
	if err != nil {
		return 0, fmt.Errorf("compare fingerprints: %w", err)
	}
	return d, nil
}

func (f Fingerprint) extHash() *goimagehash.ExtImageHash {
	return goimagehash.NewExtImageHash(f.words, goimagehash.AHash, f.Bits())
}
