package rhal

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Data is an opaque byte payload carried by requests and responses.
//
// It is encoded in JSON as an array of byte values and printed in the canonical
// bracketed hex form, e.g. [11, 22, 33].
type Data []byte

// dataSeparators lists the characters ParseData ignores between hex digits.
const dataSeparators = ": ,[]"

// ParseData parses a hex byte literal.
//
// The literal may carry a leading "0x" or "0X" prefix, and the separators ':', ' ', ',', '[' and ']'
// may appear anywhere. The remaining characters must be an even number of hex digits,
// each pair forming one byte. For example "0x11:22,33", "112233" and "[11, 22, 33]" all
// parse to the bytes 0x11 0x22 0x33.
func ParseData(s string) (Data, error) {
	digits := strings.Map(func(r rune) rune {
		if strings.ContainsRune(dataSeparators, r) {
			return -1
		}
		return r
	}, strings.TrimSpace(s))

	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		digits = digits[2:]
	}

	if len(digits)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of hex digits in %q", ErrInvalidData, s)
	}

	buf, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidData, s, err)
	}

	return Data(buf), nil
}

// MustParseData is like ParseData but panics if the literal cannot be parsed.
func MustParseData(s string) Data {
	d, err := ParseData(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String returns the canonical bracketed hex form of d.
func (d Data) String() string {
	var sb strings.Builder
	sb.Grow(len(d)*4 + 2)
	sb.WriteByte('[')
	for i, b := range d {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(hex.EncodeToString([]byte{b}))
	}
	sb.WriteByte(']')

	return sb.String()
}

// Set implements flag.Value, so Data can be used directly as a command line flag.
func (d *Data) Set(s string) error {
	v, err := ParseData(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Clone returns a copy of d that does not share its backing array.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	c := make(Data, len(d))
	copy(c, d)
	return c
}

// MarshalJSON encodes d as an array of numbers instead of the base64 string
// encoding/json uses for byte slices.
func (d Data) MarshalJSON() ([]byte, error) {
	values := make([]uint16, len(d))
	for i, b := range d {
		values[i] = uint16(b)
	}
	return json.Marshal(values)
}

// UnmarshalJSON decodes an array of numbers in the range [0, 255].
func (d *Data) UnmarshalJSON(b []byte) error {
	var values []uint16
	if err := json.Unmarshal(b, &values); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	buf := make(Data, len(values))
	for i, v := range values {
		if v > 0xff {
			return fmt.Errorf("%w: byte value %d out of range", ErrInvalidData, v)
		}
		buf[i] = byte(v)
	}
	*d = buf

	return nil
}
