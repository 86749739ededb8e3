package state

import (
	"fmt"
	"math/bits"
	"strings"
)

// MaxFidBytes bounds the width of every forwarding identifier.
const MaxFidBytes = 64

// Bitmask is a fixed-width bit vector. Bit i lives in byte i/8 under mask 0x80>>(i%8),
// so the textual form reads left to right in wire order.
// The zero value is an empty mask, which IsZero reports as true.
type Bitmask struct {
	n uint16
	b [MaxFidBytes]byte
}

func NewBitmask(nBits int) Bitmask {
	if nBits < 0 || nBits > MaxFidBytes*8 {
		panic(fmt.Sprintf("bitmask width %d out of range", nBits))
	}
	return Bitmask{n: uint16(nBits)}
}

// ParseBitmask reads a string of '0' and '1' characters.
func ParseBitmask(s string) (Bitmask, error) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > MaxFidBytes*8 {
		return Bitmask{}, fmt.Errorf("bitmask %q has invalid width %d", s, len(s))
	}
	m := NewBitmask(len(s))
	for i, c := range s {
		switch c {
		case '1':
			m.Set(i)
		case '0':
		default:
			return Bitmask{}, fmt.Errorf("bitmask %q contains %q at %d", s, c, i)
		}
	}
	return m, nil
}

func MustParseBitmask(s string) Bitmask {
	m, err := ParseBitmask(s)
	if err != nil {
		panic(err)
	}
	return m
}

// BitmaskFromBytes copies a wire-format mask of len(b)*8 bits.
func BitmaskFromBytes(b []byte) (Bitmask, error) {
	if len(b) > MaxFidBytes {
		return Bitmask{}, fmt.Errorf("bitmask of %d bytes exceeds %d", len(b), MaxFidBytes)
	}
	m := NewBitmask(len(b) * 8)
	copy(m.b[:], b)
	return m, nil
}

func (m Bitmask) Len() int {
	return int(m.n)
}

func (m *Bitmask) Set(i int) {
	if i < 0 || i >= int(m.n) {
		panic(fmt.Sprintf("bit %d out of range for width %d", i, m.n))
	}
	m.b[i/8] |= 0x80 >> (i % 8)
}

func (m Bitmask) Test(i int) bool {
	if i < 0 || i >= int(m.n) {
		return false
	}
	return m.b[i/8]&(0x80>>(i%8)) != 0
}

func (m Bitmask) Or(o Bitmask) Bitmask {
	r := Bitmask{n: max(m.n, o.n)}
	for i := range r.b {
		r.b[i] = m.b[i] | o.b[i]
	}
	return r
}

func (m Bitmask) And(o Bitmask) Bitmask {
	r := Bitmask{n: max(m.n, o.n)}
	for i := range r.b {
		r.b[i] = m.b[i] & o.b[i]
	}
	return r
}

// Contains reports whether every bit of o is set in m. An empty o is never contained.
func (m Bitmask) Contains(o Bitmask) bool {
	if o.IsZero() {
		return false
	}
	for i := range m.b {
		if m.b[i]&o.b[i] != o.b[i] {
			return false
		}
	}
	return true
}

func (m Bitmask) IsZero() bool {
	for _, x := range m.b {
		if x != 0 {
			return false
		}
	}
	return true
}

// Equal compares set bits only, so masks of different widths with the same bits are equal.
func (m Bitmask) Equal(o Bitmask) bool {
	return m.b == o.b
}

func (m Bitmask) OnesCount() int {
	c := 0
	for _, x := range m.b {
		c += bits.OnesCount8(x)
	}
	return c
}

// Bytes returns the wire form, (Len()+7)/8 bytes long.
func (m Bitmask) Bytes() []byte {
	out := make([]byte, (int(m.n)+7)/8)
	copy(out, m.b[:])
	return out
}

// Resize returns the mask widened or truncated to nBits.
func (m Bitmask) Resize(nBits int) Bitmask {
	r := NewBitmask(nBits)
	for i := 0; i < min(nBits, int(m.n)); i++ {
		if m.Test(i) {
			r.Set(i)
		}
	}
	return r
}

func (m Bitmask) String() string {
	sb := strings.Builder{}
	sb.Grow(int(m.n))
	for i := 0; i < int(m.n); i++ {
		if m.Test(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func (m Bitmask) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Bitmask) UnmarshalText(text []byte) error {
	p, err := ParseBitmask(string(text))
	if err != nil {
		return err
	}
	*m = p
	return nil
}
