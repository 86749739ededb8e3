package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitmaskParseRoundTrip(t *testing.T) {
	m, err := ParseBitmask("0000010100000001")
	require.NoError(t, err)
	assert.Equal(t, 16, m.Len())
	assert.Equal(t, []byte{0x05, 0x01}, m.Bytes())
	assert.Equal(t, "0000010100000001", m.String())
	assert.True(t, m.Test(5))
	assert.True(t, m.Test(15))
	assert.False(t, m.Test(0))
	assert.Equal(t, 3, m.OnesCount())
}

func TestBitmaskParseInvalid(t *testing.T) {
	_, err := ParseBitmask("")
	assert.Error(t, err)
	_, err = ParseBitmask("0102")
	assert.Error(t, err)
}

func TestBitmaskFromBytes(t *testing.T) {
	m, err := BitmaskFromBytes([]byte{0x80, 0x00, 0x01})
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000000001", m.String())

	_, err = BitmaskFromBytes(make([]byte, MaxFidBytes+1))
	assert.Error(t, err)
}

func TestBitmaskOrAnd(t *testing.T) {
	ab := MustParseBitmask("00000001")
	bc := MustParseBitmask("00000010")
	c := MustParseBitmask("00000100")

	fid := ab.Or(bc).Or(c)
	assert.Equal(t, "00000111", fid.String())
	assert.True(t, fid.Contains(ab))
	assert.True(t, fid.Contains(ab.Or(c)))
	assert.False(t, fid.Contains(MustParseBitmask("00001000")))
	assert.Equal(t, ab, fid.And(ab))
	assert.True(t, ab.And(bc).IsZero())
}

func TestBitmaskZero(t *testing.T) {
	assert.True(t, Bitmask{}.IsZero())
	assert.True(t, NewBitmask(64).IsZero())
	assert.False(t, NewBitmask(64).Contains(NewBitmask(64)))
	assert.Equal(t, 8, len(NewBitmask(64).Bytes()))
}

func TestBitmaskEqualIgnoresWidth(t *testing.T) {
	a := MustParseBitmask("1000")
	b := MustParseBitmask("10000000")
	assert.True(t, a.Equal(b))
	assert.Equal(t, "10", b.Resize(2).String())
	assert.Equal(t, "1000000000", a.Resize(10).String())
}

func TestBitmaskText(t *testing.T) {
	var m Bitmask
	require.NoError(t, m.UnmarshalText([]byte("0110")))
	out, err := m.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "0110", string(out))
}
