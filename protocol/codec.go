// Package protocol encodes and decodes the control messages exchanged between the
// topology manager, the resilience manager and network nodes. All multi-byte
// integers are big-endian and every count is a single byte.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gopacket/gopacket"

	"github.com/encodeous/icntm/state"
)

var (
	ErrTruncated   = errors.New("message truncated")
	ErrUnknownType = errors.New("unknown message type")
	ErrTooMany     = errors.New("too many entries for a one byte count")
)

// Message is a control message body.
type Message interface {
	MsgType() uint8
	// SerializeTo appends the wire form to b.
	SerializeTo(b gopacket.SerializeBuffer) error
}

func Marshal(m Message) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	if err := m.SerializeTo(buf); err != nil {
		return nil, fmt.Errorf("serialize %s: %w", TypeName(m.MsgType()), err)
	}
	return buf.Bytes(), nil
}

// PeekType returns the leading type byte.
func PeekType(data []byte) (uint8, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty message", ErrTruncated)
	}
	return data[0], nil
}

func appendRaw(b gopacket.SerializeBuffer, data []byte) error {
	buf, err := b.AppendBytes(len(data))
	if err != nil {
		return err
	}
	copy(buf, data)
	return nil
}

func appendU8(b gopacket.SerializeBuffer, v uint8) error {
	return appendRaw(b, []byte{v})
}

func appendCount(b gopacket.SerializeBuffer, n int) error {
	if n > 255 {
		return fmt.Errorf("%w: %d", ErrTooMany, n)
	}
	return appendU8(b, uint8(n))
}

func appendLabel(b gopacket.SerializeBuffer, l state.Label) error {
	if !l.Valid() {
		return fmt.Errorf("label %q must be %d bytes", l, state.LabelLen)
	}
	return appendRaw(b, []byte(l))
}

func appendLabels(b gopacket.SerializeBuffer, ls []state.Label) error {
	if err := appendCount(b, len(ls)); err != nil {
		return err
	}
	for _, l := range ls {
		if err := appendLabel(b, l); err != nil {
			return err
		}
	}
	return nil
}

func appendItem(b gopacket.SerializeBuffer, id state.ItemID) error {
	if len(id.ID)%state.LabelLen != 0 {
		return fmt.Errorf("item id of %d bytes is not a multiple of %d", len(id.ID), state.LabelLen)
	}
	if err := appendU8(b, id.Count); err != nil {
		return err
	}
	if err := appendCount(b, id.IDLen()); err != nil {
		return err
	}
	return appendRaw(b, []byte(id.ID))
}

func appendPath(b gopacket.SerializeBuffer, p string) error {
	if err := appendCount(b, len(p)); err != nil {
		return err
	}
	return appendRaw(b, []byte(p))
}

func appendAttrs(b gopacket.SerializeBuffer, attrs []Attr) error {
	if err := appendCount(b, len(attrs)); err != nil {
		return err
	}
	for _, a := range attrs {
		buf, err := b.AppendBytes(5)
		if err != nil {
			return err
		}
		buf[0] = a.Key
		binary.BigEndian.PutUint32(buf[1:], a.Value)
	}
	return nil
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) take(n int) ([]byte, error) {
	if n < 0 || d.off+n > len(d.data) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrTruncated, n, d.off, len(d.data))
	}
	out := d.data[d.off : d.off+n]
	d.off += n
	return out, nil
}

func (d *decoder) u8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *decoder) remaining() int {
	return len(d.data) - d.off
}

func (d *decoder) rest() []byte {
	out := d.data[d.off:]
	d.off = len(d.data)
	return out
}

func (d *decoder) label() (state.Label, error) {
	b, err := d.take(state.LabelLen)
	if err != nil {
		return "", err
	}
	return state.Label(b), nil
}

func (d *decoder) labelsN(n int) ([]state.Label, error) {
	out := make([]state.Label, 0, n)
	for range n {
		l, err := d.label()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (d *decoder) labels() ([]state.Label, error) {
	n, err := d.u8()
	if err != nil {
		return nil, err
	}
	return d.labelsN(int(n))
}

func (d *decoder) item() (state.ItemID, error) {
	count, err := d.u8()
	if err != nil {
		return state.ItemID{}, err
	}
	idLen, err := d.u8()
	if err != nil {
		return state.ItemID{}, err
	}
	id, err := d.take(int(idLen) * state.LabelLen)
	if err != nil {
		return state.ItemID{}, err
	}
	return state.ItemID{Count: count, ID: string(id)}, nil
}

func (d *decoder) mask(nBytes int) (state.Bitmask, error) {
	b, err := d.take(nBytes)
	if err != nil {
		return state.Bitmask{}, err
	}
	return state.BitmaskFromBytes(b)
}

func (d *decoder) path() (string, error) {
	n, err := d.u8()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) attrs() ([]Attr, error) {
	n, err := d.u8()
	if err != nil {
		return nil, err
	}
	out := make([]Attr, 0, n)
	for range n {
		b, err := d.take(5)
		if err != nil {
			return nil, err
		}
		out = append(out, Attr{Key: b[0], Value: binary.BigEndian.Uint32(b[1:])})
	}
	return out, nil
}

func (d *decoder) expectType(want ...uint8) (uint8, error) {
	t, err := d.u8()
	if err != nil {
		return 0, err
	}
	for _, w := range want {
		if t == w {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownType, TypeName(t))
}

func TypeName(t uint8) string {
	switch t {
	case state.AddLink:
		return "ADD_LINK"
	case state.RemoveLink:
		return "REMOVE_LINK"
	case state.UpdateRVFID:
		return "UPDATE_RVFID"
	case state.UpdateTMFID:
		return "UPDATE_TMFID"
	case state.UpdateDelivery:
		return "UPDATE_DELIVERY"
	case state.DiscoverFailure:
		return "DISCOVER_FAILURE"
	case state.UpdateUnicastDelivery:
		return "UPDATE_UNICAST_DELIVERY"
	case state.StartPublish:
		return "START_PUBLISH"
	case state.StopPublish:
		return "STOP_PUBLISH"
	case state.ScopePublished:
		return "SCOPE_PUBLISHED"
	case state.ScopeUnpublished:
		return "SCOPE_UNPUBLISHED"
	case state.MatchPubSubs:
		return "MATCH_PUB_SUBS"
	case state.UpdateFID:
		return "UPDATE_FID"
	case state.MatchPubISubs:
		return "MATCH_PUB_iSUBS"
	case state.UpdateFIDISub:
		return "UPDATE_FID_iSUB"
	case state.QoSMetadata:
		return "QOS_METADATA"
	}
	return fmt.Sprintf("TYPE_%d", t)
}
