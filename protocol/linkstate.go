package protocol

import (
	"fmt"

	"github.com/gopacket/gopacket"

	"github.com/encodeous/icntm/state"
)

// LinkStateNotification is sent by a node's link monitor. The node itself is the
// sender identity carried in the event identifier, not in the body.
//
//	lsnType:u8 netType:u8 affected
type LinkStateNotification struct {
	Type     uint8
	NetType  uint8
	Affected state.Label
}

func (m *LinkStateNotification) MsgType() uint8 { return m.Type }

func (m *LinkStateNotification) Bidirectional() bool {
	return m.NetType&state.NetTypeBidirectional != 0
}

func (m *LinkStateNotification) SerializeTo(b gopacket.SerializeBuffer) error {
	if err := appendRaw(b, []byte{m.Type, m.NetType}); err != nil {
		return err
	}
	return appendLabel(b, m.Affected)
}

func (m *LinkStateNotification) DecodeFromBytes(data []byte) error {
	d := decoder{data: data}
	var err error
	if m.Type, err = d.expectType(state.AddLink, state.RemoveLink); err != nil {
		return err
	}
	if m.NetType, err = d.u8(); err != nil {
		return err
	}
	m.Affected, err = d.label()
	return err
}

type LinkStatus struct {
	LID   state.Bitmask
	Attrs []Attr
}

// LinkStatusUpdate is a link-state monitoring report. It has no type byte, and
// decoding needs the FID width in bytes.
//
//	nLinks:u8 (lid nAttrs:u8 (key:u8 value:u32)*)*
type LinkStatusUpdate struct {
	FidLen int
	Links  []LinkStatus
}

func (m *LinkStatusUpdate) MsgType() uint8 { return 0 }

func (m *LinkStatusUpdate) SerializeTo(b gopacket.SerializeBuffer) error {
	if err := appendCount(b, len(m.Links)); err != nil {
		return err
	}
	for _, l := range m.Links {
		if m.FidLen != 0 && l.LID.Len() != m.FidLen*8 {
			return fmt.Errorf("LID %s is not %d bytes wide", l.LID, m.FidLen)
		}
		if err := appendRaw(b, l.LID.Bytes()); err != nil {
			return err
		}
		if err := appendAttrs(b, l.Attrs); err != nil {
			return err
		}
	}
	return nil
}

func (m *LinkStatusUpdate) DecodeFromBytes(data []byte) error {
	if m.FidLen <= 0 {
		return fmt.Errorf("link status update needs a FID width")
	}
	d := decoder{data: data}
	n, err := d.u8()
	if err != nil {
		return err
	}
	m.Links = make([]LinkStatus, 0, n)
	for range n {
		var l LinkStatus
		if l.LID, err = d.mask(m.FidLen); err != nil {
			return err
		}
		if l.Attrs, err = d.attrs(); err != nil {
			return err
		}
		m.Links = append(m.Links, l)
	}
	return nil
}
