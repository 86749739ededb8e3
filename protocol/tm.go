package protocol

import (
	"fmt"

	"github.com/gopacket/gopacket"

	"github.com/encodeous/icntm/state"
)

// PathRequest asks the topology manager to match publishers to subscribers.
//
//	type:u8 strategy:u8 nPub:u8 pub[nPub] nSub:u8 sub[nSub] nIds:u8 idLen:u8 ids[idLen*8]
type PathRequest struct {
	Type        uint8
	Strategy    uint8
	Publishers  []state.Label
	Subscribers []state.Label
	Item        state.ItemID
}

func (m *PathRequest) MsgType() uint8 { return m.Type }

func (m *PathRequest) SerializeTo(b gopacket.SerializeBuffer) error {
	if err := appendRaw(b, []byte{m.Type, m.Strategy}); err != nil {
		return err
	}
	if err := appendLabels(b, m.Publishers); err != nil {
		return err
	}
	if err := appendLabels(b, m.Subscribers); err != nil {
		return err
	}
	return appendItem(b, m.Item)
}

func (m *PathRequest) DecodeFromBytes(data []byte) error {
	d := decoder{data: data}
	var err error
	if m.Type, err = d.expectType(state.MatchPubSubs, state.UpdateFID); err != nil {
		return err
	}
	if m.Strategy, err = d.u8(); err != nil {
		return err
	}
	if m.Publishers, err = d.labels(); err != nil {
		return err
	}
	if m.Subscribers, err = d.labels(); err != nil {
		return err
	}
	m.Item, err = d.item()
	return err
}

// ScopeRequest announces a scope (un)publication to subscribers.
//
//	type:u8 strategy:u8 nSub:u8 sub[nSub] nIds:u8 idLen:u8 ids
type ScopeRequest struct {
	Type        uint8
	Strategy    uint8
	Subscribers []state.Label
	Item        state.ItemID
}

func (m *ScopeRequest) MsgType() uint8 { return m.Type }

func (m *ScopeRequest) SerializeTo(b gopacket.SerializeBuffer) error {
	if err := appendRaw(b, []byte{m.Type, m.Strategy}); err != nil {
		return err
	}
	if err := appendLabels(b, m.Subscribers); err != nil {
		return err
	}
	return appendItem(b, m.Item)
}

func (m *ScopeRequest) DecodeFromBytes(data []byte) error {
	d := decoder{data: data}
	var err error
	if m.Type, err = d.expectType(state.ScopePublished, state.ScopeUnpublished); err != nil {
		return err
	}
	if m.Strategy, err = d.u8(); err != nil {
		return err
	}
	if m.Subscribers, err = d.labels(); err != nil {
		return err
	}
	m.Item, err = d.item()
	return err
}

// ISubRequest asks for one FID per implicit subscriber. It carries no strategy.
//
//	type:u8 nPub:u8(=1) pub nSub:u8 sub[nSub] nIds:u8 idLen:u8 ids
type ISubRequest struct {
	Publisher   state.Label
	Subscribers []state.Label
	Item        state.ItemID
}

func (m *ISubRequest) MsgType() uint8 { return state.MatchPubISubs }

func (m *ISubRequest) SerializeTo(b gopacket.SerializeBuffer) error {
	if err := appendRaw(b, []byte{state.MatchPubISubs, 1}); err != nil {
		return err
	}
	if err := appendLabel(b, m.Publisher); err != nil {
		return err
	}
	if err := appendLabels(b, m.Subscribers); err != nil {
		return err
	}
	return appendItem(b, m.Item)
}

func (m *ISubRequest) DecodeFromBytes(data []byte) error {
	d := decoder{data: data}
	if _, err := d.expectType(state.MatchPubISubs); err != nil {
		return err
	}
	nPub, err := d.u8()
	if err != nil {
		return err
	}
	if nPub != 1 {
		return fmt.Errorf("implicit subscriber request with %d publishers", nPub)
	}
	if m.Publisher, err = d.label(); err != nil {
		return err
	}
	if m.Subscribers, err = d.labels(); err != nil {
		return err
	}
	if d.remaining() == 0 {
		m.Item = state.ItemID{}
		return nil
	}
	m.Item, err = d.item()
	return err
}

type Attr struct {
	Key   uint8
	Value uint32
}

// FindAttr returns the last value set for key.
func FindAttr(attrs []Attr, key uint8) (uint32, bool) {
	v, ok := uint32(0), false
	for _, a := range attrs {
		if a.Key == key {
			v, ok = a.Value, true
		}
	}
	return v, ok
}

// QoSMetadataMsg declares the QoS requirements of an information item.
//
//	type:u8 strategy:u8 nIds:u8 idLen:u8 ids nAttrs:u8 (key:u8 value:u32)*
type QoSMetadataMsg struct {
	Strategy uint8
	Item     state.ItemID
	Attrs    []Attr
}

func (m *QoSMetadataMsg) MsgType() uint8 { return state.QoSMetadata }

func (m *QoSMetadataMsg) SerializeTo(b gopacket.SerializeBuffer) error {
	if err := appendRaw(b, []byte{state.QoSMetadata, m.Strategy}); err != nil {
		return err
	}
	if err := appendItem(b, m.Item); err != nil {
		return err
	}
	return appendAttrs(b, m.Attrs)
}

func (m *QoSMetadataMsg) DecodeFromBytes(data []byte) error {
	d := decoder{data: data}
	var err error
	if _, err = d.expectType(state.QoSMetadata); err != nil {
		return err
	}
	if m.Strategy, err = d.u8(); err != nil {
		return err
	}
	if m.Item, err = d.item(); err != nil {
		return err
	}
	m.Attrs, err = d.attrs()
	return err
}

// PublishResponse tells a publisher to start, update or stop publishing.
//
//	type:u8 nIds:u8 idLen:u8 ids [FID]
//
// STOP_PUBLISH carries no FID.
type PublishResponse struct {
	Type uint8
	Item state.ItemID
	FID  state.Bitmask
}

func (m *PublishResponse) MsgType() uint8 { return m.Type }

func (m *PublishResponse) SerializeTo(b gopacket.SerializeBuffer) error {
	if err := appendU8(b, m.Type); err != nil {
		return err
	}
	if err := appendItem(b, m.Item); err != nil {
		return err
	}
	if m.Type == state.StopPublish {
		return nil
	}
	return appendRaw(b, m.FID.Bytes())
}

func (m *PublishResponse) DecodeFromBytes(data []byte) error {
	d := decoder{data: data}
	var err error
	if m.Type, err = d.expectType(state.StartPublish, state.StopPublish, state.UpdateFID); err != nil {
		return err
	}
	if m.Item, err = d.item(); err != nil {
		return err
	}
	m.FID = state.Bitmask{}
	if m.Type == state.StopPublish {
		return nil
	}
	m.FID, err = d.mask(d.remaining())
	return err
}

// ScopeNotification is the per-subscriber fan-out of a ScopeRequest.
//
//	type:u8 nIds:u8 idLen:u8 ids
type ScopeNotification struct {
	Type uint8
	Item state.ItemID
}

func (m *ScopeNotification) MsgType() uint8 { return m.Type }

func (m *ScopeNotification) SerializeTo(b gopacket.SerializeBuffer) error {
	if err := appendU8(b, m.Type); err != nil {
		return err
	}
	return appendItem(b, m.Item)
}

func (m *ScopeNotification) DecodeFromBytes(data []byte) error {
	d := decoder{data: data}
	var err error
	if m.Type, err = d.expectType(state.ScopePublished, state.ScopeUnpublished); err != nil {
		return err
	}
	m.Item, err = d.item()
	return err
}

type ISubEntry struct {
	Subscriber state.Label
	FID        state.Bitmask
}

// ISubResponse lists one FID per implicit subscriber, zero when unreachable.
//
//	type:u8 nSub:u8 (sub FID)*
type ISubResponse struct {
	Entries []ISubEntry
}

func (m *ISubResponse) MsgType() uint8 { return state.UpdateFIDISub }

func (m *ISubResponse) SerializeTo(b gopacket.SerializeBuffer) error {
	if err := appendU8(b, state.UpdateFIDISub); err != nil {
		return err
	}
	if err := appendCount(b, len(m.Entries)); err != nil {
		return err
	}
	for _, e := range m.Entries {
		if err := appendLabel(b, e.Subscriber); err != nil {
			return err
		}
		if err := appendRaw(b, e.FID.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func (m *ISubResponse) DecodeFromBytes(data []byte) error {
	d := decoder{data: data}
	if _, err := d.expectType(state.UpdateFIDISub); err != nil {
		return err
	}
	n, err := d.u8()
	if err != nil {
		return err
	}
	m.Entries = nil
	if n == 0 {
		return nil
	}
	if d.remaining()%int(n) != 0 || d.remaining()/int(n) <= state.LabelLen {
		return fmt.Errorf("%w: %d bytes cannot hold %d entries", ErrTruncated, d.remaining(), n)
	}
	fidLen := d.remaining()/int(n) - state.LabelLen
	for range n {
		var e ISubEntry
		if e.Subscriber, err = d.label(); err != nil {
			return err
		}
		if e.FID, err = d.mask(fidLen); err != nil {
			return err
		}
		m.Entries = append(m.Entries, e)
	}
	return nil
}

// FIDUpdate carries a node's new RVFID or TMFID.
//
//	type:u8 FID
type FIDUpdate struct {
	Type uint8
	FID  state.Bitmask
}

func (m *FIDUpdate) MsgType() uint8 { return m.Type }

func (m *FIDUpdate) SerializeTo(b gopacket.SerializeBuffer) error {
	if err := appendU8(b, m.Type); err != nil {
		return err
	}
	return appendRaw(b, m.FID.Bytes())
}

func (m *FIDUpdate) DecodeFromBytes(data []byte) error {
	d := decoder{data: data}
	var err error
	if m.Type, err = d.expectType(state.UpdateRVFID, state.UpdateTMFID); err != nil {
		return err
	}
	m.FID, err = d.mask(d.remaining())
	return err
}

// AffectedLink is a path management notification: the payload is the bare LID.
type AffectedLink struct {
	LID state.Bitmask
}

func (m *AffectedLink) MsgType() uint8 { return 0 }

func (m *AffectedLink) SerializeTo(b gopacket.SerializeBuffer) error {
	return appendRaw(b, m.LID.Bytes())
}

func (m *AffectedLink) DecodeFromBytes(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty LID", ErrTruncated)
	}
	var err error
	m.LID, err = state.BitmaskFromBytes(data)
	return err
}
