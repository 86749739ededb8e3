package protocol

import (
	"fmt"

	"github.com/gopacket/gopacket"

	"github.com/encodeous/icntm/state"
)

// DeliveryUpdate reports the delivery tree of a multicast item to the RM.
// An empty path set means the delivery finished.
//
//	type:u8 nIds:u8 idLen:u8 ids nPaths:u8 (len:u8 path)* nAlt:u8 altPub*
type DeliveryUpdate struct {
	Item          state.ItemID
	Paths         []string
	AltPublishers []state.Label
}

func (m *DeliveryUpdate) MsgType() uint8 { return state.UpdateDelivery }

func (m *DeliveryUpdate) SerializeTo(b gopacket.SerializeBuffer) error {
	if err := appendU8(b, state.UpdateDelivery); err != nil {
		return err
	}
	if err := appendItem(b, m.Item); err != nil {
		return err
	}
	if err := appendCount(b, len(m.Paths)); err != nil {
		return err
	}
	for _, p := range m.Paths {
		if err := appendPath(b, p); err != nil {
			return err
		}
	}
	return appendLabels(b, m.AltPublishers)
}

func (m *DeliveryUpdate) DecodeFromBytes(data []byte) error {
	d := decoder{data: data}
	var err error
	if _, err = d.expectType(state.UpdateDelivery); err != nil {
		return err
	}
	if m.Item, err = d.item(); err != nil {
		return err
	}
	n, err := d.u8()
	if err != nil {
		return err
	}
	m.Paths = make([]string, 0, n)
	for range n {
		p, err := d.path()
		if err != nil {
			return err
		}
		m.Paths = append(m.Paths, p)
	}
	m.AltPublishers, err = d.labels()
	return err
}

// UnicastDeliveryUpdate reports the single path of a unicast delivery to the RM.
//
//	type:u8 nIds:u8 idLen:u8 ids publisher nPaths:u8(0|1) (len:u8 path)? nAlt:u8 altSub*
type UnicastDeliveryUpdate struct {
	Item           state.ItemID
	Publisher      state.Label
	Path           string
	AltSubscribers []state.Label
}

func (m *UnicastDeliveryUpdate) MsgType() uint8 { return state.UpdateDelivery }

func (m *UnicastDeliveryUpdate) SerializeTo(b gopacket.SerializeBuffer) error {
	if err := appendU8(b, state.UpdateDelivery); err != nil {
		return err
	}
	if err := appendItem(b, m.Item); err != nil {
		return err
	}
	if err := appendLabel(b, m.Publisher); err != nil {
		return err
	}
	if m.Path == "" {
		if err := appendU8(b, 0); err != nil {
			return err
		}
	} else {
		if err := appendU8(b, 1); err != nil {
			return err
		}
		if err := appendPath(b, m.Path); err != nil {
			return err
		}
	}
	return appendLabels(b, m.AltSubscribers)
}

func (m *UnicastDeliveryUpdate) DecodeFromBytes(data []byte) error {
	d := decoder{data: data}
	var err error
	if _, err = d.expectType(state.UpdateDelivery, state.UpdateUnicastDelivery); err != nil {
		return err
	}
	if m.Item, err = d.item(); err != nil {
		return err
	}
	if m.Publisher, err = d.label(); err != nil {
		return err
	}
	n, err := d.u8()
	if err != nil {
		return err
	}
	m.Path = ""
	switch n {
	case 0:
	case 1:
		if m.Path, err = d.path(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unicast delivery with %d paths", n)
	}
	m.AltSubscribers, err = d.labels()
	return err
}

// DiscoverFailure asks the RM to find deliveries crossing a failed link.
// The failed directed edge is Affected->Source.
//
//	type:u8 netType:u8 source affected
type DiscoverFailure struct {
	NetType  uint8
	Source   state.Label
	Affected state.Label
}

func (m *DiscoverFailure) MsgType() uint8 { return state.DiscoverFailure }

func (m *DiscoverFailure) Bidirectional() bool {
	return m.NetType&state.NetTypeBidirectional != 0
}

func (m *DiscoverFailure) SerializeTo(b gopacket.SerializeBuffer) error {
	if err := appendRaw(b, []byte{state.DiscoverFailure, m.NetType}); err != nil {
		return err
	}
	if err := appendLabel(b, m.Source); err != nil {
		return err
	}
	return appendLabel(b, m.Affected)
}

func (m *DiscoverFailure) DecodeFromBytes(data []byte) error {
	d := decoder{data: data}
	var err error
	if _, err = d.expectType(state.DiscoverFailure); err != nil {
		return err
	}
	if m.NetType, err = d.u8(); err != nil {
		return err
	}
	if m.Source, err = d.label(); err != nil {
		return err
	}
	m.Affected, err = d.label()
	return err
}
