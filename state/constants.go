package state

import (
	"math"
	"strings"
	"time"
)

const (
	// PathSeparator joins labels in a path vector.
	PathSeparator = "->"

	// Unreachable is the hop count reported when no path exists.
	Unreachable = math.MaxInt

	// MaxPriority is the highest QoS priority. An admissible edge weighs MaxPriority minus its priority.
	MaxPriority = 100
	// Forbidden is the weight of an edge that a plane may not use.
	Forbidden = math.MaxUint8

	DefaultFidLen = 32
)

// link events
const (
	AddLink    uint8 = 12
	RemoveLink uint8 = 13
)

// control messages
const (
	UpdateRVFID           uint8 = 55
	UpdateTMFID           uint8 = 56
	UpdateDelivery        uint8 = 57
	DiscoverFailure       uint8 = 58
	UpdateUnicastDelivery uint8 = 59
)

// pub/sub messages
const (
	StartPublish     uint8 = 100
	StopPublish      uint8 = 101
	ScopePublished   uint8 = 102
	ScopeUnpublished uint8 = 103
	MatchPubSubs     uint8 = 105
	UpdateFID        uint8 = 107
	MatchPubISubs    uint8 = 110
	UpdateFIDISub    uint8 = 112
	QoSMetadata      uint8 = 150
)

// dissemination strategies
const (
	LinkLocal          uint8 = 1
	DomainLocal        uint8 = 2
	ImplicitRendezvous uint8 = 3
	BroadcastIf        uint8 = 4
	NodeLocal          uint8 = 5
)

// NetTypeBidirectional is bit 0 of a link-state notification's netType.
const NetTypeBidirectional uint8 = 1

// attribute keys carried by QoS metadata and link status updates
const (
	AttrPriority  uint8 = 1
	AttrBandwidth uint8 = 2
)

func scope(last byte) string {
	return strings.Repeat("\xff", LabelLen-1) + string([]byte{last})
}

// well-known control scopes
var (
	ReqScope      = scope(0xfe)
	UcReqScope    = scope(0xfd)
	RespPrefix    = scope(0xfd)
	ReslScope     = scope(0xf0)
	ReslRespScope = scope(0xf1)
	ReslReqScope  = scope(0xf2)
	UcReslScope   = scope(0xf3)
	PathMgmtScope = scope(0xf9)
	LSMScope      = scope(0xfb)
	LSNScope      = scope(201)

	// PathMgmtID is the item under which affected LIDs are published.
	PathMgmtID = PathMgmtScope + PathMgmtScope
	// UpdatePathID prefixes delivery notifications addressed to the RM.
	UpdatePathID = ReslScope
	// UpdateUnicastPathID prefixes unicast delivery notifications addressed to the RM.
	UpdateUnicastPathID = ReslScope + UcReslScope
	// DiscoverFailureID prefixes failure discovery requests addressed to the RM.
	DiscoverFailureID = ReslReqScope
	// UnicastDeliveryID is the scope of unicast path requests.
	UnicastDeliveryID = ReqScope + UcReqScope
	// RecoverUnicastDeliveryID is the scope of unicast re-route requests from the RM.
	RecoverUnicastDeliveryID = ReslRespScope + UcReslScope
)

var (
	DefaultTEDelay     = 60 * time.Second
	DefaultTEEpsilon   = 0.1
	DefaultTEBandwidth = 1e9
	DefaultMetadataTTL = 10 * time.Minute
	DispatchWarnAfter  = 4 * time.Millisecond
)
