package perf

import (
	"expvar"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency = metric.NewHistogram("1m1s")
	// PathCalcLatency is the time spent handling one inbound control message.
	PathCalcLatency = metric.NewHistogram("1m1s")
	EventsPerSecond = metric.NewCounter("10s1s")
)

func init() {
	expvar.Publish("icn:DispatchLatency (µs)", DispatchLatency)
	expvar.Publish("icn:PathCalcLatency (µs)", PathCalcLatency)
	expvar.Publish("icn:Events/s", EventsPerSecond)
}
