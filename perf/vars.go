package perf

import (
	"expvar"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency      = metric.NewHistogram("1m1s")
	EstablishLatency     = metric.NewHistogram("1m1s")
	EstablishesPerSecond = metric.NewCounter("10s1s")
	EstablishFailures    = metric.NewCounter("10s1s")
	RefreshesPerSecond   = metric.NewCounter("10s1s")
	ClosesPerSecond      = metric.NewCounter("10s1s")
)

func init() {
	expvar.Publish("weave:DispatchLatency (µs)", DispatchLatency)
	expvar.Publish("weave:EstablishLatency (ms)", EstablishLatency)
	expvar.Publish("weave:Establishes/s", EstablishesPerSecond)
	expvar.Publish("weave:EstablishFailures/s", EstablishFailures)
	expvar.Publish("weave:Refreshes/s", RefreshesPerSecond)
	expvar.Publish("weave:Closes/s", ClosesPerSecond)
}
