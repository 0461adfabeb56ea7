package server

import "sync/atomic"

// Metrics contains atomic metrics of a server.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// ConnAcceptCount indicates the number of accepted connections.
	ConnAcceptCount atomic.Uint64
	// ConnActiveGauge indicates the number of open connections.
	ConnActiveGauge atomic.Int64

	// RequestCount indicates the number of decoded requests.
	RequestCount atomic.Uint64
	// ResponseSendCount indicates the number of responses written.
	ResponseSendCount atomic.Uint64
	// MalformedCount indicates the number of frames dropped because they did not decode.
	MalformedCount atomic.Uint64
	// DriverErrCount indicates the number of requests answered with an error response.
	DriverErrCount atomic.Uint64
	// InflightCount indicates the number of requests being handled.
	InflightCount atomic.Int64
}

func (m *Metrics) incConnAcceptCount() {
	m.ConnAcceptCount.Add(1)
}

func (m *Metrics) incConnActiveGauge() {
	m.ConnActiveGauge.Add(1)
}

func (m *Metrics) decConnActiveGauge() {
	m.ConnActiveGauge.Add(-1)
}

func (m *Metrics) incRequestCount() {
	m.RequestCount.Add(1)
}

func (m *Metrics) incResponseSendCount() {
	m.ResponseSendCount.Add(1)
}

func (m *Metrics) incMalformedCount() {
	m.MalformedCount.Add(1)
}

func (m *Metrics) incDriverErrCount() {
	m.DriverErrCount.Add(1)
}

func (m *Metrics) incInflightCount() {
	m.InflightCount.Add(1)
}

func (m *Metrics) decInflightCount() {
	m.InflightCount.Add(-1)
}
