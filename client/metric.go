package client

import "sync/atomic"

// Metrics contains atomic metrics of a client connection.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// RequestSendCount indicates the number of requests written to the connection.
	RequestSendCount atomic.Uint64
	// ResponseRecvCount indicates the number of responses decoded.
	ResponseRecvCount atomic.Uint64
	// ResponseDropCount indicates the number of responses whose id matched no pending call.
	ResponseDropCount atomic.Uint64
	// DecodeErrCount indicates the number of frames that did not decode.
	DecodeErrCount atomic.Uint64
	// TimeoutCount indicates the number of calls that timed out.
	TimeoutCount atomic.Uint64
	// InflightCount indicates the number of calls waiting for a response.
	InflightCount atomic.Int64
}

func (m *Metrics) incRequestSendCount() {
	m.RequestSendCount.Add(1)
}

func (m *Metrics) incResponseRecvCount() {
	m.ResponseRecvCount.Add(1)
}

func (m *Metrics) incResponseDropCount() {
	m.ResponseDropCount.Add(1)
}

func (m *Metrics) incDecodeErrCount() {
	m.DecodeErrCount.Add(1)
}

func (m *Metrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *Metrics) incInflightCount() {
	m.InflightCount.Add(1)
}

func (m *Metrics) decInflightCount() {
	m.InflightCount.Add(-1)
}
