package metric

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/arloliu/go-rhal/client"
	"github.com/arloliu/go-rhal/server"
)

const namespace = "rhal"

// Registry holds the Prometheus collectors of one process.
type Registry struct {
	reg *prometheus.Registry
}

// NewRegistry creates a Registry with the Go runtime and process collectors registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{reg: reg}
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.reg
}

// RegisterServer registers the collectors of a server's metrics.
func (r *Registry) RegisterServer(m *server.Metrics) error {
	if m == nil {
		return errors.New("server metrics is nil")
	}
	return r.register(ServerCollectors(m, nil))
}

// RegisterClient registers the collectors of a client connection's metrics.
// labels tell connections apart when a process holds several, e.g. {"server": addr}.
func (r *Registry) RegisterClient(m *client.Metrics, labels prometheus.Labels) error {
	if m == nil {
		return errors.New("client metrics is nil")
	}
	return r.register(ClientCollectors(m, labels))
}

func (r *Registry) register(cs []prometheus.Collector) error {
	for i, c := range cs {
		if err := r.reg.Register(c); err != nil {
			// leave the registry as it was
			for _, done := range cs[:i] {
				r.reg.Unregister(done)
			}

			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				return fmt.Errorf("metrics already registered: %w", err)
			}
			return fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return nil
}

// ServerCollectors returns collectors reading m.
func ServerCollectors(m *server.Metrics, labels prometheus.Labels) []prometheus.Collector {
	const sub = "server"

	return []prometheus.Collector{
		counterFunc(sub, "connections_accepted_total", "Number of accepted connections.", labels,
			func() float64 { return float64(m.ConnAcceptCount.Load()) }),
		gaugeFunc(sub, "connections_active", "Number of open connections.", labels,
			func() float64 { return float64(m.ConnActiveGauge.Load()) }),
		counterFunc(sub, "requests_total", "Number of decoded requests.", labels,
			func() float64 { return float64(m.RequestCount.Load()) }),
		counterFunc(sub, "responses_sent_total", "Number of responses written.", labels,
			func() float64 { return float64(m.ResponseSendCount.Load()) }),
		counterFunc(sub, "malformed_frames_total", "Number of frames dropped because they did not decode.", labels,
			func() float64 { return float64(m.MalformedCount.Load()) }),
		counterFunc(sub, "driver_errors_total", "Number of requests answered with an error response.", labels,
			func() float64 { return float64(m.DriverErrCount.Load()) }),
		gaugeFunc(sub, "requests_inflight", "Number of requests being handled.", labels,
			func() float64 { return float64(m.InflightCount.Load()) }),
	}
}

// ClientCollectors returns collectors reading m.
func ClientCollectors(m *client.Metrics, labels prometheus.Labels) []prometheus.Collector {
	const sub = "client"

	return []prometheus.Collector{
		counterFunc(sub, "requests_sent_total", "Number of requests written to the connection.", labels,
			func() float64 { return float64(m.RequestSendCount.Load()) }),
		counterFunc(sub, "responses_received_total", "Number of responses decoded.", labels,
			func() float64 { return float64(m.ResponseRecvCount.Load()) }),
		counterFunc(sub, "responses_dropped_total", "Number of responses whose id matched no pending call.", labels,
			func() float64 { return float64(m.ResponseDropCount.Load()) }),
		counterFunc(sub, "decode_errors_total", "Number of frames that did not decode.", labels,
			func() float64 { return float64(m.DecodeErrCount.Load()) }),
		counterFunc(sub, "timeouts_total", "Number of calls that timed out.", labels,
			func() float64 { return float64(m.TimeoutCount.Load()) }),
		gaugeFunc(sub, "requests_inflight", "Number of calls waiting for a response.", labels,
			func() float64 { return float64(m.InflightCount.Load()) }),
	}
}

func counterFunc(sub, name, help string, labels prometheus.Labels, f func() float64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   sub,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	}, f)
}

func gaugeFunc(sub, name, help string, labels prometheus.Labels, f func() float64) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   sub,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	}, f)
}
