// Package metric exposes the connection metrics of rhal servers and clients to Prometheus.
//
// The atomic counters kept by server.Metrics and client.Metrics are read at scrape time
// through CounterFunc and GaugeFunc collectors, so registering them costs nothing on the
// request path.
package metric
