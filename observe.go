package cpsms

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var tracer = otel.Tracer("cpsms")

var (
	requestsTotal       metric.Int64Counter
	requestDuration     metric.Float64Histogram
	sendRecipientsTotal metric.Int64Counter
)

func init() {
	m := otel.Meter("cpsms")

	requestsTotal, _ = m.Int64Counter("cpsms_requests_total",
		metric.WithDescription("Total gateway requests by operation and outcome"))
	requestDuration, _ = m.Float64Histogram("cpsms_request_duration_ms",
		metric.WithDescription("Gateway round-trip duration"),
		metric.WithUnit("ms"))
	sendRecipientsTotal, _ = m.Int64Counter("cpsms_send_recipients_total",
		metric.WithDescription("Recipients accepted and rejected across send calls"))
}
