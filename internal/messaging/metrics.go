package messaging

import "github.com/prometheus/client_golang/prometheus"

var (
	inboundMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "salon",
		Subsystem: "messaging",
		Name:      "inbound_total",
		Help:      "Inbound WhatsApp messages by channel and outcome.",
	}, []string{"channel", "outcome"})

	outboundMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "salon",
		Subsystem: "messaging",
		Name:      "outbound_total",
		Help:      "Outbound replies by provider and outcome.",
	}, []string{"provider", "outcome"})
)

func init() {
	prometheus.MustRegister(inboundMessages, outboundMessages)
}
