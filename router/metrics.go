package router

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	messagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pairchat_messages_sent_total",
		Help: "Messages accepted and persisted by the router.",
	})
	messagesForwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairchat_messages_forwarded_total",
		Help: "Inbound pushes to recipients, by outcome.",
	}, []string{"outcome"})
	statusTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairchat_status_transitions_total",
		Help: "Message status transitions applied.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(messagesSent, messagesForwarded, statusTransitions)
}
