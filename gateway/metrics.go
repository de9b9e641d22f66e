// Copyright 2025 NutriChat
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promChatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrichat_gateway_chat_requests_total",
			Help: "Total number of chat requests processed by the gateway",
		},
		[]string{"status"},
	)
	promChatDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nutrichat_gateway_chat_duration_milliseconds",
			Help:    "End-to-end chat request duration in milliseconds",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 20000, 30000},
		},
	)
	promQuotaRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrichat_gateway_quota_rejections_total",
			Help: "Total number of requests rejected by quota or cooldown checks",
		},
		[]string{"reason"},
	)
	promAssistantCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrichat_gateway_assistant_jobs_total",
			Help: "Total number of assistant jobs submitted",
		},
		[]string{"status"},
	)
	promWebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutrichat_gateway_webhook_events_total",
			Help: "Total number of payment webhook events received",
		},
		[]string{"event", "status"},
	)
)

func init() {
	// Register Prometheus metrics
	prometheus.MustRegister(promChatRequestsTotal)
	prometheus.MustRegister(promChatDuration)
	prometheus.MustRegister(promQuotaRejections)
	prometheus.MustRegister(promAssistantCalls)
	prometheus.MustRegister(promWebhookEvents)
}
