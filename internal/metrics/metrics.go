// Package metrics defines the Prometheus instrumentation for the agent loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChatTurns counts handled user messages by outcome.
	ChatTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schedagent_chat_turns_total",
		Help: "User messages handled, by outcome.",
	}, []string{"outcome"})

	// ResolverRounds observes how many LLM rounds each turn took.
	ResolverRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "schedagent_resolver_rounds",
		Help:    "LLM rounds per handled message.",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	})

	// LLMRequestDuration observes LLM request latency.
	LLMRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "schedagent_llm_request_duration_seconds",
		Help:    "LLM chat request latency.",
		Buckets: prometheus.DefBuckets,
	})

	// LLMTokens counts tokens reported by the provider.
	LLMTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schedagent_llm_tokens_total",
		Help: "Token usage reported by the LLM provider.",
	}, []string{"direction"})

	// ToolExecutions counts tool dispatches by tool and outcome.
	ToolExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schedagent_tool_executions_total",
		Help: "Tool executions, by tool name and outcome.",
	}, []string{"tool", "outcome"})
)
