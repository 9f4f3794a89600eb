// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package registryactor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics uses promauto for registration, but each Actor gets its own
// prometheus.Registry rather than registering into the global default:
// multiple Actor instances (as in tests) would otherwise collide
// registering the same metric name twice.
type metrics struct {
	registry      *prometheus.Registry
	messagesTotal *prometheus.CounterVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &metrics{
		registry: reg,
		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "skillhive_registry_actor_messages_total",
			Help: "Total messages dispatched by the registry actor, by action.",
		}, []string{"action"}),
	}
}
