// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var authFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "loghub_auth_failures_total",
		Help: "Rejected requests by auth failure code",
	},
	[]string{"code"},
)

func recordFailure(err error) {
	authFailures.WithLabelValues(Code(err)).Inc()
}
