// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package api

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks liveness of a backing service.
type Pinger func(ctx context.Context) error

// healthDeps holds the health check probes.
type healthDeps struct {
	probes map[string]Pinger
}

// SetHealthProbes registers named backend probes for readiness.
func (h *Handler) SetHealthProbes(probes map[string]Pinger) {
	h.health = &healthDeps{probes: probes}
}

// Healthz reports process liveness. Always 200 while the process can
// serve requests.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "ok"})
}

// Readyz probes the backing services. Any failing probe turns the
// response into a 503 with per-backend detail.
// GET /readyz
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	status := map[string]string{}
	healthy := true

	if h.health != nil {
		for name, probe := range h.health.probes {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			err := probe(ctx)
			cancel()
			if err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
	}

	if !healthy {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "not ready", status)
		return
	}
	rw.Success(status)
}
