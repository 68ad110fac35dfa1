// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

// Package api implements the HTTP surface of the service. Every
// endpoint speaks the same response envelope.
package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/ocelotlabs/loghub/internal/logging"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorBody carries a machine-readable code plus a human message.
type ErrorBody struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// Meta is response metadata.
type Meta struct {
	RequestID  string      `json:"request_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination describes one page of a list response.
type Pagination struct {
	Total   int64 `json:"total"`
	Count   int   `json:"count"`
	Page    int64 `json:"page"`
	Limit   int64 `json:"limit"`
	HasMore bool  `json:"has_more"`
}

// ResponseWriter writes enveloped responses for one request.
type ResponseWriter struct {
	w http.ResponseWriter
	r *http.Request
}

// NewResponseWriter binds a writer to a request.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{w: w, r: r}
}

func (rw *ResponseWriter) meta(pagination *Pagination) *Meta {
	return &Meta{
		RequestID:  logging.RequestIDFromContext(rw.r.Context()),
		Timestamp:  time.Now().UTC(),
		Pagination: pagination,
	}
}

// Success writes a 200 with data.
func (rw *ResponseWriter) Success(data interface{}) {
	rw.writeJSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
		Meta:    rw.meta(nil),
	})
}

// SuccessWithPagination writes a 200 list response.
func (rw *ResponseWriter) SuccessWithPagination(data interface{}, pagination *Pagination) {
	rw.writeJSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
		Meta:    rw.meta(pagination),
	})
}

// Created writes a 201 with data.
func (rw *ResponseWriter) Created(data interface{}) {
	rw.writeJSON(http.StatusCreated, Response{
		Success: true,
		Data:    data,
		Meta:    rw.meta(nil),
	})
}

// Accepted writes a 202 with data, for work handed to the queue.
func (rw *ResponseWriter) Accepted(data interface{}) {
	rw.writeJSON(http.StatusAccepted, Response{
		Success: true,
		Data:    data,
		Meta:    rw.meta(nil),
	})
}

// NoContent writes a 204.
func (rw *ResponseWriter) NoContent() {
	rw.w.WriteHeader(http.StatusNoContent)
}

// Error writes an error envelope.
func (rw *ResponseWriter) Error(statusCode int, code, message string) {
	rw.ErrorWithDetails(statusCode, code, message, nil)
}

// ErrorWithDetails writes an error envelope with extra details.
func (rw *ResponseWriter) ErrorWithDetails(statusCode int, code, message string, details interface{}) {
	requestID := logging.RequestIDFromContext(rw.r.Context())

	rw.writeJSON(statusCode, Response{
		Success: false,
		Error: &ErrorBody{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: requestID,
		},
		Meta: rw.meta(nil),
	})
}

func (rw *ResponseWriter) writeJSON(statusCode int, response Response) {
	rw.w.Header().Set("Content-Type", "application/json")
	rw.w.WriteHeader(statusCode)

	if err := json.NewEncoder(rw.w).Encode(response); err != nil {
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("write response failed")
	}
}
