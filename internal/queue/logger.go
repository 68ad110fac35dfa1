// Loghub - Multi-Tenant Audit Log Ingestion and Query Service
// Copyright 2026 Ocelot Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ocelotlabs/loghub

package queue

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/ocelotlabs/loghub/internal/logging"
)

// watermillLogger bridges Watermill's logging interface onto zerolog
// so queue internals log through the same pipeline as everything else.
type watermillLogger struct {
	logger zerolog.Logger
}

// NewLoggerAdapter returns a watermill.LoggerAdapter backed by the
// global logger.
func NewLoggerAdapter() watermill.LoggerAdapter {
	return &watermillLogger{logger: logging.Logger()}
}

func (l *watermillLogger) event(e *zerolog.Event, msg string, fields watermill.LogFields) {
	for key, value := range fields {
		e = e.Interface(key, value)
	}
	e.Msg(msg)
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	l.event(l.logger.Error().Err(err), msg, fields)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	l.event(l.logger.Info(), msg, fields)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	l.event(l.logger.Debug(), msg, fields)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	l.event(l.logger.Trace(), msg, fields)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := l.logger.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}
	return &watermillLogger{logger: ctx.Logger()}
}
