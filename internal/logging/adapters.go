// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package logging

import (
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// WatermillLogger implements watermill.LoggerAdapter on zerolog.
type WatermillLogger struct {
	logger zerolog.Logger
}

// NewWatermillLogger returns a watermill adapter tagged with component=watermill.
func NewWatermillLogger() *WatermillLogger {
	return &WatermillLogger{logger: WithComponent("watermill")}
}

func (w *WatermillLogger) event(e *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	return e
}

// Error logs at error level.
func (w *WatermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.event(w.logger.Error().Err(err), fields).Msg(msg)
}

// Info logs at info level.
func (w *WatermillLogger) Info(msg string, fields watermill.LogFields) {
	w.event(w.logger.Info(), fields).Msg(msg)
}

// Debug logs at debug level.
func (w *WatermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.event(w.logger.Debug(), fields).Msg(msg)
}

// Trace logs at trace level.
func (w *WatermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.event(w.logger.Trace(), fields).Msg(msg)
}

// With returns a child adapter carrying fields.
func (w *WatermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := w.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &WatermillLogger{logger: ctx.Logger()}
}

// SaramaLogger satisfies sarama.StdLogger. Sarama is chatty at info, so
// everything it emits is written at debug level.
type SaramaLogger struct {
	logger zerolog.Logger
}

// NewSaramaLogger returns an adapter tagged with component=sarama.
func NewSaramaLogger() *SaramaLogger {
	return &SaramaLogger{logger: WithComponent("sarama")}
}

// Print implements sarama.StdLogger.
func (s *SaramaLogger) Print(v ...interface{}) {
	s.logger.Debug().Msg(strings.TrimSpace(fmt.Sprint(v...)))
}

// Printf implements sarama.StdLogger.
func (s *SaramaLogger) Printf(format string, v ...interface{}) {
	s.logger.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Println implements sarama.StdLogger.
func (s *SaramaLogger) Println(v ...interface{}) {
	s.logger.Debug().Msg(strings.TrimSpace(fmt.Sprintln(v...)))
}
