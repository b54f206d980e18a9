// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package log

import (
	"errors"
	"testing"

	"github.com/luxfi/node/utils/logging"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	require := require.New(t)

	lvl, err := ParseLevel("DEBUG")
	require.NoError(err)
	require.Equal(logging.Debug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(err)
	require.Equal(logging.Info, lvl)

	_, err = ParseLevel("verbose")
	require.Error(err)

	_, err = NewWithLevel("verbose")
	require.Error(err)
}

func TestFieldsReachZap(t *testing.T) {
	require := require.New(t)

	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core)).With(String("component", "settlement"))

	l.Warn("proof rejected", Uint64("nonce", 5), Error(errors.New("replayed nonce")))
	l.Debug("settled", Int("plays", 2))

	entries := logs.All()
	require.Len(entries, 2)
	require.Equal("proof rejected", entries[0].Message)
	fields := entries[0].ContextMap()
	require.Equal("settlement", fields["component"])
	require.Equal(uint64(5), fields["nonce"])
	require.Equal("replayed nonce", fields["error"])
}

func TestNoOp(t *testing.T) {
	l := NoOp().With(String("k", "v"))
	l.Info("ignored")
	require.NoError(t, l.Sync())
}

type recordedEntry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

type recordingSink struct {
	entries []recordedEntry
	stopped int
}

func (r *recordingSink) record(level, msg string, fields []zap.Field) {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	r.entries = append(r.entries, recordedEntry{level: level, msg: msg, fields: enc.Fields})
}

func (r *recordingSink) Debug(msg string, fields ...zap.Field) { r.record("debug", msg, fields) }
func (r *recordingSink) Info(msg string, fields ...zap.Field)  { r.record("info", msg, fields) }
func (r *recordingSink) Warn(msg string, fields ...zap.Field)  { r.record("warn", msg, fields) }
func (r *recordingSink) Error(msg string, fields ...zap.Field) { r.record("error", msg, fields) }
func (r *recordingSink) Fatal(msg string, fields ...zap.Field) { r.record("fatal", msg, fields) }
func (r *recordingSink) Stop()                                 { r.stopped++ }

func TestLuxLoggerCarriesFields(t *testing.T) {
	require := require.New(t)

	out := &recordingSink{}
	exitCode := -1
	base := &luxLogger{log: out, exit: func(code int) { exitCode = code }}
	engine := base.With(String("component", "engine"))
	api := base.With(String("component", "api"))

	engine.With(Uint64("nonce", 7)).Warn("proof rejected", String("kind", "replayed_nonce"))
	api.Info("listening")
	base.Debug("bare")

	require.Len(out.entries, 3)
	require.Equal("warn", out.entries[0].level)
	require.Equal(map[string]interface{}{"component": "engine", "nonce": uint64(7), "kind": "replayed_nonce"}, out.entries[0].fields)
	require.Equal(map[string]interface{}{"component": "api"}, out.entries[1].fields)
	require.Empty(out.entries[2].fields)

	require.NoError(engine.Sync())
	require.Equal(1, out.stopped)

	engine.Fatal("store unavailable")
	require.Equal("fatal", out.entries[3].level)
	require.Equal(2, out.stopped)
	require.Equal(1, exitCode)
}
