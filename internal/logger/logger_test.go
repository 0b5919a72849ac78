// Copyright 2024 Vadim Vygonets.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewProduction(t *testing.T) {
	p := filepath.Join(t.TempDir(), "log.json")
	log, err := New(Config{Level: "warn", Production: true, Output: []string{p}})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	log.Warn("disk low", zap.Int("free", 3))
	require.NoError(t, log.Sync())
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "warn", m["level"])
	assert.Equal(t, "disk low", m["msg"])
	assert.Equal(t, float64(3), m["free"])
	assert.Regexp(t, `^\d{4}-\d\d-\d\dT`, m["ts"])
}

func TestNewDevelopment(t *testing.T) {
	log, err := New(Config{Level: "debug", Output: []string{filepath.Join(t.TempDir(), "log")}})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = New(Config{})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))

	_, err = New(Config{Level: "loud"})
	assert.Error(t, err)
}
