package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mombiemala/nefeli-web-sub000/internal/geocode"
)

type stubGeocoder struct {
	loc *geocode.Location
	err error
}

func (s stubGeocoder) Lookup(ctx context.Context, place string) (*geocode.Location, error) {
	return s.loc, s.err
}

func TestLookupPlace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	g := stubGeocoder{loc: &geocode.Location{
		Name:      "Paris",
		Country:   "France",
		Latitude:  48.85,
		Longitude: 2.35,
		Timezone:  "Europe/Paris",
	}}

	var buf bytes.Buffer
	require.NoError(t, lookupPlace(context.Background(), &buf, g, zap.New(core), "Paris"))

	var got geocode.Location
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "Europe/Paris", got.Timezone)

	require.Equal(t, 1, logs.FilterMessage("geocoding place").Len())
	done := logs.FilterMessage("geocoded place").All()
	require.Len(t, done, 1)
	assert.Equal(t, zapcore.DebugLevel, done[0].Level)
	assert.Equal(t, "Paris, France", done[0].ContextMap()["match"])
}

func TestLookupPlace_Error(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	g := stubGeocoder{err: geocode.ErrNotFound}

	var buf bytes.Buffer
	err := lookupPlace(context.Background(), &buf, g, zap.New(core), "Atlantis")
	assert.ErrorIs(t, err, geocode.ErrNotFound)
	assert.Empty(t, buf.String())
	assert.Equal(t, 1, logs.FilterMessage("geocoding failed").Len())
}

func TestLoadConfig_VerboseEnablesDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))

	prevFile, prevVerbose := configFile, verbose
	t.Cleanup(func() { configFile, verbose = prevFile, prevVerbose })
	configFile = path

	verbose = false
	_, logger, err := loadConfig()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	verbose = true
	_, logger, err = loadConfig()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}
