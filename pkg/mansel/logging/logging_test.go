package logging_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wshanks/mansel/pkg/mansel/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    logging.Level
		wantErr bool
	}{
		{"debug", logging.LevelDebug, false},
		{"info", logging.LevelInfo, false},
		{"WARN", logging.LevelWarn, false},
		{"warning", logging.LevelWarn, false},
		{"error", logging.LevelError, false},
		{"bogus", logging.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := logging.ParseLevel(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, logging.ErrInvalidLevel)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitWithWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, logging.Init(logging.Config{Level: "debug", Writer: &buf}))
	defer func() { _ = logging.Close() }()

	logging.Get("testcomp").Info("hello", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "testcomp")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "value")
}

func TestComponentLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, logging.Init(logging.Config{
		Level:      "debug",
		Writer:     &buf,
		Components: map[string]string{"quiet": "error"},
	}))
	defer func() { _ = logging.Close() }()

	logging.Get("quiet").Info("should not appear")
	assert.NotContains(t, buf.String(), "should not appear")

	logging.Get("quiet").Error("must appear")
	assert.Contains(t, buf.String(), "must appear")
}

func TestInitInvalidLevel(t *testing.T) {
	err := logging.Init(logging.Config{Level: "nope"})
	assert.ErrorIs(t, err, logging.ErrInvalidLevel)
}

func TestInitCreatesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mansel.log")
	require.NoError(t, logging.Init(logging.Config{Level: "info", Path: path}))

	logging.Get("file").Info("to disk")
	require.NoError(t, logging.Close())

	assert.FileExists(t, path)
}

func TestGetBeforeInitIsSilent(t *testing.T) {
	// Must not panic; output goes to io.Discard.
	logging.Get("early").Info("dropped")
}
