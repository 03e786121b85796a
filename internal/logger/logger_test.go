package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProdIsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New("prod", &buf)
	l.Debug("hidden")
	l.Info("hold created", "booking_id", 7)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hold created", rec["msg"])
	assert.EqualValues(t, 7, rec["booking_id"])
}

func TestNew_DevIsTextAtDebug(t *testing.T) {
	var buf bytes.Buffer
	New("dev", &buf).Debug("sweep", "released", 2)
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "released=2")
}

func TestNew_LevelOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	var buf bytes.Buffer
	New("dev", &buf).Info("quiet")
	assert.Empty(t, buf.String())
}
