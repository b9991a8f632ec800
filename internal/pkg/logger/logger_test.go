package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSONFields(t *testing.T) {
	l := NewLogger(&Config{Level: "debug", Format: "json"}).(*Logger)
	var buf bytes.Buffer
	l.SetOutput(&buf)

	h := log.NewHelper(log.With(l, "service.name", "credit-service"))
	h.Infof("deducted %d credits", 2)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "deducted 2 credits", line["msg"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "credit-service", line["service.name"])
}

func TestLoggerRespectsLevel(t *testing.T) {
	l := NewLogger(&Config{Level: "warn", Format: "json"}).(*Logger)
	var buf bytes.Buffer
	l.SetOutput(&buf)

	h := log.NewHelper(l)
	h.Info("hidden")
	assert.Zero(t, buf.Len())

	h.Error("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestLoggerUnpairedKeyvals(t *testing.T) {
	l := NewLogger(nil).(*Logger)
	var buf bytes.Buffer
	l.SetOutput(&buf)

	require.NoError(t, l.Log(log.LevelWarn, "msg", "odd", "dangling"))
	assert.Contains(t, buf.String(), "KEYVALS UNPAIRED")
}
