package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrecon/reconciler/internal/config"
)

func TestNew_Stdout(t *testing.T) {
	log, err := New("reconciler", config.LogCfg{Level: "debug"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	assert.Equal(t, os.Stdout, log.Out)
}

func TestNew_RotatedFile(t *testing.T) {
	dir := t.TempDir()
	log, err := New("reconciler", config.LogCfg{Level: "info", Dir: dir})
	require.NoError(t, err)

	log.WithField("component", "test").Info("hello")

	matches, err := filepath.Glob(filepath.Join(dir, "reconciler", "reconciler.log.*"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "component=test")
	assert.Contains(t, string(data), "msg=hello")
}

func TestNew_BadLevel(t *testing.T) {
	_, err := New("reconciler", config.LogCfg{Level: "loud"})
	assert.ErrorContains(t, err, "log level")
}
