package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cbudget.log")
	closer, err := Setup("debug", path)
	require.NoError(t, err)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	assert.Equal(t, log.DebugLevel, log.GetLevel())
	log.WithField("dataset", "xy5k-883e").Debug("fetched")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "dataset=xy5k-883e"))
}

func TestSetup_DefaultLevel(t *testing.T) {
	closer, err := Setup("", "")
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, log.WarnLevel, log.GetLevel())
}

func TestSetup_BadLevel(t *testing.T) {
	_, err := Setup("loud", "")
	assert.Error(t, err)
}
