package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapSource map[string]string

func (m mapSource) Lookup(name string) (string, bool) {
	val, ok := m[name]
	return val, ok
}

func TestRequiredSettings(t *testing.T) {
	c := New(mapSource{})

	_, err := c.BadgerPath()
	assert.ErrorIs(t, err, ErrEnvVariableNotSet)

	_, err = c.PushoverAPIToken()
	assert.ErrorIs(t, err, ErrEnvVariableNotSet)

	c = New(mapSource{BadgerPathEnv: " /tmp/pillpal ", PushoverAPITokenEnv: "tok"})

	path, err := c.BadgerPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pillpal", path)

	token, err := c.PushoverAPIToken()
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestDefaults(t *testing.T) {
	c := New(mapSource{})

	addr, _ := c.ListenAddr()
	assert.Equal(t, DefaultListenAddr, addr)

	fda, err := c.OpenFDABaseURL()
	require.NoError(t, err)
	assert.Equal(t, "https://api.fda.gov", fda)

	window, err := c.EventWindow()
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour, window)

	timeout, err := c.CollaboratorTimeout()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, timeout)

	spec, _ := c.PollSchedule()
	assert.Equal(t, "@every 5m", spec)

	loc, err := c.Timezone()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg, err := c.LLM()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestInvalidValues(t *testing.T) {
	c := New(mapSource{EventWindowEnv: "soon", TimezoneEnv: "Mars/Olympus"})

	_, err := c.EventWindow()
	assert.Error(t, err)

	_, err = c.Timezone()
	assert.Error(t, err)
}

func TestEnv(t *testing.T) {
	t.Setenv(BadgerPathEnv, "/data/badger")
	t.Setenv(EventWindowEnv, "6h")

	c, err := Load("")
	require.NoError(t, err)

	path, err := c.BadgerPath()
	require.NoError(t, err)
	assert.Equal(t, "/data/badger", path)

	window, err := c.EventWindow()
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour, window)
}

func TestFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pillpal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("badger_path: /from/file\nevent_window: 4h\nllm_provider: Claude\nlisten_addr: \":9000\"\n"), 0o600))

	t.Setenv(EventWindowEnv, "2h")

	c, err := Load(path)
	require.NoError(t, err)

	badgerPath, err := c.BadgerPath()
	require.NoError(t, err)
	assert.Equal(t, "/from/file", badgerPath)

	window, err := c.EventWindow()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, window)

	addr, _ := c.ListenAddr()
	assert.Equal(t, ":9000", addr)

	cfg, err := c.LLM()
	require.NoError(t, err)
	assert.Equal(t, "claude", cfg.Provider)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
