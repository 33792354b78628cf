package main

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/chat-client/chat"
)

// fakeClient records intents and serves a fixed snapshot.
type fakeClient struct {
	mu      sync.Mutex
	calls   []string
	snap    chat.Snapshot
	updates chan chat.Snapshot
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		snap:    chat.Snapshot{Identity: chat.DefaultIdentity, Messages: []chat.ChatMessage{}},
		updates: make(chan chat.Snapshot, 4),
	}
}

func (f *fakeClient) record(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, s)
}

func (f *fakeClient) Connect()                       { f.record("connect") }
func (f *fakeClient) SetIdentity(name string)        { f.record("identity:" + name) }
func (f *fakeClient) UpdateComposedText(text string) { f.record("draft:" + text) }
func (f *fakeClient) Send()                          { f.record("send") }

func (f *fakeClient) Snapshot() chat.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeClient) Subscribe() (<-chan chat.Snapshot, func()) {
	return f.updates, func() {}
}

func (f *fakeClient) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func TestResolveConfigDefaults(t *testing.T) {
	t.Setenv(envServerURL, "")
	flagConfig = ""
	cfg, err := resolveConfig(&cobra.Command{})
	require.NoError(t, err)
	assert.Equal(t, defaultServerURL, cfg.ServerURL)
	assert.True(t, cfg.AutoConnect)
	assert.Equal(t, 10*time.Second, cfg.DialTimeout)
}

func TestResolveConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url: ws://file.example/ws
name: filey
auto_connect: false
dial_timeout: 3s
bridge_addr: 127.0.0.1:9999
`), 0o644))

	flagConfig = path
	t.Cleanup(func() { flagConfig = "" })

	t.Setenv(envServerURL, "")
	cfg, err := resolveConfig(&cobra.Command{})
	require.NoError(t, err)
	assert.Equal(t, "ws://file.example/ws", cfg.ServerURL)
	assert.Equal(t, "filey", cfg.Name)
	assert.False(t, cfg.AutoConnect)
	assert.Equal(t, 3*time.Second, cfg.DialTimeout)
	assert.Equal(t, "127.0.0.1:9999", cfg.BridgeAddr)

	t.Setenv(envServerURL, "ws://env.example/ws")
	cfg, err = resolveConfig(&cobra.Command{})
	require.NoError(t, err)
	assert.Equal(t, "ws://env.example/ws", cfg.ServerURL)
}

func TestResolveConfigFlagsWin(t *testing.T) {
	t.Setenv(envServerURL, "ws://env.example/ws")
	flagConfig = ""

	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&flagServerURL, "server-url", defaultServerURL, "")
	cmd.Flags().BoolVar(&flagNoAuto, "no-auto-connect", false, "")
	require.NoError(t, cmd.ParseFlags([]string{"--server-url", "ws://flag.example/ws", "--no-auto-connect"}))

	cfg, err := resolveConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "ws://flag.example/ws", cfg.ServerURL)
	assert.False(t, cfg.AutoConnect)
}

func TestConfigValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Headless = true
	assert.Error(t, cfg.validate())

	cfg.BridgeAddr = "127.0.0.1:0"
	assert.NoError(t, cfg.validate())

	cfg.ServerURL = ""
	assert.Error(t, cfg.validate())
}

func TestConfigValidateDialTimeout(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		cfg := defaultConfig()
		cfg.DialTimeout = d
		assert.Error(t, cfg.validate(), "dial timeout %s", d)
	}

	path := filepath.Join(t.TempDir(), "chat.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dial_timeout: 0s\n"), 0o644))
	flagConfig = path
	t.Cleanup(func() { flagConfig = "" })
	t.Setenv(envServerURL, "")

	_, err := resolveConfig(&cobra.Command{})
	assert.ErrorContains(t, err, "dial timeout")
}

func TestLoadConfigFileErrors(t *testing.T) {
	cfg := defaultConfig()
	assert.Error(t, loadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"), &cfg))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: [oops"), 0o644))
	assert.Error(t, loadConfigFile(path, &cfg))
}
