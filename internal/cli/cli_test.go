package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/chatflow/internal/config"
	"github.com/aretw0/chatflow/internal/logging"
	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRuntime(t *testing.T, cfg config.Config, opts ...RuntimeOption) *Runtime {
	t.Helper()
	rt, err := NewRuntime(context.Background(), cfg, logging.NewNop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestNewRuntime_Defaults(t *testing.T) {
	reg := prometheus.NewRegistry()
	rt := newRuntime(t, config.Default(), WithRegisterer(reg))

	_, err := rt.Engine.ProcessMessage(context.Background(), "u1", "Hi", "")
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewRuntime_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Redis.Addr = mr.Addr()
	rt := newRuntime(t, cfg)

	_, err := rt.Engine.ProcessMessage(context.Background(), "u1", "Hi", "")
	require.NoError(t, err)
	assert.True(t, mr.Exists("chatflow:session:u1"))
}

func TestNewRuntime_FileStore(t *testing.T) {
	cfg := config.Default()
	cfg.StoreDir = t.TempDir()
	ctx := context.Background()

	rt := newRuntime(t, cfg)
	_, err := rt.Engine.ProcessMessage(ctx, "u1", "Hi", "")
	require.NoError(t, err)

	// A second runtime on the same directory sees the conversation.
	again := newRuntime(t, cfg)
	uc, ok := again.Engine.GetUserContext(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, 1, uc.TurnCount())
}

func TestNewRuntime_SecuredStore(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.StoreDir = dir
	cfg.Security = config.SecurityConfig{
		EncryptionKey: "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA=",
		PIIKeys:       []string{"email"},
	}
	ctx := context.Background()

	rt := newRuntime(t, cfg)
	_, err := rt.Engine.SetPreferences(ctx, "u1", map[string]any{"email": "ana@example.com"})
	require.NoError(t, err)
	_, err = rt.Engine.ProcessMessage(ctx, "u1", "I'm looking for a house in Miami", "")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	raw, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Miami")
	assert.NotContains(t, string(raw), "ana@example.com")

	uc, ok := rt.Engine.GetUserContext(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, "***", uc.Preferences["email"])
	assert.Equal(t, 1, uc.TurnCount())
}

func TestNewRuntime_Errors(t *testing.T) {
	dir := t.TempDir()
	badTable := filepath.Join(dir, "table.yaml")
	require.NoError(t, os.WriteFile(badTable, []byte("greeting: {default: nowhere}\n"), 0o600))

	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"Missing locale dir", func(c *config.Config) { c.LocaleDir = filepath.Join(dir, "missing") }},
		{"Invalid transition table", func(c *config.Config) { c.TransitionsPath = badTable }},
		{"Unreachable redis", func(c *config.Config) { c.Redis.Addr = "127.0.0.1:1" }},
		{"Invalid PII pattern", func(c *config.Config) { c.Security.PIIKeys = []string{"("} }},
		{"Short encryption key", func(c *config.Config) { c.Security.EncryptionKey = "c2hvcnQ=" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			_, err := NewRuntime(context.Background(), cfg, logging.NewNop())
			assert.Error(t, err)
		})
	}
}

func TestNewRuntime_WithHooks(t *testing.T) {
	var turns int
	rt := newRuntime(t, config.Default(), WithHooks(domain.LifecycleHooks{
		OnTurnEnd: func(context.Context, *domain.TurnEvent) { turns++ },
	}))

	_, err := rt.Engine.ProcessMessage(context.Background(), "u1", "Hi", "")
	require.NoError(t, err)
	assert.Equal(t, 1, turns)
}

func TestChat_Run(t *testing.T) {
	rt := newRuntime(t, config.Default())
	input := strings.Join([]string{
		"/context",
		"Hi",
		"/name Ana",
		"I'm looking for a house in Miami",
		"/flow",
		"/quality",
		"/lang es",
		"/graph",
		"/bogus",
		"/quit",
		"never processed",
	}, "\n") + "\n"

	var out bytes.Buffer
	chat := NewChat(rt.Engine, strings.NewReader(input), &out, ChatOptions{UserID: "ana", Verbose: true})
	require.NoError(t, chat.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "No conversation yet.")
	assert.Contains(t, text, "Nice to meet you, Ana.")
	assert.Contains(t, text, "state=greeting intent=greeting")
	assert.Contains(t, text, "[greeting needs_assessment]")
	assert.Contains(t, text, "over 2 turns")
	assert.Contains(t, text, "Language set to es.")
	assert.Contains(t, text, "class needs_assessment current;")
	assert.Contains(t, text, "unknown command /bogus")
	assert.Contains(t, text, "Bye!")
	assert.NotContains(t, text, "v0.1.0", "plain mode prints no banner")

	uc, ok := rt.Engine.GetUserContext(context.Background(), "ana")
	require.True(t, ok)
	assert.Equal(t, 2, uc.TurnCount())
	assert.Equal(t, "cli", uc.Channel)
}

func TestChat_EOFAndReset(t *testing.T) {
	rt := newRuntime(t, config.Default())

	var out bytes.Buffer
	chat := NewChat(rt.Engine, strings.NewReader("Hi\n/reset\n"), &out, ChatOptions{UserID: "bob"})
	require.NoError(t, chat.Run(context.Background()))

	assert.Contains(t, out.String(), "Conversation forgotten.")
	_, ok := rt.Engine.GetUserContext(context.Background(), "bob")
	assert.False(t, ok)
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := config.Default()
	cfg.Addr = "127.0.0.1:0"
	cfg.IdleTimeout = time.Minute
	cfg.JanitorInterval = 10 * time.Millisecond
	rt := newRuntime(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, rt, prometheus.NewRegistry()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout + time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
