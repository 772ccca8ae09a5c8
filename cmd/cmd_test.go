package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"civicsync/config"
	"civicsync/ledger"
	"civicsync/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestRootCommands(t *testing.T) {
	root := rootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["reconcile"])

	reconcile, _, err := root.Find([]string{"reconcile"})
	require.NoError(t, err)
	assert.NotNil(t, reconcile.Flags().Lookup("repair"))
}

func TestReconcileOnMemoryStore(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("JWT_SECRET", "test")
	t.Setenv("REDIS_ADDRESS", "")
	t.Setenv("REWARDS_CONFIG", "")
	t.Setenv("LOG_LEVEL", "error")

	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"reconcile", "--env-file", filepath.Join(t.TempDir(), "missing.env")})
	require.NoError(t, root.Execute())

	var report ledger.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Zero(t, report.ProfilesChecked)
	assert.Empty(t, report.Divergences)
}

func TestServeRejectsBadConfig(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("JWT_SECRET", "")

	root := rootCmd()
	root.SetArgs([]string{"serve", "--env-file", filepath.Join(t.TempDir(), "missing.env")})
	assert.Error(t, root.Execute())
}

func TestServeShutdownEndsOpenStreams(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("JWT_SECRET", "test")
	t.Setenv("REDIS_ADDRESS", "")
	t.Setenv("REWARDS_CONFIG", "")
	cfg, err := config.Load()
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close(context.Background())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	served := make(chan error, 1)
	go func() { served <- a.serveOn(ctx, ln, a.router()) }()

	responses := make(chan *http.Response, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/issues/stream")
		if err == nil {
			responses <- resp
		}
	}()

	// Headers are flushed with the first event, so publish until the stream opens.
	var resp *http.Response
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(5 * time.Second)
	for resp == nil {
		select {
		case resp = <-responses:
		case <-ticker.C:
			_ = a.bus.Publish(context.Background(), models.IssueEvent{
				Type:    "issue_created",
				IssueID: primitive.NewObjectID(),
				Status:  models.Pending,
			})
		case <-deadline:
			t.Fatal("stream never opened")
		}
	}
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	drained := make(chan struct{})
	go func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		close(drained)
	}()

	start := time.Now()
	cancel()
	select {
	case err := <-served:
		require.NoError(t, err)
		assert.Less(t, time.Since(start), shutdownTimeout/2)
	case <-time.After(shutdownTimeout):
		t.Fatal("shutdown waited for the open stream")
	}
	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("stream body was not closed")
	}
}
