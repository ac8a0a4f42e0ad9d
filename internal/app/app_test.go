package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// A listen failure must still shut the worker pool down and release
// dependencies instead of leaving Run's goroutines behind.
func TestRunReleasesWorkersOnServerError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	cfg := fmt.Sprintf("addr: %q\ndownload_dir: %q\n", ln.Addr().String(), t.TempDir())
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	t.Setenv("CONFIG_PATH", cfgPath)

	ctx := context.Background()
	a := New(ctx)

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the listen failure")
	}
}
