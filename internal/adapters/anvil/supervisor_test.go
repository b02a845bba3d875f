package anvil

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
	"github.com/trebuchet-org/treb-anvil/internal/domain/config"
)

func newTestSupervisor(t *testing.T, binary string) *Supervisor {
	t.Helper()
	cfg := &config.RuntimeConfig{
		DataDir: t.TempDir(),
		Node:    config.NodeConfig{BinaryPath: binary},
	}
	return NewSupervisor(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// writeScript creates an executable shell script standing in for anvil.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "fake-anvil")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func TestStart_BinaryMissing(t *testing.T) {
	s := newTestSupervisor(t, "definitely-not-anvil-binary")

	_, err := s.Start(context.Background(), 9000, nil)
	require.Error(t, err)

	var notInstalled domain.NodeNotInstalledError
	assert.True(t, errors.As(err, &notInstalled))
	assert.Equal(t, "definitely-not-anvil-binary", notInstalled.Binary)
}

func TestStart_VersionProbeFails(t *testing.T) {
	bin := writeScript(t, "echo broken >&2\nexit 3\n")
	s := newTestSupervisor(t, bin)

	_, err := s.Start(context.Background(), 9000, nil)
	require.Error(t, err)

	var subprocess domain.NodeSubprocessError
	require.True(t, errors.As(err, &subprocess))
	assert.Contains(t, subprocess.Msg, "broken")
}

func TestStartWaitStop(t *testing.T) {
	bin := writeScript(t, `if [ "$1" = "--version" ]; then echo "anvil 1.0.0"; exit 0; fi
echo "Listening on 127.0.0.1:$2"
exec sleep 30
`)
	s := newTestSupervisor(t, bin)

	handle, err := s.Start(context.Background(), 9123, []string{"--port", "9123"})
	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.FileExists(t, handle.PidFile)

	err = s.WaitUntilListening(context.Background(), handle, 2*time.Second)
	require.NoError(t, err)

	require.NoError(t, s.Stop(handle))
	assert.False(t, handle.Running())
	assert.NoFileExists(t, handle.PidFile)

	// second stop is a no-op
	require.NoError(t, s.Stop(handle))
}

func TestWaitUntilListening_ExitedEarly(t *testing.T) {
	bin := writeScript(t, `if [ "$1" = "--version" ]; then exit 0; fi
echo "error: address in use"
exit 1
`)
	s := newTestSupervisor(t, bin)

	handle, err := s.Start(context.Background(), 9124, nil)
	require.NoError(t, err)

	err = s.WaitUntilListening(context.Background(), handle, 2*time.Second)
	require.Error(t, err)

	var subprocess domain.NodeSubprocessError
	assert.True(t, errors.As(err, &subprocess))
	require.NoError(t, s.Stop(handle))
}

func TestWaitUntilListening_Timeout(t *testing.T) {
	s := newTestSupervisor(t, "anvil")
	logPath := filepath.Join(t.TempDir(), "anvil.log")
	require.NoError(t, os.WriteFile(logPath, []byte("Starting...\n"), 0644))

	// a handle without a process never exits
	handle := domain.NewProcessHandle(nil, 9125, nil, logPath, filepath.Join(t.TempDir(), "pid"))

	err := s.WaitUntilListening(context.Background(), handle, 100*time.Millisecond)
	require.Error(t, err)

	var timeout domain.HandshakeTimeoutError
	require.True(t, errors.As(err, &timeout))
	assert.Equal(t, "http://127.0.0.1:9125", timeout.Endpoint)
}

func TestWaitUntilListening_MarkerAppearsLater(t *testing.T) {
	s := newTestSupervisor(t, "anvil")
	logPath := filepath.Join(t.TempDir(), "anvil.log")
	require.NoError(t, os.WriteFile(logPath, []byte("Starting...\n"), 0644))
	handle := domain.NewProcessHandle(nil, 9126, nil, logPath, "")

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(logPath, []byte("Starting...\nListening on 127.0.0.1:9126\n"), 0644)
	}()

	require.NoError(t, s.WaitUntilListening(context.Background(), handle, time.Second))
}

func TestStop_NilHandle(t *testing.T) {
	s := newTestSupervisor(t, "anvil")
	assert.NoError(t, s.Stop(nil))
}
