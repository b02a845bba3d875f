package anvil

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
	"github.com/trebuchet-org/treb-anvil/internal/domain/config"
)

const (
	DefaultBinary = "anvil"

	// ListeningMarker prefixes the log line anvil prints once it accepts requests.
	ListeningMarker = "Listening on"

	// ListenPollIterations is how many times the log is checked within the timeout.
	ListenPollIterations = 10

	// StopTimeout is how long a process gets to exit after SIGTERM.
	StopTimeout = 5 * time.Second
)

var errNotListening = errors.New("anvil not listening yet")

// Supervisor starts and stops anvil processes. Output is captured to a log
// file per port under the data directory.
type Supervisor struct {
	binary  string
	dataDir string
	log     *slog.Logger
}

// NewSupervisor creates a supervisor from runtime config
func NewSupervisor(cfg *config.RuntimeConfig, log *slog.Logger) *Supervisor {
	binary := cfg.Node.BinaryPath
	if binary == "" {
		binary = DefaultBinary
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = os.TempDir()
	}
	return &Supervisor{
		binary:  binary,
		dataDir: dataDir,
		log:     log.With("component", "anvil"),
	}
}

// BuildCommand returns the anvil arguments for the launch options.
func (s *Supervisor) BuildCommand(opts config.LaunchOptions) []string {
	return BuildCommand(opts)
}

// Start launches anvil with args after checking the binary exists and
// answers a version probe.
func (s *Supervisor) Start(ctx context.Context, port int, args []string) (*domain.ProcessHandle, error) {
	bin, err := exec.LookPath(s.binary)
	if err != nil {
		return nil, domain.NodeNotInstalledError{Binary: s.binary}
	}

	out, err := exec.CommandContext(ctx, bin, "--version").CombinedOutput()
	if err != nil {
		return nil, domain.NodeSubprocessError{Msg: "version probe failed: " + strings.TrimSpace(string(out)), Err: err}
	}
	s.log.Debug("anvil version", "version", strings.TrimSpace(string(out)))

	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	logPath := filepath.Join(s.dataDir, fmt.Sprintf("anvil-%d.log", port))
	pidPath := filepath.Join(s.dataDir, fmt.Sprintf("anvil-%d.pid", port))

	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	cmd := exec.Command(bin, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, domain.NodeSubprocessError{Msg: "failed to start anvil", Err: err}
	}

	handle := domain.NewProcessHandle(cmd.Process, port, args, logPath, pidPath)
	go func() {
		err := cmd.Wait()
		logFile.Close()
		handle.MarkExited(err)
	}()

	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(handle.PID)), 0644); err != nil {
		_ = s.Stop(handle)
		return nil, fmt.Errorf("failed to write PID file: %w", err)
	}

	s.log.Debug("started anvil", "pid", handle.PID, "port", port, "log", logPath)
	return handle, nil
}

// WaitUntilListening polls the process log for the listening marker. It
// returns HandshakeTimeoutError if the marker does not appear in time, and
// NodeSubprocessError if the process exits first.
func (s *Supervisor) WaitUntilListening(ctx context.Context, handle *domain.ProcessHandle, timeout time.Duration) error {
	interval := timeout / ListenPollIterations
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), ListenPollIterations),
		ctx,
	)

	err := backoff.Retry(func() error {
		listening, err := logHasMarker(handle.LogFile)
		if err != nil {
			return err
		}
		if listening {
			return nil
		}
		if !handle.Running() {
			return backoff.Permanent(domain.NodeSubprocessError{
				Msg: "anvil exited before it started listening (see " + handle.LogFile + ")",
				Err: handle.ExitErr(),
			})
		}
		return errNotListening
	}, policy)

	if errors.Is(err, errNotListening) || errors.Is(err, os.ErrNotExist) {
		return domain.HandshakeTimeoutError{
			Endpoint: domain.LocalEndpoint(handle.Port).URL(),
			Timeout:  timeout,
		}
	}
	return err
}

func logHasMarker(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.HasPrefix(strings.TrimSpace(scanner.Text()), ListeningMarker) {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// Stop terminates the process, escalating to SIGKILL after StopTimeout.
// Stopping an exited or nil handle only cleans up the PID file.
func (s *Supervisor) Stop(handle *domain.ProcessHandle) error {
	if handle == nil {
		return nil
	}

	if handle.Running() && handle.Process != nil {
		if err := handle.Process.Signal(syscall.SIGTERM); err != nil {
			_ = handle.Process.Kill()
		}
		select {
		case <-handle.Exited():
		case <-time.After(StopTimeout):
			s.log.Warn("anvil did not exit after SIGTERM, killing", "pid", handle.PID)
			_ = handle.Process.Kill()
			<-handle.Exited()
		}
		s.log.Debug("stopped anvil", "pid", handle.PID)
	}

	if err := os.Remove(handle.PidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}
