package domain

import (
	"os"
	"sync"
)

// ProcessHandle is a supervised anvil child process. It is created by the
// supervisor on start and owned by exactly one provider until stopped.
type ProcessHandle struct {
	PID     int      `json:"pid"`
	Port    int      `json:"port"`
	Args    []string `json:"args"`
	LogFile string   `json:"logFile"`
	PidFile string   `json:"pidFile"`

	Process *os.Process `json:"-"`

	once    sync.Once
	exited  chan struct{}
	exitErr error
}

// NewProcessHandle wraps a started process.
func NewProcessHandle(proc *os.Process, port int, args []string, logFile, pidFile string) *ProcessHandle {
	h := &ProcessHandle{
		Port:    port,
		Args:    args,
		LogFile: logFile,
		PidFile: pidFile,
		Process: proc,
		exited:  make(chan struct{}),
	}
	if proc != nil {
		h.PID = proc.Pid
	}
	return h
}

// MarkExited records that the process has terminated. Only the first call has effect.
func (h *ProcessHandle) MarkExited(err error) {
	h.once.Do(func() {
		h.exitErr = err
		close(h.exited)
	})
}

// Exited is closed once the process has terminated.
func (h *ProcessHandle) Exited() <-chan struct{} {
	return h.exited
}

// ExitErr returns the wait error of a terminated process.
func (h *ProcessHandle) ExitErr() error {
	select {
	case <-h.exited:
		return h.exitErr
	default:
		return nil
	}
}

// Running reports whether the process has not yet exited.
func (h *ProcessHandle) Running() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.exited:
		return false
	default:
		return true
	}
}

// NodeStatus represents the observed state of a provider's node
type NodeStatus struct {
	Network        string `json:"network"`
	Endpoint       string `json:"endpoint,omitempty"`
	Connected      bool   `json:"connected"`
	Managed        bool   `json:"managed"`
	PID            int    `json:"pid,omitempty"`
	LogFile        string `json:"logFile,omitempty"`
	ClientVersion  string `json:"clientVersion,omitempty"`
	ChainID        uint64 `json:"chainId"`
	BlockNumber    uint64 `json:"blockNumber"`
	RelaxedHeaders bool   `json:"relaxedHeaders"`
	ForkURL        string `json:"forkUrl,omitempty"`
	ForkBlock      uint64 `json:"forkBlock,omitempty"`
	Hardfork       string `json:"hardfork,omitempty"`
}
