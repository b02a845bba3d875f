package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
)

// Sentinel errors for provider operations
var (
	// ErrNotConnected is returned when an operation needs a live connection
	ErrNotConnected = errors.New("not connected to a node")

	// ErrRemoteUnreachable is returned when a non-local endpoint cannot be reached
	ErrRemoteUnreachable = errors.New("remote node unreachable")

	// ErrSnapshotFailed is returned when the node refuses to create a snapshot
	ErrSnapshotFailed = errors.New("snapshot failed")

	// ErrNotForked is returned by fork-only operations on a plain node
	ErrNotForked = errors.New("node is not forked")
)

// Transaction outcome sentinels. A *TransactionError matches the one for its kind.
var (
	ErrOutOfGas           = errors.New("out of gas")
	ErrRevertedWithReason = errors.New("reverted with reason")
	ErrRevertedNoReason   = errors.New("reverted without reason")
	ErrCustomRevert       = errors.New("reverted with custom error")
	ErrTransactionFailed  = errors.New("transaction failed")
)

// NodeNotInstalledError is returned when the anvil binary is not on PATH.
type NodeNotInstalledError struct {
	Binary string
}

func (e NodeNotInstalledError) Error() string {
	return fmt.Sprintf("%s is not installed; see https://book.getfoundry.sh/getting-started/installation", e.Binary)
}

// NodeSubprocessError is returned when the binary fails its version probe or
// the child process exits unexpectedly.
type NodeSubprocessError struct {
	Msg string
	Err error
}

func (e NodeSubprocessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("anvil subprocess error: %s: %v", e.Msg, e.Err)
	}
	return "anvil subprocess error: " + e.Msg
}

func (e NodeSubprocessError) Unwrap() error {
	return e.Err
}

// PortExhaustedError is returned when no unattempted port could be drawn.
type PortExhaustedError struct {
	Tried []int
}

func (e PortExhaustedError) Error() string {
	ports := lo.Map(e.Tried, func(p int, _ int) string { return fmt.Sprint(p) })
	return fmt.Sprintf("no free port found after %d attempts (tried: %s)", len(e.Tried), strings.Join(ports, ", "))
}

// OccupiedPortError is returned when something other than anvil answers on the endpoint.
type OccupiedPortError struct {
	Endpoint      string
	ClientVersion string
}

func (e OccupiedPortError) Error() string {
	return fmt.Sprintf("a process that is not anvil is already listening at %s (client version %q); "+
		"stop it or configure a different host/port", e.Endpoint, e.ClientVersion)
}

// HandshakeTimeoutError is returned when anvil never reports it is listening.
type HandshakeTimeoutError struct {
	Endpoint string
	Timeout  time.Duration
}

func (e HandshakeTimeoutError) Error() string {
	return fmt.Sprintf("anvil at %s did not start listening within %s", e.Endpoint, e.Timeout)
}

// ForkConfigurationError is returned when a fork cannot be configured.
type ForkConfigurationError struct {
	Reason string
}

func (e ForkConfigurationError) Error() string {
	return "invalid fork configuration: " + e.Reason
}

// MalformedTraceError is returned when a flat trace does not close back to its root.
type MalformedTraceError struct {
	Depth  int
	Reason string
}

func (e MalformedTraceError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("malformed trace: %s", e.Reason)
	}
	return fmt.Sprintf("malformed trace: ended with %d open calls", e.Depth)
}

// ErrorKind classifies a failed transaction or call.
type ErrorKind int

const (
	GenericFailure ErrorKind = iota
	OutOfGas
	RevertedWithReason
	RevertedNoReason
	CustomRevertData
)

func (k ErrorKind) String() string {
	switch k {
	case OutOfGas:
		return "out of gas"
	case RevertedWithReason:
		return "reverted with reason"
	case RevertedNoReason:
		return "reverted without reason"
	case CustomRevertData:
		return "custom revert"
	default:
		return "generic failure"
	}
}

// DefaultTransactionMessage is used when a failure carries no usable text.
const DefaultTransactionMessage = "Transaction failed."

// TransactionError is the structured outcome of a failed transaction or call.
type TransactionError struct {
	Kind       ErrorKind
	Message    string
	RevertData []byte
	Base       error

	TxHash   *common.Hash
	Contract *common.Address
}

func (e *TransactionError) Error() string {
	return e.Message
}

func (e *TransactionError) Unwrap() error {
	return e.Base
}

// Is matches the sentinel for the error's kind.
func (e *TransactionError) Is(target error) bool {
	switch target {
	case ErrOutOfGas:
		return e.Kind == OutOfGas
	case ErrRevertedWithReason:
		return e.Kind == RevertedWithReason
	case ErrRevertedNoReason:
		return e.Kind == RevertedNoReason
	case ErrCustomRevert:
		return e.Kind == CustomRevertData
	case ErrTransactionFailed:
		return true
	}
	return false
}

// IsRevert reports whether the failure is any flavor of revert.
func (e *TransactionError) IsRevert() bool {
	return e.Kind == RevertedWithReason || e.Kind == RevertedNoReason || e.Kind == CustomRevertData
}

// FailureContext is optional information used to enrich a translated
// transaction error.
type FailureContext struct {
	// Trace is the struct-log trace of the failing transaction or call.
	Trace []TraceFrame

	TxHash   *common.Hash
	Contract *common.Address

	// Nonce is the nonce the failing transaction was sent with.
	Nonce *uint64
}
