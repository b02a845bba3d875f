// Package vmerror classifies node errors into transaction outcomes.
package vmerror

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
)

const (
	vmExceptionPrefix       = "Error: VM Exception while processing transaction: reverted with reason string "
	revertedWithoutReason   = "reverted without a reason string"
	executionReverted       = "execution reverted"
	executionRevertedPrefix = "execution reverted:" // the reason after it is trimmed
	revertMarker            = "revert: "
	ranOutOfGas             = "transaction ran out of gas"
	nonceTooLow             = "nonce too low"
)

// Context is optional information used to enrich a translated error.
type Context = domain.FailureContext

// Translator exposes the package functions for injection.
type Translator struct{}

// NewTranslator creates a translator
func NewTranslator() *Translator {
	return &Translator{}
}

func (*Translator) NeedsTrace(err error) bool { return NeedsTrace(err) }

func (*Translator) Translate(err error, tctx Context) *domain.TransactionError {
	return Translate(err, tctx)
}

// NeedsTrace reports whether the error is a bare revert that a trace could
// explain and that carries no revert data of its own.
func NeedsTrace(err error) bool {
	if err == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(err.Error()), executionReverted) && len(errorData(err)) == 0
}

// Translate classifies err. The first matching rule wins:
//
//  1. the VM exception "reverted with reason string" prefix
//  2. "reverted without a reason string"
//  3. a bare "execution reverted", decoded from error data or the trace
//  4. out of gas
//  5. the "execution reverted: " prefix
//  6. custom error data attached to the error
//  7. anything else
func Translate(err error, tctx Context) *domain.TransactionError {
	if err == nil {
		return nil
	}
	var existing *domain.TransactionError
	if errors.As(err, &existing) {
		return existing
	}

	msg := strings.TrimSpace(err.Error())
	lower := strings.ToLower(msg)
	result := classify(err, msg, lower, tctx)
	result.Base = err
	result.TxHash = tctx.TxHash
	result.Contract = tctx.Contract
	return result
}

func classify(err error, msg, lower string, tctx Context) *domain.TransactionError {
	switch {
	case strings.HasPrefix(lower, strings.ToLower(vmExceptionPrefix)):
		reason := strings.Trim(msg[len(vmExceptionPrefix):], `'"`)
		return withReason(unwrapMarker(reason))

	case strings.Contains(lower, revertedWithoutReason):
		return &domain.TransactionError{Kind: domain.RevertedNoReason, Message: domain.DefaultTransactionMessage}

	case lower == executionReverted:
		if enriched := decodePayload(errorData(err)); enriched != nil {
			return enriched
		}
		if enriched := decodePayload(revertDataFromTrace(tctx.Trace)); enriched != nil {
			return enriched
		}
		return &domain.TransactionError{Kind: domain.RevertedNoReason, Message: domain.DefaultTransactionMessage}

	case lower == ranOutOfGas || strings.Contains(lower, "out of gas") || strings.Contains(lower, "outofgas"):
		return &domain.TransactionError{Kind: domain.OutOfGas, Message: "The transaction ran out of gas."}

	case strings.HasPrefix(lower, executionRevertedPrefix):
		te := withReason(unwrapMarker(msg[len(executionRevertedPrefix):]))
		te.RevertData = errorData(err)
		return te
	}

	if data, ok := customErrorData(err); ok {
		te := &domain.TransactionError{Kind: domain.CustomRevertData, RevertData: data}
		if len(data) == 0 {
			te.Message = domain.DefaultTransactionMessage
		} else {
			te.Message = hexutil.Encode(data)
		}
		return te
	}

	if strings.Contains(lower, nonceTooLow) && tctx.Nonce != nil {
		return &domain.TransactionError{Kind: domain.GenericFailure, Message: fmt.Sprintf("Nonce '%d' is too low", *tctx.Nonce)}
	}

	if msg == "" {
		msg = domain.DefaultTransactionMessage
	}
	return &domain.TransactionError{Kind: domain.GenericFailure, Message: msg}
}

func withReason(reason string) *domain.TransactionError {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = domain.DefaultTransactionMessage
	}
	return &domain.TransactionError{Kind: domain.RevertedWithReason, Message: reason}
}

func unwrapMarker(reason string) string {
	reason = strings.TrimSpace(reason)
	if len(reason) >= len(revertMarker) && strings.EqualFold(reason[:len(revertMarker)], revertMarker) {
		return reason[len(revertMarker):]
	}
	return reason
}

// decodePayload turns revert data into a reason or a custom error. It
// returns nil when there is nothing to decode.
func decodePayload(data []byte) *domain.TransactionError {
	if len(data) == 0 {
		return nil
	}
	if reason, err := abi.UnpackRevert(data); err == nil {
		te := withReason(unwrapMarker(reason))
		te.RevertData = data
		return te
	}
	if len(data) < 4 {
		return nil
	}
	return &domain.TransactionError{
		Kind:       domain.CustomRevertData,
		Message:    hexutil.Encode(data),
		RevertData: data,
	}
}

// errorData extracts hex revert data from an RPC error.
func errorData(err error) []byte {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil
	}
	s, ok := dataErr.ErrorData().(string)
	if !ok || !strings.HasPrefix(s, "0x") {
		return nil
	}
	data, decErr := hexutil.Decode(s)
	if decErr != nil {
		return nil
	}
	return data
}

// customErrorData reports whether err carries revert data that is not a
// plain Error(string) reason.
func customErrorData(err error) ([]byte, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return nil, false
	}
	s, ok := dataErr.ErrorData().(string)
	if !ok || !strings.HasPrefix(s, "0x") {
		return nil, false
	}
	if s == "0x" {
		return nil, true
	}
	data, decErr := hexutil.Decode(s)
	if decErr != nil {
		return nil, false
	}
	if _, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
		return nil, false
	}
	return data, true
}

// revertDataFromTrace reads the returned data of the last REVERT frame.
func revertDataFromTrace(trace []domain.TraceFrame) []byte {
	for i := len(trace) - 1; i >= 0; i-- {
		frame := &trace[i]
		if frame.Op != "REVERT" {
			continue
		}
		if data := frame.MemorySlice(frame.StackBack(0), frame.StackBack(1)); data != nil {
			return data
		}
		// without a stack, the revert payload follows the four reserved words
		if len(frame.Memory) > 4 {
			var buf []byte
			for _, word := range frame.Memory[4:] {
				buf = append(buf, common.FromHex(word)...)
			}
			return buf
		}
		return nil
	}
	return nil
}
