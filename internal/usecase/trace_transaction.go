package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
)

// TraceTransaction rebuilds the call tree of a mined transaction
type TraceTransaction struct {
	provider *Provider
}

// NewTraceTransaction creates a new trace transaction use case
func NewTraceTransaction(provider *Provider) *TraceTransaction {
	return &TraceTransaction{provider: provider}
}

// TraceTransactionParams contains parameters for tracing
type TraceTransactionParams struct {
	TxHash common.Hash
}

// TraceTransactionResult contains the call tree and the receipt
type TraceTransactionResult struct {
	Tree    *domain.CallTreeNode
	Receipt *domain.Receipt

	// Failure is set when the transaction reverted
	Failure *domain.TransactionError
}

// Execute traces the transaction on the running node
func (t *TraceTransaction) Execute(ctx context.Context, params TraceTransactionParams) (*TraceTransactionResult, error) {
	if err := t.provider.Attach(ctx); err != nil {
		return nil, err
	}
	defer t.provider.Disconnect()

	result := &TraceTransactionResult{}

	receipt, err := t.provider.GetReceipt(ctx, params.TxHash)
	if receipt == nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	result.Receipt = receipt
	if err != nil {
		var txErr *domain.TransactionError
		if !errors.As(err, &txErr) {
			return nil, err
		}
		result.Failure = txErr
	}

	tree, err := t.provider.GetCallTree(ctx, params.TxHash)
	if err != nil {
		return nil, fmt.Errorf("failed to build call tree: %w", err)
	}
	result.Tree = tree

	return result, nil
}
