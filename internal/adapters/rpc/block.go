package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/trebuchet-org/treb-anvil/internal/domain"
)

// ErrExtraDataTooLong is returned by strict header decoding of a
// proof-of-authority block.
var ErrExtraDataTooLong = fmt.Errorf("extraData is longer than %d bytes", domain.MaxExtraDataLength)

type rpcHeader struct {
	Number               *hexutil.Uint64 `json:"number"`
	Hash                 common.Hash     `json:"hash"`
	ParentHash           common.Hash     `json:"parentHash"`
	Timestamp            hexutil.Uint64  `json:"timestamp"`
	GasLimit             hexutil.Uint64  `json:"gasLimit"`
	GasUsed              hexutil.Uint64  `json:"gasUsed"`
	BaseFeePerGas        *hexutil.Big    `json:"baseFeePerGas"`
	ExtraData            hexutil.Bytes   `json:"extraData"`
	ProofOfAuthorityData hexutil.Bytes   `json:"proofOfAuthorityData"`
}

// DecodeBlock decodes an eth_getBlockByNumber result. Strict decoding
// rejects extraData over MaxExtraDataLength; relaxed decoding moves it to
// ProofOfAuthorityData.
func DecodeBlock(raw json.RawMessage, relaxed bool) (*domain.Block, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errors.New("block not found")
	}

	var h rpcHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("failed to decode block header: %w", err)
	}

	block := &domain.Block{
		Hash:                 h.Hash,
		ParentHash:           h.ParentHash,
		Timestamp:            uint64(h.Timestamp),
		GasLimit:             uint64(h.GasLimit),
		GasUsed:              uint64(h.GasUsed),
		ExtraData:            h.ExtraData,
		ProofOfAuthorityData: h.ProofOfAuthorityData,
	}
	if h.Number != nil {
		block.Number = uint64(*h.Number)
	}
	if h.BaseFeePerGas != nil {
		block.BaseFeePerGas = h.BaseFeePerGas.ToInt()
	}

	if len(block.ExtraData) > domain.MaxExtraDataLength {
		if !relaxed {
			return nil, ErrExtraDataTooLong
		}
		block.ProofOfAuthorityData = block.ExtraData
		block.ExtraData = nil
	}
	return block, nil
}

// isProofOfAuthority inspects a raw block for PoA markers.
func isProofOfAuthority(raw json.RawMessage) bool {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	if _, ok := fields["proofOfAuthorityData"]; ok {
		return true
	}
	_, err := DecodeBlock(raw, false)
	return errors.Is(err, ErrExtraDataTooLong)
}
