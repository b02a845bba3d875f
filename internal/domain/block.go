package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// MaxExtraDataLength is the longest extraData a strictly decoded header may carry.
// Proof-of-authority chains exceed it with signer seals.
const MaxExtraDataLength = 32

// Block is a decoded block header.
type Block struct {
	Number        uint64      `json:"number"`
	Hash          common.Hash `json:"hash"`
	ParentHash    common.Hash `json:"parentHash"`
	Timestamp     uint64      `json:"timestamp"`
	GasLimit      uint64      `json:"gasLimit"`
	GasUsed       uint64      `json:"gasUsed"`
	BaseFeePerGas *big.Int    `json:"baseFeePerGas,omitempty"`
	ExtraData     []byte      `json:"extraData"`

	// ProofOfAuthorityData holds extraData that was too long for a strict decode.
	ProofOfAuthorityData []byte `json:"proofOfAuthorityData,omitempty"`
}
