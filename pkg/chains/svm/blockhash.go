package svm

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sigweihq/x402fetch/pkg/constants"
)

// BlockhashSource supplies the recent blockhash a transaction is built against
type BlockhashSource interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// RPCBlockhashSource fetches finalized blockhashes from a Solana RPC endpoint
type RPCBlockhashSource struct {
	endpoint string
	client   *rpc.Client
}

// NewRPCBlockhashSource creates a blockhash source for an RPC endpoint
func NewRPCBlockhashSource(endpoint string) *RPCBlockhashSource {
	return &RPCBlockhashSource{
		endpoint: endpoint,
		client:   rpc.New(endpoint),
	}
}

// LatestBlockhash implements BlockhashSource
func (s *RPCBlockhashSource) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.BlockhashTimeout)
	defer cancel()

	// Get latest blockhash (getRecentBlockhash is deprecated)
	out, err := s.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash from %s: %w", s.endpoint, err)
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, fmt.Errorf("empty blockhash response from %s", s.endpoint)
	}
	return out.Value.Blockhash, nil
}

// StaticBlockhash always returns the same blockhash
type StaticBlockhash solana.Hash

// LatestBlockhash implements BlockhashSource
func (h StaticBlockhash) LatestBlockhash(context.Context) (solana.Hash, error) {
	return solana.Hash(h), nil
}

// DefaultRPCEndpoint returns the official RPC endpoint for a Solana network,
// falling back to mainnet
func DefaultRPCEndpoint(network string) string {
	if endpoint, ok := constants.OfficialRPCEndpoints[network]; ok {
		return endpoint
	}
	return constants.OfficialRPCEndpoints[constants.NetworkSolana]
}
