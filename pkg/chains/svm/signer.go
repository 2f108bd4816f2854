package svm

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/sigweihq/x402fetch/pkg/chains"
	"github.com/sigweihq/x402fetch/pkg/constants"
	"github.com/sigweihq/x402fetch/pkg/types"
)

// Signer implements chains.Signer for Solana key pairs. Authorizations are
// partially signed SPL TransferChecked transactions.
type Signer struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
	network    string
	blockhash  BlockhashSource
	unitPrice  uint64
}

// Option configures a Signer
type Option func(*Signer)

// WithBlockhashSource overrides where recent blockhashes come from
func WithBlockhashSource(source BlockhashSource) Option {
	return func(s *Signer) { s.blockhash = source }
}

// WithRPCEndpoint fetches blockhashes from the given RPC endpoint
func WithRPCEndpoint(endpoint string) Option {
	return func(s *Signer) {
		if endpoint != "" {
			s.blockhash = NewRPCBlockhashSource(endpoint)
		}
	}
}

// WithComputeUnitPrice sets the priority fee in microlamports per compute unit
func WithComputeUnitPrice(microLamports uint64) Option {
	return func(s *Signer) { s.unitPrice = microLamports }
}

var _ chains.Signer = (*Signer)(nil)
var _ chains.AuthorizationVerifier = (*Signer)(nil)

// NewSigner creates a signer from a base58-encoded 64-byte secret key
func NewSigner(secretKey string, network string, opts ...Option) (*Signer, error) {
	privateKey, err := ParsePrivateKey(secretKey)
	if err != nil {
		return nil, err
	}

	s := &Signer{
		privateKey: privateKey,
		publicKey:  privateKey.PublicKey(),
		network:    network,
		blockhash:  NewRPCBlockhashSource(DefaultRPCEndpoint(chains.NetworkName(network))),
		unitPrice:  constants.SolanaComputeUnitPrice,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ParsePrivateKey decodes a base58 secret key and checks that its embedded
// public key matches the seed
func ParsePrivateKey(secretKey string) (solana.PrivateKey, error) {
	privateKey, err := solana.PrivateKeyFromBase58(strings.TrimSpace(secretKey))
	if err != nil {
		return nil, fmt.Errorf("invalid base58 private key: %w", err)
	}
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key length: %d (expected %d bytes)", len(privateKey), ed25519.PrivateKeySize)
	}

	derived := ed25519.NewKeyFromSeed(privateKey[:ed25519.SeedSize])
	if !bytes.Equal(derived, privateKey) {
		return nil, fmt.Errorf("private key public half does not match its seed")
	}
	return privateKey, nil
}

// Family implements chains.Signer
func (s *Signer) Family() chains.Family {
	return chains.FamilySolana
}

// Address implements chains.Signer
func (s *Signer) Address() string {
	return s.publicKey.String()
}

// SignAuthorization implements chains.Signer
func (s *Signer) SignAuthorization(ctx context.Context, req *types.PaymentRequirement) (*types.PaymentAuthorization, error) {
	params, err := s.transferParams(ctx, req)
	if err != nil {
		return nil, err
	}

	transaction, err := buildTransferTransaction(s.privateKey, params)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(&types.ExactSolanaPayload{
		Transaction: transaction,
		FeePayer:    params.feePayer.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal solana payload: %w", err)
	}

	return &types.PaymentAuthorization{
		X402Version: constants.X402Version,
		Scheme:      req.Scheme,
		Network:     req.Network,
		To:          req.To,
		Amount:      req.Amount,
		Payer:       s.Address(),
		Payload:     payload,
	}, nil
}

// transferParams resolves every input of the transfer from the requirement
func (s *Signer) transferParams(ctx context.Context, req *types.PaymentRequirement) (transferParams, error) {
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return transferParams{}, err
	}

	to, err := solana.PublicKeyFromBase58(req.To)
	if err != nil {
		return transferParams{}, fmt.Errorf("invalid recipient address: %w", err)
	}

	mint, err := resolveMint(req)
	if err != nil {
		return transferParams{}, err
	}

	decimals, err := resolveDecimals(req)
	if err != nil {
		return transferParams{}, err
	}

	feePayer := s.publicKey
	if fp := req.ExtraString("feePayer"); fp != "" {
		if feePayer, err = solana.PublicKeyFromBase58(fp); err != nil {
			return transferParams{}, fmt.Errorf("invalid fee payer address: %w", err)
		}
	}

	var blockhash solana.Hash
	if bh := req.ExtraString("recentBlockhash"); bh != "" {
		if blockhash, err = solana.HashFromBase58(bh); err != nil {
			return transferParams{}, fmt.Errorf("invalid recent blockhash: %w", err)
		}
	} else if blockhash, err = s.blockhash.LatestBlockhash(ctx); err != nil {
		return transferParams{}, err
	}

	return transferParams{
		from:      s.publicKey,
		to:        to,
		mint:      mint,
		feePayer:  feePayer,
		amount:    amount,
		decimals:  decimals,
		unitPrice: s.unitPrice,
		blockhash: blockhash,
	}, nil
}

// ParseAmount parses a decimal amount in atomic units into a u64
func ParseAmount(amount string) (uint64, error) {
	if amount == "" || strings.HasPrefix(amount, "+") {
		return 0, fmt.Errorf("invalid amount %q", amount)
	}
	v, err := strconv.ParseUint(amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return v, nil
}

func resolveMint(req *types.PaymentRequirement) (solana.PublicKey, error) {
	asset := req.Asset
	if asset == "" {
		asset = constants.NetworkToUSDCAddress[chains.NetworkName(req.Network)]
	}
	if asset == "" {
		return solana.PublicKey{}, fmt.Errorf("no token mint for network %s", req.Network)
	}
	mint, err := solana.PublicKeyFromBase58(asset)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid mint address: %w", err)
	}
	return mint, nil
}

func resolveDecimals(req *types.PaymentRequirement) (uint8, error) {
	if len(req.Extra) == 0 {
		return constants.USDCDecimals, nil
	}
	var extra struct {
		Decimals *uint8 `json:"decimals"`
	}
	if err := json.Unmarshal(req.Extra, &extra); err != nil {
		return 0, fmt.Errorf("invalid extra: %w", err)
	}
	if extra.Decimals == nil {
		return constants.USDCDecimals, nil
	}
	return *extra.Decimals, nil
}
