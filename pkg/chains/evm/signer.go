package evm

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	x402types "github.com/coinbase/x402/go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sigweihq/x402fetch/pkg/chains"
	"github.com/sigweihq/x402fetch/pkg/constants"
	"github.com/sigweihq/x402fetch/pkg/types"
)

// NonceSource produces the 32-byte EIP-3009 nonce of each authorization
type NonceSource func() ([32]byte, error)

// Signer implements chains.Signer for EVM externally-owned accounts using
// EIP-3009 TransferWithAuthorization
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	nonce      NonceSource
	now        func() time.Time
	validity   time.Duration
}

// Option configures a Signer
type Option func(*Signer)

// WithNonceSource overrides the random nonce source
func WithNonceSource(source NonceSource) Option {
	return func(s *Signer) { s.nonce = source }
}

// WithClock overrides the clock used for validBefore
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// WithValidity sets how long an authorization stays valid when the
// requirement does not specify maxTimeoutSeconds
func WithValidity(d time.Duration) Option {
	return func(s *Signer) { s.validity = d }
}

var _ chains.Signer = (*Signer)(nil)
var _ chains.AuthorizationVerifier = (*Signer)(nil)

// NewSigner creates a signer from a hex-encoded 32-byte private key, with or
// without 0x prefix
func NewSigner(privateKeyHex string, opts ...Option) (*Signer, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	s := &Signer{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		nonce:      randomNonce,
		now:        time.Now,
		validity:   constants.AuthorizationValidity,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func randomNonce() ([32]byte, error) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}

// Family implements chains.Signer
func (s *Signer) Family() chains.Family {
	return chains.FamilyEVM
}

// Address implements chains.Signer
func (s *Signer) Address() string {
	return s.address.Hex()
}

// SignAuthorization implements chains.Signer
func (s *Signer) SignAuthorization(ctx context.Context, req *types.PaymentRequirement) (*types.PaymentAuthorization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	data, err := EncodeTransferData(req.To, amount)
	if err != nil {
		return nil, err
	}

	domain, err := ResolveDomain(req)
	if err != nil {
		return nil, err
	}

	nonce, err := s.nonce()
	if err != nil {
		return nil, err
	}

	validity := s.validity
	if req.MaxTimeoutSeconds > 0 {
		validity = time.Duration(req.MaxTimeoutSeconds) * time.Second
	}

	authorization := &x402types.ExactEvmPayloadAuthorization{
		From:        s.address.Hex(),
		To:          common.HexToAddress(req.To).Hex(),
		Value:       amount.Dec(),
		ValidAfter:  "0",
		ValidBefore: strconv.FormatInt(s.now().Add(validity).Unix(), 10),
		Nonce:       hexutil.Encode(nonce[:]),
	}

	signature, err := CreateSignature(s.privateKey, domain, authorization)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(&types.EvmPayload{
		Signature:     signature,
		Authorization: authorization,
		Data:          data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal evm payload: %w", err)
	}

	return &types.PaymentAuthorization{
		X402Version: constants.X402Version,
		Scheme:      req.Scheme,
		Network:     req.Network,
		To:          req.To,
		Amount:      req.Amount,
		Payer:       s.address.Hex(),
		Payload:     payload,
	}, nil
}
