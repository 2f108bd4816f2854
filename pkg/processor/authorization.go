package processor

import (
	"context"
	"fmt"
	"strings"

	"github.com/sigweihq/x402fetch/pkg/chains"
	"github.com/sigweihq/x402fetch/pkg/constants"
	"github.com/sigweihq/x402fetch/pkg/types"
)

// CheckNetworkFamily ensures the signer can pay on the requirement's network.
// Families are compared after resolution, so "eip155:84532" and "base-sepolia"
// both match an EVM signer.
func CheckNetworkFamily(signer chains.Signer, req *types.PaymentRequirement) error {
	required, err := chains.FamilyOf(req.Network)
	if err != nil {
		required = chains.Family(familyPrefix(req.Network))
	}
	if err != nil || required != signer.Family() {
		return types.NewPaymentFailedError(req.Network,
			fmt.Sprintf("Network mismatch: config has %s, server requires %s (%s)", signer.Family(), required, req.Network), nil)
	}
	return nil
}

func familyPrefix(network string) string {
	prefix, _, _ := strings.Cut(network, ":")
	return prefix
}

// BuildAuthorization signs a fresh authorization for req. A new nonce (EVM) or
// blockhash (Solana) is drawn on every call, so authorizations are never reused.
// Signers implementing chains.AuthorizationVerifier re-check their output
// before it is sent.
func BuildAuthorization(ctx context.Context, req *types.PaymentRequirement, signer chains.Signer) (*types.PaymentAuthorization, error) {
	if signer == nil {
		return nil, types.NewPaymentFailedError(req.Network, "Private key required for payment", nil)
	}
	if err := CheckNetworkFamily(signer, req); err != nil {
		return nil, err
	}
	if req.Scheme != "" && req.Scheme != constants.SchemeExact {
		return nil, types.NewPaymentFailedError(req.Network, "Unsupported payment scheme: "+req.Scheme, nil)
	}
	if req.To == "" || req.Amount == "" {
		return nil, types.NewPaymentFailedError(req.Network, "Payment requirement is missing recipient or amount", nil)
	}

	auth, err := signer.SignAuthorization(ctx, req)
	if err != nil {
		return nil, types.NewPaymentFailedError(req.Network, "Failed to sign payment authorization", err)
	}
	if auth.Network != req.Network || auth.Amount != req.Amount {
		return nil, types.NewPaymentFailedError(req.Network, "Signed authorization does not match requirement", nil)
	}
	if verifier, ok := signer.(chains.AuthorizationVerifier); ok {
		if err := verifier.VerifyAuthorization(auth, req); err != nil {
			return nil, types.NewPaymentFailedError(req.Network, "Signed authorization does not match requirement", err)
		}
	}
	return auth, nil
}
