package chains

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sigweihq/x402fetch/pkg/constants"
	"github.com/sigweihq/x402fetch/pkg/types"
)

// Family is the account/signature model a network belongs to
type Family string

const (
	FamilyEVM    Family = "evm"
	FamilySolana Family = "solana"
)

// Signer authorizes payments for exactly one chain family. Implementations
// are immutable after construction and safe for concurrent use.
type Signer interface {
	// Family returns the chain family this signer was built for
	Family() Family

	// Address returns the public identity (0x hex for EVM, base58 for Solana)
	Address() string

	// SignAuthorization builds a fresh signed authorization for the requirement
	SignAuthorization(ctx context.Context, requirement *types.PaymentRequirement) (*types.PaymentAuthorization, error)
}

// AuthorizationVerifier is an optional interface for checking locally that an
// authorization was produced for a given requirement
// Implemented by: evm.Signer, svm.Signer
type AuthorizationVerifier interface {
	VerifyAuthorization(auth *types.PaymentAuthorization, requirement *types.PaymentRequirement) error
}

// UnsupportedNetworkError is returned when a network cannot be mapped to a family
type UnsupportedNetworkError struct {
	Network string
}

func (e *UnsupportedNetworkError) Error() string {
	return fmt.Sprintf("unsupported network: %s", e.Network)
}

// ParseFamily converts a configured family or network name into a Family
func ParseFamily(s string) (Family, error) {
	switch Family(strings.ToLower(strings.TrimSpace(s))) {
	case FamilyEVM:
		return FamilyEVM, nil
	case FamilySolana:
		return FamilySolana, nil
	}
	return FamilyOf(s)
}

// FamilyOf resolves the family of a network identifier. Both CAIP-2
// ("eip155:8453", "solana:<genesis>") and legacy names ("base-sepolia",
// "solana-devnet") are accepted.
func FamilyOf(network string) (Family, error) {
	n := strings.ToLower(strings.TrimSpace(network))
	if n == "" {
		return "", &UnsupportedNetworkError{Network: network}
	}

	if prefix, _, ok := strings.Cut(n, ":"); ok {
		switch prefix {
		case constants.CAIP2PrefixEVM:
			return FamilyEVM, nil
		case constants.CAIP2PrefixSolana:
			return FamilySolana, nil
		}
		return "", &UnsupportedNetworkError{Network: network}
	}

	if _, isEVM := constants.NetworkToChainID[n]; isEVM {
		return FamilyEVM, nil
	}
	switch {
	case strings.HasPrefix(n, constants.NetworkBase):
		return FamilyEVM, nil
	case strings.HasPrefix(n, constants.NetworkSolana):
		return FamilySolana, nil
	}
	return "", &UnsupportedNetworkError{Network: network}
}

// NetworkName maps a CAIP-2 identifier back to its legacy network name when one
// is known. Unknown identifiers are returned unchanged.
func NetworkName(network string) string {
	prefix, ref, ok := strings.Cut(network, ":")
	if !ok {
		return network
	}
	switch prefix {
	case constants.CAIP2PrefixEVM:
		for name, id := range constants.NetworkToChainID {
			if strconv.FormatInt(id, 10) == ref {
				return name
			}
		}
	case constants.CAIP2PrefixSolana:
		if name, ok := constants.SolanaCAIP2ToNetwork[network]; ok {
			return name
		}
	}
	return network
}
