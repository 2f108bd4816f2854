package evm

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	x402types "github.com/coinbase/x402/go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Domain is the EIP-712 domain of the token contract being authorized
type Domain struct {
	Name              string
	Version           string
	ChainID           int64
	VerifyingContract string
}

// CreateTypedData builds the EIP-3009 TransferWithAuthorization typed data
// for an authorization under the given domain
func CreateTypedData(domain Domain, auth *x402types.ExactEvmPayloadAuthorization) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"TransferWithAuthorization": []apitypes.Type{
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           math.NewHexOrDecimal256(domain.ChainID),
			VerifyingContract: strings.ToLower(domain.VerifyingContract),
		},
		Message: apitypes.TypedDataMessage{
			"from":        strings.ToLower(auth.From),
			"to":          strings.ToLower(auth.To),
			"value":       auth.Value,
			"validAfter":  auth.ValidAfter,
			"validBefore": auth.ValidBefore,
			"nonce":       auth.Nonce,
		},
	}
}

// typedDataHash returns keccak256("\x19\x01" || domainSeparator || hashStruct(message))
func typedDataHash(typedData apitypes.TypedData) ([]byte, error) {
	hash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	return crypto.Keccak256([]byte("\x19\x01"), domainSeparator, hash), nil
}

// CreateSignature signs an authorization under the domain and returns the
// 65-byte signature as 0x hex with v in {27, 28}
func CreateSignature(privateKey *ecdsa.PrivateKey, domain Domain, auth *x402types.ExactEvmPayloadAuthorization) (string, error) {
	finalHash, err := typedDataHash(CreateTypedData(domain, auth))
	if err != nil {
		return "", err
	}

	signature, err := crypto.Sign(finalHash, privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign typed data: %w", err)
	}

	// Convert v from recovery id to ethereum format (27/28)
	signature[64] += 27

	return "0x" + hex.EncodeToString(signature), nil
}

// RecoverSigner returns the address that produced signature over the
// authorization under the domain
func RecoverSigner(signatureHex string, domain Domain, auth *x402types.ExactEvmPayloadAuthorization) (common.Address, error) {
	signature, err := hex.DecodeString(strings.TrimPrefix(signatureHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	if signature[64] >= 27 {
		signature[64] -= 27
	}

	finalHash, err := typedDataHash(CreateTypedData(domain, auth))
	if err != nil {
		return common.Address{}, err
	}

	pub, err := crypto.SigToPub(finalHash, signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}
