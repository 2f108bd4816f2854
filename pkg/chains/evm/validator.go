package evm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sigweihq/x402fetch/pkg/types"
)

// VerifyAuthorization checks locally that auth was signed by this signer for
// exactly this requirement: the recipient, amount and ABI data are
// re-encoded from the requirement and the signature must recover to the payer
func (s *Signer) VerifyAuthorization(auth *types.PaymentAuthorization, req *types.PaymentRequirement) error {
	if err := VerifyAuthorization(auth, req); err != nil {
		return err
	}
	if !AddressesEqual(auth.Payer, s.address.Hex()) {
		return &MismatchError{Field: "payer", Got: auth.Payer, Expected: s.address.Hex()}
	}
	return nil
}

// VerifyAuthorization checks an EVM authorization against a requirement
// without access to the private key
func VerifyAuthorization(auth *types.PaymentAuthorization, req *types.PaymentRequirement) error {
	if auth.Network != req.Network {
		return &MismatchError{Field: "network", Got: auth.Network, Expected: req.Network}
	}

	var payload types.EvmPayload
	if err := json.Unmarshal(auth.Payload, &payload); err != nil {
		return fmt.Errorf("invalid evm payload: %w", err)
	}
	if payload.Authorization == nil {
		return fmt.Errorf("evm payload missing authorization")
	}

	// Verify TO address (from payment requirements)
	if !AddressesEqual(payload.Authorization.To, req.To) {
		return &MismatchError{Field: "recipient", Got: payload.Authorization.To, Expected: req.To}
	}

	// Verify amount
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return err
	}
	if payload.Authorization.Value != amount.Dec() {
		return &MismatchError{Field: "amount", Got: payload.Authorization.Value, Expected: amount.Dec()}
	}

	expectedData, err := EncodeTransferData(req.To, amount)
	if err != nil {
		return err
	}
	if !strings.EqualFold(payload.Data, expectedData) {
		return &MismatchError{Field: "data", Got: payload.Data, Expected: expectedData}
	}

	domain, err := ResolveDomain(req)
	if err != nil {
		return err
	}

	recovered, err := RecoverSigner(payload.Signature, domain, payload.Authorization)
	if err != nil {
		return err
	}
	if recovered != common.HexToAddress(payload.Authorization.From) {
		return &MismatchError{Field: "signature", Got: recovered.Hex(), Expected: payload.Authorization.From}
	}
	if auth.Payer != "" && !AddressesEqual(auth.Payer, recovered.Hex()) {
		return &MismatchError{Field: "payer", Got: auth.Payer, Expected: recovered.Hex()}
	}

	return nil
}

// AddressesEqual compares EVM addresses case-insensitively (EIP-55 checksums)
func AddressesEqual(addr1, addr2 string) bool {
	return strings.EqualFold(addr1, addr2)
}
