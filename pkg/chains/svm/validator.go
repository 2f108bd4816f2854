package svm

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/sigweihq/x402fetch/pkg/types"
)

// TransferDetails is the decoded TransferChecked instruction of an authorization
type TransferDetails struct {
	FeePayer    solana.PublicKey
	Source      solana.PublicKey
	Mint        solana.PublicKey
	Destination solana.PublicKey
	Owner       solana.PublicKey
	Amount      uint64
	Decimals    uint8
}

// DecodeTransfer decodes a base64 transaction and extracts its transfer
// instruction, checking the owner's signature over the message
func DecodeTransfer(txBase64 string) (*TransferDetails, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction encoding: %w", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	keys := tx.Message.AccountKeys
	if len(keys) == 0 {
		return nil, fmt.Errorf("transaction has no account keys")
	}

	var details *TransferDetails
	for _, inst := range tx.Message.Instructions {
		if int(inst.ProgramIDIndex) >= len(keys) || !keys[inst.ProgramIDIndex].Equals(token.ProgramID) {
			continue
		}
		if len(inst.Data) != 10 || inst.Data[0] != token.Instruction_TransferChecked {
			continue
		}
		if len(inst.Accounts) < 4 {
			return nil, fmt.Errorf("transfer instruction has %d accounts, expected 4", len(inst.Accounts))
		}
		for _, idx := range inst.Accounts[:4] {
			if int(idx) >= len(keys) {
				return nil, fmt.Errorf("transfer instruction account index %d out of range", idx)
			}
		}

		amount, err := bin.NewBinDecoder(inst.Data[1:9]).ReadUint64(bin.LE)
		if err != nil {
			return nil, fmt.Errorf("failed to decode transfer amount: %w", err)
		}

		details = &TransferDetails{
			FeePayer:    keys[0],
			Source:      keys[inst.Accounts[0]],
			Mint:        keys[inst.Accounts[1]],
			Destination: keys[inst.Accounts[2]],
			Owner:       keys[inst.Accounts[3]],
			Amount:      amount,
			Decimals:    inst.Data[9],
		}
		break
	}
	if details == nil {
		return nil, fmt.Errorf("no TransferChecked instruction found")
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	ownerIdx := -1
	for i, key := range keys {
		if key.Equals(details.Owner) {
			ownerIdx = i
			break
		}
	}
	if ownerIdx < 0 || ownerIdx >= len(tx.Signatures) {
		return nil, fmt.Errorf("transfer owner %s has no signature slot", details.Owner)
	}
	sig := tx.Signatures[ownerIdx]
	if !ed25519.Verify(ed25519.PublicKey(details.Owner[:]), message, sig[:]) {
		return nil, fmt.Errorf("invalid signature for transfer owner %s", details.Owner)
	}

	return details, nil
}

// VerifyAuthorization checks that the authorization transfers exactly the
// required amount of the required mint to the recipient, signed by this key
func (s *Signer) VerifyAuthorization(auth *types.PaymentAuthorization, req *types.PaymentRequirement) error {
	if err := VerifyAuthorization(auth, req); err != nil {
		return err
	}
	if !AddressesEqual(auth.Payer, s.Address()) {
		return fmt.Errorf("authorization payer mismatch: got %s, expected %s", auth.Payer, s.Address())
	}
	return nil
}

// VerifyAuthorization checks a Solana authorization against a requirement
func VerifyAuthorization(auth *types.PaymentAuthorization, req *types.PaymentRequirement) error {
	if auth.Network != req.Network {
		return fmt.Errorf("authorization network mismatch: got %s, expected %s", auth.Network, req.Network)
	}

	var payload types.ExactSolanaPayload
	if err := json.Unmarshal(auth.Payload, &payload); err != nil {
		return fmt.Errorf("invalid solana payload: %w", err)
	}

	details, err := DecodeTransfer(payload.Transaction)
	if err != nil {
		return err
	}

	mint, err := resolveMint(req)
	if err != nil {
		return err
	}
	if !details.Mint.Equals(mint) {
		return fmt.Errorf("token mint mismatch: got %s, expected %s", details.Mint, mint)
	}

	to, err := solana.PublicKeyFromBase58(req.To)
	if err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	expectedDestination, _, err := solana.FindAssociatedTokenAddress(to, mint)
	if err != nil {
		return fmt.Errorf("failed to derive recipient token account: %w", err)
	}
	if !details.Destination.Equals(expectedDestination) {
		return fmt.Errorf("transfer destination mismatch: got %s, expected %s", details.Destination, expectedDestination)
	}

	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return err
	}
	if details.Amount != amount {
		return fmt.Errorf("transfer amount mismatch: got %s, expected %s",
			strconv.FormatUint(details.Amount, 10), req.Amount)
	}

	if auth.Payer != "" && auth.Payer != details.Owner.String() {
		return fmt.Errorf("authorization payer mismatch: got %s, expected %s", auth.Payer, details.Owner)
	}
	return nil
}

// AddressesEqual compares Solana addresses (base58 is case-sensitive)
func AddressesEqual(addr1, addr2 string) bool {
	return addr1 == addr2
}
