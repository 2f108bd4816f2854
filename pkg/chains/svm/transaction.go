package svm

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/sigweihq/x402fetch/pkg/constants"
)

// transferParams describes a single SPL TransferChecked authorization
type transferParams struct {
	from      solana.PublicKey
	to        solana.PublicKey
	mint      solana.PublicKey
	feePayer  solana.PublicKey
	amount    uint64
	decimals  uint8
	unitPrice uint64
	blockhash solana.Hash
}

// buildTransferTransaction builds a partially signed SPL token transfer
// transaction. Facilitators expect exactly: compute unit limit, compute unit
// price, TransferChecked. Only the sender's signature slot is filled; the
// fee payer slot stays zero unless the sender pays its own fees.
func buildTransferTransaction(privateKey solana.PrivateKey, p transferParams) (string, error) {
	fromTokenAccount, _, err := solana.FindAssociatedTokenAddress(p.from, p.mint)
	if err != nil {
		return "", fmt.Errorf("failed to derive from token account: %w", err)
	}

	toTokenAccount, _, err := solana.FindAssociatedTokenAddress(p.to, p.mint)
	if err != nil {
		return "", fmt.Errorf("failed to derive to token account: %w", err)
	}

	instructions := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(constants.SolanaComputeUnitLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(p.unitPrice).Build(),
		token.NewTransferCheckedInstruction(
			p.amount,
			p.decimals,
			fromTokenAccount,
			p.mint,
			toTokenAccount,
			p.from,
			[]solana.PublicKey{}, // No additional signers
		).Build(),
	}

	tx, err := solana.NewTransaction(
		instructions,
		p.blockhash,
		solana.TransactionPayer(p.feePayer),
	)
	if err != nil {
		return "", fmt.Errorf("failed to build transaction: %w", err)
	}

	messageContent, err := tx.Message.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	senderSignature := ed25519.Sign(ed25519.PrivateKey(privateKey), messageContent)

	senderPosition := -1
	for i, key := range tx.Message.AccountKeys {
		if key.Equals(p.from) {
			senderPosition = i
			break
		}
	}
	if senderPosition == -1 || senderPosition >= int(tx.Message.Header.NumRequiredSignatures) {
		return "", fmt.Errorf("sender not found among transaction signers")
	}

	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	copy(tx.Signatures[senderPosition][:], senderSignature)

	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}

	return base64.StdEncoding.EncodeToString(txBytes), nil
}
