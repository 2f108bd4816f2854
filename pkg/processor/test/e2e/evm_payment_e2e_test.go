package e2e

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sigweihq/x402fetch/pkg/constants"
	"github.com/sigweihq/x402fetch/pkg/processor"
	"github.com/stretchr/testify/suite"
)

// EVMPaymentE2ETestSuite pays a live x402 endpoint on Base Sepolia and checks
// the settlement on chain
type EVMPaymentE2ETestSuite struct {
	suite.Suite
	processor        *processor.PaymentProcessor
	paidURL          string
	senderAddress    string
	ethClient        *ethclient.Client
	usdcContractAddr common.Address
	logger           *slog.Logger
}

func (suite *EVMPaymentE2ETestSuite) SetupSuite() {
	suite.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))

	privateKey := os.Getenv("E2E_SENDER_PRIVATE_KEY")
	if privateKey == "" {
		suite.T().Skip("E2E_SENDER_PRIVATE_KEY not set, skipping real blockchain E2E tests")
	}
	suite.paidURL = os.Getenv("E2E_PAID_URL")
	if suite.paidURL == "" {
		suite.T().Skip("E2E_PAID_URL not set, skipping real blockchain E2E tests")
	}

	rpcURL := os.Getenv("E2E_BASE_SEPOLIA_RPC")
	if rpcURL == "" {
		rpcURL = "https://sepolia.base.org"
	}

	var err error
	suite.ethClient, err = ethclient.Dial(rpcURL)
	suite.Require().NoError(err, "Failed to connect to Base Sepolia")
	suite.usdcContractAddr = common.HexToAddress(constants.NetworkToUSDCAddress[constants.NetworkBaseSepolia])

	suite.processor, err = processor.NewPaymentProcessor(processor.Config{
		Network:    constants.NetworkBaseSepolia,
		PrivateKey: privateKey,
	}, suite.logger)
	suite.Require().NoError(err)
	suite.senderAddress = suite.processor.Signer().Address()

	balance, err := suite.getUSDCBalance(suite.senderAddress)
	suite.Require().NoError(err, "Failed to get sender balance")
	if balance.Cmp(big.NewInt(100000)) < 0 {
		suite.T().Skipf("Insufficient sender balance: has %s USDC wei, needs at least 100000", balance)
	}
	suite.T().Logf("Sender account: %s, Balance: %s USDC wei", suite.senderAddress, balance)
}

func (suite *EVMPaymentE2ETestSuite) TearDownSuite() {
	if suite.ethClient != nil {
		suite.ethClient.Close()
	}
}

// getUSDCBalance calls balanceOf(address) on the USDC contract
func (suite *EVMPaymentE2ETestSuite) getUSDCBalance(address string) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	selector := crypto.Keccak256([]byte("balanceOf(address)"))[:4]
	callData := append(selector, common.LeftPadBytes(common.HexToAddress(address).Bytes(), 32)...)

	result, err := suite.ethClient.CallContract(ctx, ethereum.CallMsg{
		To:   &suite.usdcContractAddr,
		Data: callData,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf for %s: %w", address, err)
	}
	if len(result) != 32 {
		return nil, fmt.Errorf("unexpected balanceOf result length: %d", len(result))
	}
	return new(big.Int).SetBytes(result), nil
}

// waitForReceipt polls until the settlement transaction is mined
func (suite *EVMPaymentE2ETestSuite) waitForReceipt(txHash string) *types.Receipt {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for {
		receipt, err := suite.ethClient.TransactionReceipt(ctx, common.HexToHash(txHash))
		if err == nil {
			return receipt
		}
		select {
		case <-ctx.Done():
			suite.Require().FailNow("timed out waiting for receipt", "tx %s: %v", txHash, err)
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

func (suite *EVMPaymentE2ETestSuite) TestPaidRequest() {
	initial, err := suite.getUSDCBalance(suite.senderAddress)
	suite.Require().NoError(err)

	result, err := suite.processor.Execute(context.Background(), suite.paidURL, nil)
	suite.Require().NoError(err)
	defer result.Response.Body.Close()
	_, _ = io.Copy(io.Discard, result.Response.Body)

	suite.Require().NotNil(result.Payment, "endpoint did not require payment")
	suite.Require().True(result.Payment.Success, "payment should be accepted")
	suite.Require().True(strings.HasPrefix(result.Payment.TxHash, "0x"), "transaction hash should start with 0x")
	suite.T().Logf("Payment settled: %s (%s)", result.Payment.TxHash, result.Payment.ExplorerLink)

	receipt := suite.waitForReceipt(result.Payment.TxHash)
	suite.Equal(types.ReceiptStatusSuccessful, receipt.Status)

	final, err := suite.getUSDCBalance(suite.senderAddress)
	suite.Require().NoError(err)
	paid, ok := new(big.Int).SetString(result.Payment.Amount, 10)
	suite.Require().True(ok)
	suite.Equal(new(big.Int).Sub(initial, paid).String(), final.String(),
		"Sender balance should decrease by the paid amount")
}

func TestEVMPaymentE2E(t *testing.T) {
	suite.Run(t, new(EVMPaymentE2ETestSuite))
}
