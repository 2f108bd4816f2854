package evm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/sigweihq/x402fetch/pkg/chains"
	"github.com/sigweihq/x402fetch/pkg/constants"
	"github.com/sigweihq/x402fetch/pkg/types"
)

var transferArguments = func() abi.Arguments {
	addressType, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	uintType, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Name: "to", Type: addressType},
		{Name: "amount", Type: uintType},
	}
}()

// ParseAmount parses a decimal amount in atomic units. Empty, signed,
// non-numeric and values above 2^256-1 are rejected.
func ParseAmount(amount string) (*uint256.Int, error) {
	if amount == "" {
		return nil, &InvalidAmountError{Amount: amount, Err: errors.New("empty")}
	}
	if strings.HasPrefix(amount, "-") || strings.HasPrefix(amount, "+") {
		return nil, &InvalidAmountError{Amount: amount, Err: errors.New("must be unsigned")}
	}
	v, err := uint256.FromDecimal(amount)
	if err != nil {
		return nil, &InvalidAmountError{Amount: amount, Err: err}
	}
	return v, nil
}

// EncodeTransferData ABI-encodes (address to, uint256 amount)
func EncodeTransferData(to string, amount *uint256.Int) (string, error) {
	if !common.IsHexAddress(to) {
		return "", fmt.Errorf("invalid recipient address: %s", to)
	}
	packed, err := transferArguments.Pack(common.HexToAddress(to), amount.ToBig())
	if err != nil {
		return "", fmt.Errorf("failed to abi-encode transfer: %w", err)
	}
	return hexutil.Encode(packed), nil
}

// ChainID resolves the numeric chain ID of a CAIP-2 ("eip155:84532") or
// named ("base-sepolia") network
func ChainID(network string) (int64, error) {
	if prefix, ref, ok := strings.Cut(network, ":"); ok {
		if prefix != constants.CAIP2PrefixEVM {
			return 0, &UnsupportedNetworkError{Network: network}
		}
		id, err := strconv.ParseInt(ref, 10, 64)
		if err != nil || id <= 0 {
			return 0, &UnsupportedNetworkError{Network: network}
		}
		return id, nil
	}

	id, ok := constants.NetworkToChainID[strings.ToLower(network)]
	if !ok {
		return 0, &UnsupportedNetworkError{Network: network}
	}
	return id, nil
}

// ResolveDomain derives the EIP-712 domain for a requirement. The asset and
// the extra name/version override the network's USDC defaults.
func ResolveDomain(req *types.PaymentRequirement) (Domain, error) {
	chainID, err := ChainID(req.Network)
	if err != nil {
		return Domain{}, err
	}

	name := chains.NetworkName(req.Network)

	asset := req.Asset
	if asset == "" {
		asset = constants.NetworkToUSDCAddress[name]
	}
	if !common.IsHexAddress(asset) {
		return Domain{}, fmt.Errorf("no token contract for network %s", req.Network)
	}

	domainName := req.ExtraString("name")
	if domainName == "" {
		domainName = constants.USDCName[name]
	}
	if domainName == "" {
		domainName = constants.USDCName[constants.NetworkBase]
	}

	version := req.ExtraString("version")
	if version == "" {
		version = constants.USDCVersion
	}

	return Domain{
		Name:              domainName,
		Version:           version,
		ChainID:           chainID,
		VerifyingContract: asset,
	}, nil
}
