package constants

import "time"

const (
	DefaultRequestTimeout = 30 * time.Second // upper bound for a whole paid call
	TLSHandshakeTimeout   = 10 * time.Second // timeout for TLS handshake
	ResponseHeaderTimeout = 20 * time.Second // timeout for response header
	ExpectContinueTimeout = 1 * time.Second  // timeout for expect continue
	BlockhashTimeout      = 10 * time.Second // timeout for fetching a recent Solana blockhash
	AuthorizationValidity = 10 * time.Minute // validBefore offset for EVM authorizations
	MaxResponseBodySize   = 10 * 1024 * 1024 // maximum response body size in bytes (10MB)
	MaxURLLength          = 2048
)

const (
	USDCDecimals = 6
	X402Version  = 1
	SchemeExact  = "exact"
)

// Solana compute budget used for TransferChecked authorizations
const (
	SolanaComputeUnitLimit = 200_000
	SolanaComputeUnitPrice = 5_000_000 // microlamports per compute unit
)

// Header names used by the x402 handshake
const (
	HeaderPayment         = "X-Payment"
	HeaderPaymentRequired = "X-Payment-Required"
	HeaderSettlement      = "X-Settlement"
	HeaderPaymentResponse = "X-Payment-Response"
	HeaderContentType     = "Content-Type"
	ContentTypeJSON       = "application/json"
)

// Network Types
const (
	NetworkBase          = "base"
	NetworkBaseSepolia   = "base-sepolia"
	NetworkAvalanche     = "avalanche"
	NetworkAvalancheFuji = "avalanche-fuji"
	NetworkPolygon       = "polygon"
	NetworkPolygonAmoy   = "polygon-amoy"
	NetworkSolana        = "solana"
	NetworkSolanaDevnet  = "solana-devnet"
)

// CAIP-2 identifiers
const (
	CAIP2PrefixEVM    = "eip155"
	CAIP2PrefixSolana = "solana"

	CAIP2SolanaMainnet = "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"
	CAIP2SolanaDevnet  = "solana:EtWTRABZaYq6iMfeYKouRu166VU2xqa1"
)

const (
	USDCAddressBase          = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	USDCAddressBaseSepolia   = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	USDCAddressAvalanche     = "0xB97EF9Ef8734C71904D8002F8b6Bc66Dd9c48a6E"
	USDCAddressAvalancheFuji = "0x5425890298aed601595a70AB815c96711a31Bc65"
	USDCAddressPolygon       = "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"
	USDCAddressPolygonAmoy   = "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582"
	USDCAddressSolana        = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDCAddressSolanaDevnet  = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"
)

var NetworkToUSDCAddress = map[string]string{
	NetworkBase:          USDCAddressBase,
	NetworkBaseSepolia:   USDCAddressBaseSepolia,
	NetworkAvalanche:     USDCAddressAvalanche,
	NetworkAvalancheFuji: USDCAddressAvalancheFuji,
	NetworkPolygon:       USDCAddressPolygon,
	NetworkPolygonAmoy:   USDCAddressPolygonAmoy,
	NetworkSolana:        USDCAddressSolana,
	NetworkSolanaDevnet:  USDCAddressSolanaDevnet,
}

// mapping from network name to numeric chain ID
var NetworkToChainID = map[string]int64{
	NetworkBase:          8453,
	NetworkBaseSepolia:   84532,
	NetworkAvalanche:     43114,
	NetworkAvalancheFuji: 43113,
	NetworkPolygon:       137,
	NetworkPolygonAmoy:   80002,
}

// mapping from CAIP-2 Solana identifier to network name
var SolanaCAIP2ToNetwork = map[string]string{
	CAIP2SolanaMainnet: NetworkSolana,
	CAIP2SolanaDevnet:  NetworkSolanaDevnet,
}

// EIP-712 domain names of the USDC contracts
var USDCName = map[string]string{
	NetworkBase:          "USD Coin",
	NetworkBaseSepolia:   "USDC",
	NetworkAvalanche:     "USD Coin",
	NetworkAvalancheFuji: "USD Coin",
	NetworkPolygon:       "USD Coin",
	NetworkPolygonAmoy:   "USDC",
}

const USDCVersion = "2"

var OfficialRPCEndpoints = map[string]string{
	NetworkSolana:       "https://api.mainnet-beta.solana.com",
	NetworkSolanaDevnet: "https://api.devnet.solana.com",
}

var ExplorerURLs = map[string]string{
	NetworkBase:         "https://basescan.org/tx",
	NetworkBaseSepolia:  "https://sepolia.basescan.org/tx",
	NetworkSolana:       "https://explorer.solana.com/tx",
	NetworkSolanaDevnet: "https://explorer.solana.com/tx?cluster=devnet",
}

// Minifetch API base URLs
const (
	MinifetchMainnetURL = "https://minifetch.com"
	MinifetchTestnetURL = "http://localhost:4021"
)

var APIBaseURLs = map[string]string{
	NetworkBase:         MinifetchMainnetURL,
	NetworkBaseSepolia:  MinifetchTestnetURL,
	NetworkSolana:       MinifetchMainnetURL,
	NetworkSolanaDevnet: MinifetchTestnetURL,
}
