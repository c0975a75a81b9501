package config

type Configuration struct {
	// Server config
	Server struct {
		UseSSL    bool   `yaml:"ssl"`
		Port      int    `yaml:"port"`
		RedisPort int    `yaml:"redis_port"`
		RedisHost string `yaml:"redis_host"`
	} `yaml:"server"`
	// Postgres settlement archive, empty DSN disables the archive
	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`
	// Bridge config
	Bridge struct {
		HomeChainID uint64 `yaml:"home_chain_id"`
		// system-wide ceiling for a single transfer, decimal string in wei
		MaxTransferAmount string `yaml:"max_transfer_amount"`
		// flat fee charged on createRequest, decimal string in wei
		BridgeFee string `yaml:"bridge_fee"`
	} `yaml:"bridge"`
	// Relayer config
	Relayer struct {
		// minimum stake to register and stay active, decimal string in wei
		MinimumStake string `yaml:"minimum_stake"`
	} `yaml:"relayer"`
	// Settlement config
	Settlement struct {
		// dispute window in seconds after settlement creation
		DisputeWindowSec int64 `yaml:"dispute_window_sec"`
		// fee required to open a dispute, decimal string in wei
		DisputeFee string `yaml:"dispute_fee"`
		// ceiling for a single settlement, decimal string in wei
		MaxAmount string `yaml:"max_amount"`
	} `yaml:"settlement"`
	// remote collaborators (jsonrpc endpoints), empty means in-process mode
	Collaborators struct {
		AssetLedgerURL string `yaml:"asset_ledger_url"`
		FeeOracleURL   string `yaml:"fee_oracle_url"`
	} `yaml:"collaborators"`
	// capability keys, resolved by the identity package
	Auth struct {
		AdminKeys     []string `yaml:"admin_keys"`
		ConfirmerKeys []string `yaml:"confirmer_keys"`
		ResolverKeys  []string `yaml:"resolver_keys"`
	} `yaml:"auth"`
}

var Config Configuration

// destination chains seeded into the registry at startup
type ChainParams struct {
	Name             string
	ChainID          uint64
	MinConfirmations int
	MaxThroughput    uint64
	BridgeFee        string // decimal string in wei
}

var SeedChains = map[uint64]ChainParams{
	1: {
		Name:             "Eth",
		ChainID:          1,
		MinConfirmations: 12,
		MaxThroughput:    1000,
		BridgeFee:        "1000000000000000",
	}, // Ethereum
	137: {
		Name:             "Polygon",
		ChainID:          137,
		MinConfirmations: 64,
		MaxThroughput:    5000,
		BridgeFee:        "500000000000000",
	}, // Polygon PoS
	42161: {
		Name:             "Arbitrum",
		ChainID:          42161,
		MinConfirmations: 6,
		MaxThroughput:    5000,
		BridgeFee:        "500000000000000",
	}, // Arbitrum
}

var RedisStatusSets = map[string]string{
	"pending":    "bridgereqs:pending",    // request created, funds locked
	"processing": "bridgereqs:processing", // a relayer claimed the request
	"completed":  "bridgereqs:completed",  // released to recipient
	"failed":     "bridgereqs:failed",     // relayer reported failure, refunded
	"cancelled":  "bridgereqs:cancelled",  // sender cancelled while pending
}

var RedisSettlementSets = map[string]string{
	"pending":   "settlements:pending",
	"confirmed": "settlements:confirmed",
	"disputed":  "settlements:disputed",
	"resolved":  "settlements:resolved",
	"cancelled": "settlements:cancelled",
}
