package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/Layr-Labs/zkauction-go/pkg/types"
)

// Environment variable names for the auctioneer
const (
	EnvAuctionConfigFile = "AUCTION_CONFIG_FILE"
	EnvAuctionLabel      = "AUCTION_LABEL"
	EnvAuctionDebug      = "AUCTION_DEBUG"
	EnvAuctionLogFile    = "AUCTION_LOG_FILE"

	EnvAuctionMaxPrice           = "AUCTION_MAX_PRICE"
	EnvAuctionCollateralRatioBps = "AUCTION_COLLATERAL_RATIO_BPS"
	EnvAuctionWorkers            = "AUCTION_WORKERS"

	EnvAuctionRPCURL            = "AUCTION_RPC_URL"
	EnvAuctionChainID           = "AUCTION_CHAIN_ID"
	EnvAuctionLedgerAddress     = "AUCTION_LEDGER_ADDRESS"
	EnvAuctionPageSize          = "AUCTION_PAGE_SIZE"
	EnvAuctionRequestsPerSecond = "AUCTION_REQUESTS_PER_SECOND"

	EnvAuctionProverType       = "AUCTION_PROVER_TYPE"
	EnvAuctionProverAddress    = "AUCTION_PROVER_ADDRESS"
	EnvAuctionProverPrivateKey = "AUCTION_PROVER_PRIVATE_KEY"
	EnvAuctionProverKMSKeyID   = "AUCTION_PROVER_KMS_KEY_ID"
	EnvAuctionAWSRegion        = "AUCTION_AWS_REGION"

	EnvAuctionPersistenceType = "AUCTION_PERSISTENCE_TYPE"
	EnvAuctionDataPath        = "AUCTION_DATA_PATH"
	EnvAuctionRedisAddress    = "AUCTION_REDIS_ADDRESS"
	EnvAuctionRedisPassword   = "AUCTION_REDIS_PASSWORD"
	EnvAuctionRedisDB         = "AUCTION_REDIS_DB"
	EnvAuctionRedisKeyPrefix  = "AUCTION_REDIS_KEY_PREFIX"
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
}
var ChainNameToId = map[ChainName]ChainId{
	ChainName_EthereumMainnet: ChainId_EthereumMainnet,
	ChainName_EthereumSepolia: ChainId_EthereumSepolia,
	ChainName_EthereumAnvil:   ChainId_EthereumAnvil,
}

// GetSupportedChainIDsString returns supported chain IDs as strings for CLI help
func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (sepolia), %d (anvil)",
		ChainId_EthereumMainnet, ChainId_EthereumSepolia, ChainId_EthereumAnvil)
}

type PersistenceType string

const (
	PersistenceTypeMemory PersistenceType = "memory"
	PersistenceTypeBadger PersistenceType = "badger"
	PersistenceTypeRedis  PersistenceType = "redis"
)

// ProverType selects how the submitter address is resolved and whether public values get signed.
type ProverType string

const (
	// ProverTypeNone uses the prover address recorded in the batch and signs nothing.
	ProverTypeNone   ProverType = "none"
	ProverTypeStatic ProverType = "static"
	ProverTypeLocal  ProverType = "local"
	ProverTypeAWSKMS ProverType = "aws-kms"
)

type RedisConfig struct {
	Address   string `json:"address" yaml:"address"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	KeyPrefix string `json:"keyPrefix" yaml:"keyPrefix"`
}

type PersistenceConfig struct {
	Type     PersistenceType `json:"type" yaml:"type"`
	DataPath string          `json:"dataPath" yaml:"dataPath"`
	Redis    RedisConfig     `json:"redis" yaml:"redis"`
}

func (pc *PersistenceConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	switch pc.Type {
	case PersistenceTypeMemory:
	case PersistenceTypeBadger:
		if pc.DataPath == "" {
			allErrors = append(allErrors, field.Required(path.Child("dataPath"), "dataPath is required for badger"))
		}
	case PersistenceTypeRedis:
		if pc.Redis.Address == "" {
			allErrors = append(allErrors, field.Required(path.Child("redis", "address"), "address is required for redis"))
		}
		if pc.Redis.DB < 0 || pc.Redis.DB > 15 {
			allErrors = append(allErrors, field.Invalid(path.Child("redis", "db"), pc.Redis.DB, "must be between 0 and 15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), pc.Type,
			[]string{string(PersistenceTypeMemory), string(PersistenceTypeBadger), string(PersistenceTypeRedis)}))
	}
	return allErrors
}

type ProverConfig struct {
	Type       ProverType `json:"type" yaml:"type"`
	Address    string     `json:"address" yaml:"address"`
	PrivateKey string     `json:"privateKey" yaml:"privateKey"`
	KMSKeyID   string     `json:"kmsKeyId" yaml:"kmsKeyId"`
	AWSRegion  string     `json:"awsRegion" yaml:"awsRegion"`
}

func (pc *ProverConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	switch pc.Type {
	case ProverTypeNone:
	case ProverTypeStatic:
		if !common.IsHexAddress(pc.Address) {
			allErrors = append(allErrors, field.Invalid(path.Child("address"), pc.Address, "must be a hex address"))
		}
	case ProverTypeLocal:
		key := strings.TrimPrefix(pc.PrivateKey, "0x")
		if len(key) != 64 {
			// Never echo the key itself.
			allErrors = append(allErrors, field.Invalid(path.Child("privateKey"), "<redacted>",
				fmt.Sprintf("must be 32 bytes (64 hex chars), got %d chars", len(key))))
		}
	case ProverTypeAWSKMS:
		if pc.KMSKeyID == "" {
			allErrors = append(allErrors, field.Required(path.Child("kmsKeyId"), "kmsKeyId is required for aws-kms"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(path.Child("type"), pc.Type,
			[]string{string(ProverTypeNone), string(ProverTypeStatic), string(ProverTypeLocal), string(ProverTypeAWSKMS)}))
	}
	return allErrors
}

// LedgerConfig locates the ledger contract. Only the fetch command needs it.
type LedgerConfig struct {
	RpcUrl            string  `json:"rpcUrl" yaml:"rpcUrl"`
	ChainID           ChainId `json:"chainId" yaml:"chainId"`
	Address           string  `json:"address" yaml:"address"`
	PageSize          uint64  `json:"pageSize" yaml:"pageSize"`
	RequestsPerSecond float64 `json:"requestsPerSecond" yaml:"requestsPerSecond"`
}

func (lc *LedgerConfig) Validate() error {
	return lc.validate(field.NewPath("ledger")).ToAggregate()
}

func (lc *LedgerConfig) validate(path *field.Path) field.ErrorList {
	var allErrors field.ErrorList
	if lc.RpcUrl == "" {
		allErrors = append(allErrors, field.Required(path.Child("rpcUrl"), "rpcUrl is required"))
	}
	if _, ok := ChainIdToName[lc.ChainID]; !ok {
		allErrors = append(allErrors, field.Invalid(path.Child("chainId"), lc.ChainID,
			"supported: "+GetSupportedChainIDsString()))
	}
	if !common.IsHexAddress(lc.Address) {
		allErrors = append(allErrors, field.Invalid(path.Child("address"), lc.Address, "must be a hex address"))
	}
	if lc.RequestsPerSecond < 0 {
		allErrors = append(allErrors, field.Invalid(path.Child("requestsPerSecond"), lc.RequestsPerSecond, "must not be negative"))
	}
	return allErrors
}

// AuctionConfig is the auctioneer's complete configuration.
type AuctionConfig struct {
	// Label groups run records of one auction.
	Label string `json:"label" yaml:"label"`

	// MaxPrice caps revealed prices, in basis points. Empty uses types.MaxPrice.
	MaxPrice           string `json:"maxPrice" yaml:"maxPrice"`
	CollateralRatioBps uint64 `json:"collateralRatioBps" yaml:"collateralRatioBps"`
	Workers            int    `json:"workers" yaml:"workers"`

	Ledger      LedgerConfig      `json:"ledger" yaml:"ledger"`
	Prover      ProverConfig      `json:"prover" yaml:"prover"`
	Persistence PersistenceConfig `json:"persistence" yaml:"persistence"`

	Debug   bool   `json:"debug" yaml:"debug"`
	LogFile string `json:"logFile" yaml:"logFile"`
}

func Default() *AuctionConfig {
	return &AuctionConfig{
		Label:              "default",
		CollateralRatioBps: types.DefaultCollateralRatioBps,
		Ledger: LedgerConfig{
			ChainID: ChainId_EthereumMainnet,
		},
		Prover: ProverConfig{
			Type: ProverTypeNone,
		},
		Persistence: PersistenceConfig{
			Type: PersistenceTypeMemory,
		},
	}
}

// LoadFile reads a YAML config on top of Default. Unknown keys are rejected.
func LoadFile(path string) (*AuctionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*AuctionConfig, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks everything except the ledger section, which only fetch needs.
func (c *AuctionConfig) Validate() error {
	var allErrors field.ErrorList
	if c.Label == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("label"), "label is required"))
	}
	if _, err := c.MaxPriceValue(); err != nil {
		allErrors = append(allErrors, field.Invalid(field.NewPath("maxPrice"), c.MaxPrice, err.Error()))
	}
	if c.CollateralRatioBps < types.BPS {
		allErrors = append(allErrors, field.Invalid(field.NewPath("collateralRatioBps"), c.CollateralRatioBps,
			fmt.Sprintf("must be at least %d (100%%)", types.BPS)))
	}
	if c.Workers < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("workers"), c.Workers, "must not be negative"))
	}
	allErrors = append(allErrors, c.Prover.validate(field.NewPath("prover"))...)
	allErrors = append(allErrors, c.Persistence.validate(field.NewPath("persistence"))...)
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// MaxPriceValue parses MaxPrice. Nil means the default cap.
func (c *AuctionConfig) MaxPriceValue() (*uint256.Int, error) {
	if c.MaxPrice == "" {
		return nil, nil
	}
	v, err := types.ParseUint256(c.MaxPrice)
	if err != nil {
		return nil, err
	}
	if v.IsZero() {
		return nil, fmt.Errorf("must be positive")
	}
	return v, nil
}
