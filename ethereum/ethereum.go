package ethereum

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/soficola/bridge-relay/utils"
)

var (
	TokensLockedEventABI     = "TokensLocked(address,uint256,address,address,uint256,uint256)"
	TokensLockedEventABIHash = crypto.Keccak256Hash([]byte(TokensLockedEventABI))
)

type Client struct {
	client        *ethclient.Client
	chainId       *big.Int
	bridgeAddress common.Address
	logger        *slog.Logger
	Opts          *ClientOpts
}

type ClientOpts struct {
	Endpoint              string
	BridgeContractAddress common.Address
	Logger                *slog.Logger
	Timeout               time.Duration
}

// NewClient returns a new source chain RPC client over HTTP.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	client, err := ethclient.Dial(opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to source chain: %w", err)
	}

	chainId, err := client.ChainID(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("failed to get chainId: %w", err)
	}

	opts.Logger.Info("Connected to source chain", "chainId", chainId, "endpoint", opts.Endpoint)

	// Warn user if the bridge contract is not found at the given address.
	if ok, _ := utils.IsContract(client, opts.BridgeContractAddress); !ok {
		opts.Logger.Warn("contract not found for Bridge at given Address", "address", opts.BridgeContractAddress.Hex(), "endpoint", opts.Endpoint)
	}

	return &Client{
		client:        client,
		chainId:       chainId,
		bridgeAddress: opts.BridgeContractAddress,
		logger:        opts.Logger,
		Opts:          &opts,
	}, nil
}

// ChainID returns the chain id reported by the node at connect time.
func (c *Client) ChainID() *big.Int {
	return c.chainId
}

// BlockNumber returns the number of the most recent block on the source chain.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.client.BlockNumber(ctx)
}

// FilterTokensLocked returns the raw TokensLocked logs emitted by the bridge
// contract over the closed block range [fromBlock, toBlock].
func (c *Client) FilterTokensLocked(ctx context.Context, fromBlock uint64, toBlock uint64) ([]types.Log, error) {
	query := goethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.bridgeAddress},
		Topics:    [][]common.Hash{{TokensLockedEventABIHash}},
	}

	return c.client.FilterLogs(ctx, query)
}

// GetBlockTimestamp gets the timestamp of a block by its number using a direct RPC call
func (c *Client) GetBlockTimestamp(blockNumber uint64) (uint64, error) {
	// Convert block number to hex
	blockNumberHex := fmt.Sprintf("0x%x", blockNumber)

	// Construct the JSON-RPC request body
	requestBody := fmt.Sprintf(`{
		"jsonrpc": "2.0",
		"method": "eth_getBlockByNumber",
		"params": ["%s", false],
		"id": 1
	}`, blockNumberHex)

	// Create the request
	req, err := http.NewRequest("POST", c.Opts.Endpoint, strings.NewReader(requestBody))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	// Make the request
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// Read the response
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("failed to read response body: %w", err)
	}

	// Parse the response
	var result struct {
		Result struct {
			Timestamp string `json:"timestamp"`
		} `json:"result"`
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return 0, fmt.Errorf("failed to parse response: %w", err)
	}

	// Convert hex timestamp to uint64
	timestampHex := strings.TrimPrefix(result.Result.Timestamp, "0x")
	timestamp, err := strconv.ParseUint(timestampHex, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	return timestamp, nil
}
