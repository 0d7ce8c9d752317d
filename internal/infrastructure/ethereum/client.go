package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/bimakw/stage-rebalancer/internal/config"
)

// Client wraps the Ethereum client with retry logic and utilities
type Client struct {
	client  *ethclient.Client
	config  config.OracleConfig
	logger  *zap.Logger
	chainID *big.Int
}

// NewClient creates a new Ethereum client
func NewClient(cfg config.OracleConfig, logger *zap.Logger) (*Client, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Ethereum node: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	if chainID.Int64() != cfg.ChainID {
		client.Close()
		return nil, fmt.Errorf("chain ID mismatch: expected %d, got %d", cfg.ChainID, chainID.Int64())
	}

	logger.Info("Connected to Ethereum node",
		zap.String("rpc_url", cfg.RPCURL),
		zap.Int64("chain_id", chainID.Int64()),
	)

	return &Client{
		client:  client,
		config:  cfg,
		logger:  logger,
		chainID: chainID,
	}, nil
}

// Close closes the Ethereum client connection
func (c *Client) Close() {
	c.client.Close()
}

// retry runs fn up to MaxRetries+1 times, sleeping RetryDelay between
// attempts. A cancelled context stops the loop early.
func (c *Client) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error

	for i := 0; i <= c.config.MaxRetries; i++ {
		callCtx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}

		c.logger.Warn("RPC call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", i+1),
			zap.Error(err),
		)

		if i < c.config.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}
	}

	return fmt.Errorf("failed to %s after %d retries: %w", op, c.config.MaxRetries, err)
}

// GetLatestBlockNumber returns the latest block number
func (c *Client) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	var blockNumber uint64
	err := c.retry(ctx, "get latest block number", func(ctx context.Context) error {
		var err error
		blockNumber, err = c.client.BlockNumber(ctx)
		return err
	})
	return blockNumber, err
}

// CallContract performs a read-only eth_call against the latest block
func (c *Client) CallContract(ctx context.Context, addr common.Address, data []byte) ([]byte, error) {
	msg := ethereum.CallMsg{To: &addr, Data: data}

	var result []byte
	err := c.retry(ctx, "call "+addr.Hex(), func(ctx context.Context) error {
		var err error
		result, err = c.client.CallContract(ctx, msg, nil)
		return err
	})
	return result, err
}

// HealthCheck reports whether the node answers
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.client.BlockNumber(ctx)
	return err
}

// ChainID returns the chain ID
func (c *Client) ChainID() *big.Int {
	return c.chainID
}
