/*
 * Copyright (c) 2024 Bima Kharisma Wicaksana
 * GitHub: https://github.com/bimakw
 *
 * Licensed under MIT License with Attribution Requirement.
 * See LICENSE file for details.
 */

package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"go.uber.org/zap"
)

var (
	// ErrStalePrice is returned when a feed has not updated within the
	// configured staleness window
	ErrStalePrice = errors.New("stale price")
	// ErrInvalidAnswer is returned for a zero or negative feed answer
	ErrInvalidAnswer = errors.New("invalid feed answer")
)

// Chainlink aggregator selectors (first 4 bytes of keccak256 hash)
var (
	// latestRoundData() -> 0xfeaf968c
	latestRoundDataSig = common.FromHex("0xfeaf968c")
	// decimals() -> 0x313ce567
	decimalsSig = common.FromHex("0x313ce567")
)

// ContractCaller performs read-only contract calls
type ContractCaller interface {
	CallContract(ctx context.Context, addr common.Address, data []byte) ([]byte, error)
}

// RoundData is a decoded latestRoundData() response
type RoundData struct {
	RoundID   *big.Int
	Answer    *big.Int
	UpdatedAt time.Time
}

// PriceReading is a feed answer scaled to USD
type PriceReading struct {
	PriceUSD  float64
	RoundID   string
	UpdatedAt time.Time
}

// PriceFeed reads a Chainlink aggregator proxy via eth_call
type PriceFeed struct {
	caller       ContractCaller
	address      common.Address
	maxStaleness time.Duration
	logger       *zap.Logger

	mu       sync.Mutex
	decimals *uint8

	now func() time.Time
}

// NewPriceFeed creates a feed reader for the aggregator at address
func NewPriceFeed(caller ContractCaller, address string, maxStaleness time.Duration, logger *zap.Logger) (*PriceFeed, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid feed address: %q", address)
	}

	return &PriceFeed{
		caller:       caller,
		address:      common.HexToAddress(address),
		maxStaleness: maxStaleness,
		logger:       logger,
		now:          time.Now,
	}, nil
}

// Address returns the aggregator address
func (f *PriceFeed) Address() common.Address {
	return f.address
}

// Decimals returns the feed's answer precision. The value never changes
// for a deployed aggregator, so it is fetched once.
func (f *PriceFeed) Decimals(ctx context.Context) (uint8, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.decimals != nil {
		return *f.decimals, nil
	}

	result, err := f.caller.CallContract(ctx, f.address, decimalsSig)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch feed decimals: %w", err)
	}

	// Decimals returns uint8, but padded to 32 bytes
	if len(result) < 32 {
		return 0, fmt.Errorf("invalid decimals response length: %d", len(result))
	}

	d := result[31]
	f.decimals = &d
	return d, nil
}

// LatestRound fetches and decodes latestRoundData()
func (f *PriceFeed) LatestRound(ctx context.Context) (*RoundData, error) {
	result, err := f.caller.CallContract(ctx, f.address, latestRoundDataSig)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest round: %w", err)
	}
	return decodeRoundData(result)
}

// LatestPrice returns the current answer in USD, rejecting stale or
// non-positive rounds
func (f *PriceFeed) LatestPrice(ctx context.Context) (*PriceReading, error) {
	decimals, err := f.Decimals(ctx)
	if err != nil {
		return nil, err
	}

	round, err := f.LatestRound(ctx)
	if err != nil {
		return nil, err
	}

	if round.Answer.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAnswer, round.Answer.String())
	}

	if f.maxStaleness > 0 {
		if age := f.now().Sub(round.UpdatedAt); age > f.maxStaleness {
			return nil, fmt.Errorf("%w: feed %s last updated %s ago", ErrStalePrice, f.address.Hex(), age.Round(time.Second))
		}
	}

	f.logger.Debug("Read price feed",
		zap.String("feed", f.address.Hex()),
		zap.String("round_id", round.RoundID.String()),
		zap.String("answer", round.Answer.String()),
	)

	return &PriceReading{
		PriceUSD:  scaleAnswer(round.Answer, decimals),
		RoundID:   round.RoundID.String(),
		UpdatedAt: round.UpdatedAt,
	}, nil
}

// decodeRoundData decodes the ABI-encoded tuple
// (uint80 roundId, int256 answer, uint256 startedAt, uint256 updatedAt, uint80 answeredInRound)
func decodeRoundData(data []byte) (*RoundData, error) {
	if len(data) < 5*32 {
		return nil, fmt.Errorf("invalid latestRoundData response length: %d", len(data))
	}

	roundID := new(big.Int).SetBytes(data[0:32])
	answer := math.S256(new(big.Int).SetBytes(data[32:64]))
	updatedAt := new(big.Int).SetBytes(data[96:128])

	if !updatedAt.IsInt64() {
		return nil, fmt.Errorf("invalid updatedAt: %s", updatedAt.String())
	}

	return &RoundData{
		RoundID:   roundID,
		Answer:    answer,
		UpdatedAt: time.Unix(updatedAt.Int64(), 0).UTC(),
	}, nil
}

// scaleAnswer converts a fixed-point answer to a float
func scaleAnswer(answer *big.Int, decimals uint8) float64 {
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	v, _ := new(big.Float).Quo(new(big.Float).SetInt(answer), scale).Float64()
	return v
}
