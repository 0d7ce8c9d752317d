/*
 * Copyright (c) 2024 Bima Kharisma Wicaksana
 * GitHub: https://github.com/bimakw
 *
 * Licensed under MIT License with Attribution Requirement.
 * See LICENSE file for details.
 */

package ethereum

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethmath "github.com/ethereum/go-ethereum/common/math"
	"go.uber.org/zap"
)

const testFeed = "0x71041dddad3595F9CEd3DcCFBe3D1F4b0a16Bb70"

type fakeCaller struct {
	decimals  uint8
	round     []byte
	err       error
	callCount map[string]int
}

func (f *fakeCaller) CallContract(_ context.Context, _ common.Address, data []byte) ([]byte, error) {
	if f.callCount == nil {
		f.callCount = make(map[string]int)
	}
	f.callCount[common.Bytes2Hex(data)]++

	if f.err != nil {
		return nil, f.err
	}
	if bytes.Equal(data, decimalsSig) {
		return common.LeftPadBytes([]byte{f.decimals}, 32), nil
	}
	return f.round, nil
}

func word(v *big.Int) []byte {
	return gethmath.U256Bytes(new(big.Int).Set(v))
}

func encodeRound(roundID int64, answer *big.Int, updatedAt time.Time) []byte {
	var out []byte
	out = append(out, word(big.NewInt(roundID))...)
	out = append(out, word(answer)...)
	out = append(out, word(big.NewInt(updatedAt.Unix()))...)
	out = append(out, word(big.NewInt(updatedAt.Unix()))...)
	out = append(out, word(big.NewInt(roundID))...)
	return out
}

func newTestFeed(t *testing.T, caller ContractCaller, now time.Time) *PriceFeed {
	t.Helper()
	feed, err := NewPriceFeed(caller, testFeed, time.Hour, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	feed.now = func() time.Time { return now }
	return feed
}

func TestNewPriceFeed_InvalidAddress(t *testing.T) {
	if _, err := NewPriceFeed(&fakeCaller{}, "not-an-address", time.Hour, zap.NewNop()); err == nil {
		t.Fatal("expected error for invalid address")
	}
}

func TestDecodeRoundData(t *testing.T) {
	updated := time.Unix(1_700_000_000, 0).UTC()

	tests := []struct {
		name       string
		input      []byte
		wantAnswer string
		wantErr    bool
	}{
		{
			name:       "positive answer",
			input:      encodeRound(42, big.NewInt(350012345678), updated),
			wantAnswer: "350012345678",
		},
		{
			name:       "negative answer is sign-extended",
			input:      encodeRound(42, big.NewInt(-5), updated),
			wantAnswer: "-5",
		},
		{
			name:    "short response",
			input:   make([]byte, 64),
			wantErr: true,
		},
		{
			name:    "empty response",
			input:   nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			round, err := decodeRoundData(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if round.Answer.String() != tt.wantAnswer {
				t.Errorf("expected answer %s, got %s", tt.wantAnswer, round.Answer.String())
			}
			if round.RoundID.Int64() != 42 {
				t.Errorf("expected round 42, got %s", round.RoundID.String())
			}
			if !round.UpdatedAt.Equal(updated) {
				t.Errorf("expected updatedAt %v, got %v", updated, round.UpdatedAt)
			}
		})
	}
}

func TestScaleAnswer(t *testing.T) {
	got := scaleAnswer(big.NewInt(350012345678), 8)
	if math.Abs(got-3500.12345678) > 1e-9 {
		t.Errorf("expected 3500.12345678, got %v", got)
	}

	if got := scaleAnswer(big.NewInt(150), 0); got != 150 {
		t.Errorf("expected 150, got %v", got)
	}
}

func TestPriceFeed_LatestPrice(t *testing.T) {
	now := time.Unix(1_700_000_600, 0).UTC()
	caller := &fakeCaller{
		decimals: 8,
		round:    encodeRound(7, big.NewInt(15025000000), now.Add(-10*time.Minute)),
	}
	feed := newTestFeed(t, caller, now)

	reading, err := feed.LatestPrice(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(reading.PriceUSD-150.25) > 1e-9 {
		t.Errorf("expected 150.25, got %v", reading.PriceUSD)
	}
	if reading.RoundID != "7" {
		t.Errorf("expected round 7, got %s", reading.RoundID)
	}

	// decimals is cached after the first read
	if _, err := feed.LatestPrice(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := caller.callCount[common.Bytes2Hex(decimalsSig)]; n != 1 {
		t.Errorf("expected decimals to be fetched once, got %d", n)
	}
}

func TestPriceFeed_LatestPrice_Stale(t *testing.T) {
	now := time.Unix(1_700_100_000, 0).UTC()
	caller := &fakeCaller{
		decimals: 8,
		round:    encodeRound(7, big.NewInt(15025000000), now.Add(-2*time.Hour)),
	}
	feed := newTestFeed(t, caller, now)

	_, err := feed.LatestPrice(context.Background())
	if !errors.Is(err, ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice, got %v", err)
	}
}

func TestPriceFeed_LatestPrice_NonPositive(t *testing.T) {
	now := time.Unix(1_700_000_600, 0).UTC()

	for _, answer := range []int64{0, -1} {
		caller := &fakeCaller{
			decimals: 8,
			round:    encodeRound(7, big.NewInt(answer), now),
		}
		feed := newTestFeed(t, caller, now)

		_, err := feed.LatestPrice(context.Background())
		if !errors.Is(err, ErrInvalidAnswer) {
			t.Errorf("answer %d: expected ErrInvalidAnswer, got %v", answer, err)
		}
	}
}

func TestPriceFeed_LatestPrice_CallError(t *testing.T) {
	caller := &fakeCaller{err: errors.New("rpc down")}
	feed := newTestFeed(t, caller, time.Now())

	if _, err := feed.LatestPrice(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
