package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
)

var errMissingBody = errors.New("request body is required")

// decodeJSON decodes the request body into dst
func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errMissingBody
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errMissingBody
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// flexStage is a stage given either as a JSON number or a numeric string
type flexStage struct {
	Value entities.Stage
	Set   bool
}

func (s *flexStage) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var raw string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		raw = string(data)
	}

	stage, err := parseStage(raw)
	if err != nil {
		return err
	}
	s.Value, s.Set = stage, true
	return nil
}

// parseStage accepts an integral number, written either as "3" or "3.0"
func parseStage(raw string) (entities.Stage, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("stage must be an integer, got %q", raw)
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("stage out of range: %q", raw)
	}
	return entities.Stage(f), nil
}

// stageParam reads an optional stage query parameter; nil when absent
func stageParam(r *http.Request, name string) (*entities.Stage, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	stage, err := parseStage(raw)
	if err != nil {
		return nil, err
	}
	return &stage, nil
}

// holdingRequest uses pointers so that absent fields can be told apart
// from zero values
type holdingRequest struct {
	Chain    *string  `json:"chain"`
	Symbol   *string  `json:"symbol"`
	Quantity *float64 `json:"quantity"`
	USDValue *float64 `json:"usdValue"`
}

type snapshotRequest struct {
	AsOf     *string          `json:"asOf"`
	Holdings []holdingRequest `json:"holdings"`
}

// toEntity validates the request shape and converts it
func (req snapshotRequest) toEntity() (entities.PortfolioSnapshot, error) {
	if req.AsOf == nil {
		return entities.PortfolioSnapshot{}, errors.New("asOf is required")
	}
	if len(req.Holdings) == 0 {
		return entities.PortfolioSnapshot{}, errors.New("holdings must contain at least one entry")
	}

	snapshot := entities.PortfolioSnapshot{
		AsOf:     *req.AsOf,
		Holdings: make([]entities.Holding, 0, len(req.Holdings)),
	}
	for i, h := range req.Holdings {
		switch {
		case h.Chain == nil:
			return entities.PortfolioSnapshot{}, fmt.Errorf("holdings[%d].chain is required", i)
		case h.Symbol == nil:
			return entities.PortfolioSnapshot{}, fmt.Errorf("holdings[%d].symbol is required", i)
		case h.Quantity == nil:
			return entities.PortfolioSnapshot{}, fmt.Errorf("holdings[%d].quantity is required", i)
		case h.USDValue == nil:
			return entities.PortfolioSnapshot{}, fmt.Errorf("holdings[%d].usdValue is required", i)
		}
		snapshot.Holdings = append(snapshot.Holdings, entities.Holding{
			Chain:    entities.Chain(*h.Chain),
			Symbol:   *h.Symbol,
			Quantity: *h.Quantity,
			USDValue: *h.USDValue,
		})
	}

	if err := snapshot.Validate(); err != nil {
		return entities.PortfolioSnapshot{}, err
	}
	return snapshot, nil
}

type stageSignalsRequest struct {
	CurrentStage flexStage `json:"currentStage"`
	ETHClose     *float64  `json:"ethClose"`
	SOLClose     *float64  `json:"solClose"`
	ETH20dHigh   *float64  `json:"eth20dHigh"`
	ETH20dLow    *float64  `json:"eth20dLow"`
	SOL20dHigh   *float64  `json:"sol20dHigh"`
	SOL20dLow    *float64  `json:"sol20dLow"`
	PctChange24h *float64  `json:"pctChange24h"`
}

func (req stageSignalsRequest) toEntity() (entities.StageSignalInputs, error) {
	if !req.CurrentStage.Set {
		return entities.StageSignalInputs{}, errors.New("currentStage is required")
	}

	fields := []struct {
		name string
		v    *float64
	}{
		{"ethClose", req.ETHClose},
		{"solClose", req.SOLClose},
		{"eth20dHigh", req.ETH20dHigh},
		{"eth20dLow", req.ETH20dLow},
		{"sol20dHigh", req.SOL20dHigh},
		{"sol20dLow", req.SOL20dLow},
		{"pctChange24h", req.PctChange24h},
	}
	for _, f := range fields {
		if f.v == nil {
			return entities.StageSignalInputs{}, fmt.Errorf("%s is required", f.name)
		}
	}

	return entities.StageSignalInputs{
		CurrentStage: req.CurrentStage.Value,
		ETHClose:     *req.ETHClose,
		SOLClose:     *req.SOLClose,
		ETH20dHigh:   *req.ETH20dHigh,
		ETH20dLow:    *req.ETH20dLow,
		SOL20dHigh:   *req.SOL20dHigh,
		SOL20dLow:    *req.SOL20dLow,
		PctChange24h: *req.PctChange24h,
	}, nil
}

type saveSnapshotRequest struct {
	Email        string          `json:"email"`
	Stage        flexStage       `json:"stage"`
	SnapshotJSON json.RawMessage `json:"snapshotJson"`
	DriftResult  json.RawMessage `json:"driftResult"`
	Suggestions  json.RawMessage `json:"suggestions"`
}

func (req saveSnapshotRequest) validate() error {
	switch {
	case strings.TrimSpace(req.Email) == "":
		return errors.New("email is required")
	case !req.Stage.Set:
		return errors.New("stage is required")
	case len(bytes.TrimSpace(req.SnapshotJSON)) == 0 || bytes.Equal(bytes.TrimSpace(req.SnapshotJSON), []byte("null")):
		return errors.New("snapshotJson is required")
	}
	return nil
}

type createAlertRequest struct {
	Email           string   `json:"email"`
	Type            string   `json:"type"`
	Enabled         *bool    `json:"enabled"`
	Chain           *string  `json:"chain"`
	Symbol          *string  `json:"symbol"`
	Op              *string  `json:"op"`
	Threshold       *float64 `json:"threshold"`
	CooldownMinutes *int     `json:"cooldownMinutes"`
}
