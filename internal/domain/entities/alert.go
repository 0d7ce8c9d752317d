package entities

import (
	"time"

	"github.com/google/uuid"
)

// AlertType is the kind of market condition an alert watches
type AlertType string

const (
	AlertPriceLevel AlertType = "PRICE_LEVEL"
	AlertConfirm20D AlertType = "CONFIRM_20D"
	AlertCrash24h   AlertType = "CRASH_24H"
)

// AlertOp is the comparison direction of an alert
type AlertOp string

const (
	OpGTE AlertOp = "gte"
	OpLTE AlertOp = "lte"
)

// AlertRule is a user's market alert definition
type AlertRule struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	UserID          int64      `json:"-" db:"user_id"`
	Type            AlertType  `json:"type" db:"type"`
	Enabled         bool       `json:"enabled" db:"enabled"`
	Chain           *Chain     `json:"chain,omitempty" db:"chain"`
	Symbol          *string    `json:"symbol,omitempty" db:"symbol"`
	Op              *AlertOp   `json:"op,omitempty" db:"op"`
	Threshold       *float64   `json:"threshold,omitempty" db:"threshold"`
	CooldownMinutes *int       `json:"cooldownMinutes,omitempty" db:"cooldown_minutes"`
	LastTriggeredAt *time.Time `json:"lastTriggeredAt,omitempty" db:"last_triggered_at"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
}

// AlertTrigger records a rule firing
type AlertTrigger struct {
	RuleID  uuid.UUID `json:"ruleId"`
	Type    AlertType `json:"type"`
	Message string    `json:"message"`
	FiredAt time.Time `json:"firedAt"`
}
