package strategy

import (
	"errors"
	"fmt"
	"time"

	"github.com/bimakw/stage-rebalancer/internal/domain/entities"
)

// DefaultCrashAlertPct is the 24h drop a CRASH_24H rule watches for when
// it carries no threshold
const DefaultCrashAlertPct = 12.0

// ErrInvalidAlertRule is wrapped by every ValidateAlertRule failure
var ErrInvalidAlertRule = errors.New("invalid alert rule")

// ValidateAlertRule checks that rule carries the fields its type needs
func ValidateAlertRule(rule entities.AlertRule) error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidAlertRule, fmt.Sprintf(format, args...))
	}

	if rule.Chain != nil && !rule.Chain.Valid() {
		return invalid("chain must be one of base, solana")
	}
	if rule.CooldownMinutes != nil && *rule.CooldownMinutes < 0 {
		return invalid("cooldownMinutes must not be negative")
	}
	if rule.Op != nil && *rule.Op != entities.OpGTE && *rule.Op != entities.OpLTE {
		return invalid("op must be gte or lte")
	}
	if rule.Symbol != nil && !knownAsset(*rule.Symbol) {
		return invalid("symbol must be ETH or SOL")
	}

	switch rule.Type {
	case entities.AlertPriceLevel:
		if rule.Symbol == nil {
			return invalid("PRICE_LEVEL requires symbol")
		}
		if rule.Op == nil {
			return invalid("PRICE_LEVEL requires op")
		}
		if rule.Threshold == nil || *rule.Threshold <= 0 {
			return invalid("PRICE_LEVEL requires a positive threshold")
		}
	case entities.AlertConfirm20D:
		if rule.Op == nil {
			return invalid("CONFIRM_20D requires op")
		}
	case entities.AlertCrash24h:
		if rule.Threshold != nil && *rule.Threshold <= 0 {
			return invalid("CRASH_24H threshold is a positive drop percentage")
		}
	default:
		return invalid("unknown type %q", rule.Type)
	}

	return nil
}

// EvaluateAlert reports whether rule fires against signals at now.
// Disabled rules and rules still inside their cooldown never fire.
func EvaluateAlert(rule entities.AlertRule, signals entities.MarketSignals, now time.Time) (entities.AlertTrigger, bool) {
	if !rule.Enabled || inCooldown(rule, now) {
		return entities.AlertTrigger{}, false
	}

	var (
		msg   string
		fired bool
	)
	switch rule.Type {
	case entities.AlertPriceLevel:
		msg, fired = evaluatePriceLevel(rule, signals)
	case entities.AlertConfirm20D:
		msg, fired = evaluateConfirm20D(rule, signals)
	case entities.AlertCrash24h:
		msg, fired = evaluateCrash(rule, signals)
	}
	if !fired {
		return entities.AlertTrigger{}, false
	}

	return entities.AlertTrigger{
		RuleID:  rule.ID,
		Type:    rule.Type,
		Message: msg,
		FiredAt: now,
	}, true
}

func inCooldown(rule entities.AlertRule, now time.Time) bool {
	if rule.LastTriggeredAt == nil || rule.CooldownMinutes == nil || *rule.CooldownMinutes == 0 {
		return false
	}
	until := rule.LastTriggeredAt.Add(time.Duration(*rule.CooldownMinutes) * time.Minute)
	return now.Before(until)
}

func evaluatePriceLevel(rule entities.AlertRule, m entities.MarketSignals) (string, bool) {
	if rule.Symbol == nil || rule.Op == nil || rule.Threshold == nil {
		return "", false
	}
	s, ok := m.ForAsset(entities.Asset(*rule.Symbol))
	if !ok {
		return "", false
	}
	threshold := *rule.Threshold

	switch *rule.Op {
	case entities.OpGTE:
		if s.Close >= threshold {
			return fmt.Sprintf("%s at %s is at or above %s.", *rule.Symbol, formatNum(s.Close), formatNum(threshold)), true
		}
	case entities.OpLTE:
		if s.Close <= threshold {
			return fmt.Sprintf("%s at %s is at or below %s.", *rule.Symbol, formatNum(s.Close), formatNum(threshold)), true
		}
	}
	return "", false
}

// evaluateConfirm20D mirrors the stage rules when no symbol is given:
// both assets must break out for gte, either breaking down fires lte.
func evaluateConfirm20D(rule entities.AlertRule, m entities.MarketSignals) (string, bool) {
	if rule.Op == nil {
		return "", false
	}

	if rule.Symbol != nil {
		s, ok := m.ForAsset(entities.Asset(*rule.Symbol))
		if !ok {
			return "", false
		}
		switch *rule.Op {
		case entities.OpGTE:
			if s.Close > s.High20d {
				return fmt.Sprintf("%s closed at %s above its 20D high %s.", *rule.Symbol, formatNum(s.Close), formatNum(s.High20d)), true
			}
		case entities.OpLTE:
			if s.Close < s.Low20d {
				return fmt.Sprintf("%s closed at %s below its 20D low %s.", *rule.Symbol, formatNum(s.Close), formatNum(s.Low20d)), true
			}
		}
		return "", false
	}

	switch *rule.Op {
	case entities.OpGTE:
		if m.ETH.Close > m.ETH.High20d && m.SOL.Close > m.SOL.High20d {
			return "Both ETH and SOL closed above their 20D highs.", true
		}
	case entities.OpLTE:
		if m.ETH.Close < m.ETH.Low20d || m.SOL.Close < m.SOL.Low20d {
			return "ETH or SOL closed below its 20D low.", true
		}
	}
	return "", false
}

func evaluateCrash(rule entities.AlertRule, m entities.MarketSignals) (string, bool) {
	drop := DefaultCrashAlertPct
	if rule.Threshold != nil {
		drop = *rule.Threshold
	}
	if m.PctChange24h <= -drop {
		return fmt.Sprintf("24h change %.2f%% breached the -%s%% crash threshold.", m.PctChange24h, formatNum(drop)), true
	}
	return "", false
}

func knownAsset(symbol string) bool {
	for _, a := range entities.Assets {
		if string(a) == symbol {
			return true
		}
	}
	return false
}
