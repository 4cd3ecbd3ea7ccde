package strategy

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tradeledger/src/model"
	"tradeledger/src/risk"
)

// Params describe how a strategy trades: the side it opens positions on,
// where it places stops relative to the entry price, the risk-reward target
// and how much of the account one trade risks. Backtest runs load them from
// a YAML file next to the execution export; the sync loop loads them per
// account.
type Params struct {
	Name          string          `yaml:"name"`
	Side          string          `yaml:"side"`
	StopLossRules []risk.StopRule `yaml:"stop_loss_rules"`

	// RiskReward is the take-profit target expressed as a multiple of the
	// stop distance. Zero means the strategy has no take-profit level.
	RiskReward float64 `yaml:"risk_reward"`

	// RiskPerTrade is the fraction of account capital one trade risks.
	// Zero means unknown; the aggregator then derives it per trade from
	// AccountCapital when it can.
	RiskPerTrade   float64 `yaml:"risk_per_trade"`
	AccountCapital float64 `yaml:"account_capital"`
}

func (p *Params) Validate() error {
	if p.Name == "" {
		return errors.New("name cannot be empty")
	}
	if p.Side != model.StrategySideBuy && p.Side != model.StrategySideSell {
		return fmt.Errorf("invalid side '%s': must be '%s' or '%s'", p.Side, model.StrategySideBuy, model.StrategySideSell)
	}
	if p.RiskReward < 0 {
		return fmt.Errorf("risk_reward cannot be negative, got %.2f", p.RiskReward)
	}
	if p.RiskPerTrade < 0 || p.RiskPerTrade > 1 {
		return fmt.Errorf("risk_per_trade must be a fraction between 0 and 1, got %.4f", p.RiskPerTrade)
	}
	if p.AccountCapital < 0 {
		return fmt.Errorf("account_capital cannot be negative, got %.2f", p.AccountCapital)
	}

	for i, rule := range p.StopLossRules {
		if rule.PriceBelow == nil && rule.PriceAbove == nil {
			return fmt.Errorf("stop_loss_rules[%d] needs price_below or price_above", i)
		}
		if rule.Amount <= 0 {
			return fmt.Errorf("stop_loss_rules[%d] amount must be greater than zero, got %.4f", i, rule.Amount)
		}
	}

	return nil
}

// Direction returns the trade direction this strategy opens in: sell
// strategies open bearish trades, everything else opens bullish ones.
func (p *Params) Direction() string {
	if p.Side == model.StrategySideSell {
		return model.DirectionBearish
	}
	return model.DirectionBullish
}

// StopDistance resolves the stop-loss distance for an entry price from the
// strategy's rules. False when no rule matches or no rules are configured.
func (p *Params) StopDistance(entryPrice float64) (float64, bool) {
	return risk.ResolveStopDistance(entryPrice, p.StopLossRules)
}

// LoadParams reads strategy parameters from a YAML file.
func LoadParams(path string) (*Params, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var p Params
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, err
	}

	if p.Side == "" {
		p.Side = model.StrategySideBuy
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("strategy params validation failed: %w", err)
	}

	return &p, nil
}
