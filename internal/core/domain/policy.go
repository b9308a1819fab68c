package domain

import "time"

// ConversionRate expresses the coin-to-currency exchange: Coins coins
// convert to Amount smallest currency units. The observed production
// rate is 100 coins to one currency unit.
type ConversionRate struct {
	Coins  int64 `json:"coins" mapstructure:"coins"`
	Amount int64 `json:"amount" mapstructure:"amount"`
}

// Currency returns the currency value of the given coins at this rate.
// Callers validate divisibility via the minimum batch floor.
func (r ConversionRate) Currency(coins int64) int64 {
	if r.Coins == 0 {
		return 0
	}
	return coins / r.Coins * r.Amount
}

// CommissionLevel configures the payout for one referral level. A
// non-zero Flat amount wins; otherwise Percent of the base amount.
type CommissionLevel struct {
	Level   int   `json:"level" mapstructure:"level"`
	Percent int64 `json:"percent" mapstructure:"percent"`
	Flat    int64 `json:"flat" mapstructure:"flat"`
}

// Amount computes this level's commission for the given base.
func (c CommissionLevel) Amount(base int64) int64 {
	if c.Flat > 0 {
		return c.Flat
	}
	return base * c.Percent / 100
}

// RewardsPolicy is an immutable snapshot of the money-movement knobs.
// A snapshot is loaded once at startup (or reload) and handed to each
// service, so a given operation's behavior is reproducible from its
// inputs rather than ambient mutable state.
type RewardsPolicy struct {
	Version              string            `mapstructure:"version"`
	Rate                 ConversionRate    `mapstructure:"rate"`
	MinConvertCoins      int64             `mapstructure:"min_convert_coins"`
	CoinLockDuration     time.Duration     `mapstructure:"coin_lock_duration"`
	CommissionBase       int64             `mapstructure:"commission_base"`
	CommissionLevels     []CommissionLevel `mapstructure:"commission_levels"`
	MinWithdrawal        int64             `mapstructure:"min_withdrawal"`
	AutoApproveThreshold int64             `mapstructure:"auto_approve_threshold"`
}

// LevelConfig returns the commission config for a level, if present.
func (p RewardsPolicy) LevelConfig(level int) (CommissionLevel, bool) {
	for _, l := range p.CommissionLevels {
		if l.Level == level {
			return l, true
		}
	}
	return CommissionLevel{}, false
}
