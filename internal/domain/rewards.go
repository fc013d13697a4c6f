package domain

import "time"

// ─── Reward Policy ──────────────────────────────────────────────────────────
// Daily login rewards: a fixed base grant plus a streak bonus that grows with
// each consecutive day and is capped.

// RewardPolicy defines the daily reward amounts.
type RewardPolicy struct {
	DailyBase         int64 `json:"daily_base" toml:"daily_base"`
	StreakBonusPerDay int64 `json:"streak_bonus_per_day" toml:"streak_bonus_per_day"`
	StreakBonusCap    int64 `json:"streak_bonus_cap" toml:"streak_bonus_cap"`
}

// DefaultRewardPolicy returns the stock reward amounts.
func DefaultRewardPolicy() RewardPolicy {
	return RewardPolicy{
		DailyBase:         50,
		StreakBonusPerDay: 10,
		StreakBonusCap:    100,
	}
}

// StreakBonus returns the bonus granted for a streak of the given length.
// A streak of 1 (or less) earns nothing.
func (p RewardPolicy) StreakBonus(streak int) int64 {
	if streak <= 1 {
		return 0
	}
	bonus := p.StreakBonusPerDay * int64(streak-1)
	if p.StreakBonusCap > 0 && bonus > p.StreakBonusCap {
		bonus = p.StreakBonusCap
	}
	return bonus
}

// NextStreak computes the streak after a login at now, given the previous
// login time (zero if none) and the previous streak count.
func NextStreak(prevLogin, now time.Time, loc *time.Location, prevStreak int) int {
	switch {
	case prevLogin.IsZero():
		return 1
	case SameDay(prevLogin, now, loc):
		if prevStreak < 1 {
			return 1
		}
		return prevStreak
	case IsYesterday(prevLogin, now, loc):
		return prevStreak + 1
	default:
		return 1
	}
}
