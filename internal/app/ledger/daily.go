package ledger

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-notes/inkwell/internal/domain"
	"github.com/inkwell-notes/inkwell/internal/infra/observability"
)

// ─── Daily Reward ───────────────────────────────────────────────────────────

// DailyResult describes one daily-reward check.
type DailyResult struct {
	Granted bool  `json:"granted"`
	Base    int64 `json:"base"`
	Bonus   int64 `json:"bonus"`
	Streak  int   `json:"streak"`
}

// Total is the points granted by the check.
func (r DailyResult) Total() int64 { return r.Base + r.Bonus }

// CheckDailyReward grants the daily base reward and any streak bonus at most
// once per calendar day, then emits a single summary notification.
func (l *Ledger) CheckDailyReward() DailyResult {
	now := l.now()

	l.mu.Lock()
	if !l.lastDaily.IsZero() && domain.SameDay(l.lastDaily, now, l.loc) {
		streak := l.streak
		l.mu.Unlock()
		return DailyResult{Streak: streak}
	}
	// Claim the day before crediting so concurrent checks cannot double-grant.
	streak := domain.NextStreak(l.lastLogin, now, l.loc, l.streak)
	l.lastDaily = now
	l.lastLogin = now
	l.streak = streak
	l.setJSON(KeyLastDailyReward, l.lastDaily)
	l.setJSON(KeyLastLogin, l.lastLogin)
	l.setJSON(KeyLoginStreak, l.streak)
	l.mu.Unlock()

	res := DailyResult{Granted: true, Base: l.policy.DailyBase, Streak: streak}
	if res.Base > 0 {
		if _, err := l.Earn(res.Base, "Daily login reward", domain.CategoryDaily); err != nil {
			l.log.Error("daily base grant", zap.Error(err))
		}
	}
	if bonus := l.policy.StreakBonus(streak); bonus > 0 {
		res.Bonus = bonus
		if _, err := l.Earn(bonus, fmt.Sprintf("%d-day streak bonus", streak), domain.CategoryDaily); err != nil {
			l.log.Error("streak bonus grant", zap.Error(err))
		}
	}

	observability.DailyRewards.Inc()
	l.log.Info("daily reward granted",
		zap.Int64("base", res.Base),
		zap.Int64("bonus", res.Bonus),
		zap.Int("streak", streak))

	msg := fmt.Sprintf("+%d points for logging in today", res.Base)
	if res.Bonus > 0 {
		msg = fmt.Sprintf("+%d points (%d base + %d for a %d-day streak)", res.Total(), res.Base, res.Bonus, streak)
	}
	l.notify(domain.NotifySuccess, domain.ActionDailyReward, "Daily reward", msg)
	return res
}

// untilNextCheck returns the delay until the next local midnight.
func (l *Ledger) untilNextCheck() time.Duration {
	now := l.now()
	d := domain.NextMidnight(now, l.loc).Sub(now)
	if d <= 0 {
		d = time.Second
	}
	return d
}

// Run checks the daily reward now and again at every local midnight until
// ctx is cancelled.
func (l *Ledger) Run(ctx context.Context) {
	l.CheckDailyReward()

	timer := time.NewTimer(l.untilNextCheck())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			l.CheckDailyReward()
			timer.Reset(l.untilNextCheck())
		}
	}
}
