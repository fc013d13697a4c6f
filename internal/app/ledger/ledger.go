// Package ledger is the points economy: balance, bounded transaction
// history, the once-per-day login reward and the login streak.
package ledger

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inkwell-notes/inkwell/internal/domain"
	"github.com/inkwell-notes/inkwell/internal/infra/eventbus"
	"github.com/inkwell-notes/inkwell/internal/infra/logging"
	"github.com/inkwell-notes/inkwell/internal/infra/observability"
)

// KV keys owned by the ledger.
const (
	KeyBalance         = "points.balance"
	KeyHistory         = "points.history"
	KeyLastDailyReward = "points.last_daily_reward"
	KeyLoginStreak     = "points.login_streak"
	KeyLastLogin       = "points.last_login"
)

// Config holds reward amounts and the calendar used for day boundaries.
type Config struct {
	Policy   domain.RewardPolicy
	Location *time.Location // default: time.Local
}

// DefaultConfig returns the stock policy on the local calendar.
func DefaultConfig() Config {
	return Config{Policy: domain.DefaultRewardPolicy(), Location: time.Local}
}

// Ledger owns the points state. Notifications are emitted after the lock is released.
type Ledger struct {
	mu       sync.Mutex
	policy   domain.RewardPolicy
	loc      *time.Location
	kv       domain.KVStore
	notifier domain.Notifier
	bus      *eventbus.Bus
	log      *zap.Logger
	now      func() time.Time

	balance   int64
	history   []domain.Transaction // newest first
	lastDaily time.Time
	streak    int
	lastLogin time.Time
}

// New loads persisted state. On first run the balance is seeded from
// rewards and persisted immediately.
func New(cfg Config, kv domain.KVStore, rewards domain.RewardsSource, notifier domain.Notifier, bus *eventbus.Bus, log *zap.Logger) *Ledger {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	l := &Ledger{
		policy:   cfg.Policy,
		loc:      cfg.Location,
		kv:       kv,
		notifier: notifier,
		bus:      bus,
		log:      logging.OrNop(log).Named("ledger"),
		now:      time.Now,
	}
	l.load(rewards)
	observability.PointsBalance.Set(float64(l.balance))
	return l
}

func (l *Ledger) load(rewards domain.RewardsSource) {
	if ok := l.getJSON(KeyBalance, &l.balance); !ok {
		l.seed(rewards)
	}
	if l.balance < 0 {
		l.log.Warn("negative persisted balance reset to zero", zap.Int64("balance", l.balance))
		l.balance = 0
	}
	l.getJSON(KeyHistory, &l.history)
	if len(l.history) > domain.HistoryLimit {
		l.history = l.history[:domain.HistoryLimit]
	}
	l.getJSON(KeyLastDailyReward, &l.lastDaily)
	l.getJSON(KeyLoginStreak, &l.streak)
	l.getJSON(KeyLastLogin, &l.lastLogin)
}

func (l *Ledger) seed(rewards domain.RewardsSource) {
	if rewards == nil {
		l.setJSON(KeyBalance, l.balance)
		return
	}
	baseline, err := rewards.BaselinePoints()
	if err != nil {
		// Left unpersisted so the next start retries the seed.
		l.log.Warn("baseline points unavailable", zap.Error(err))
		return
	}
	if baseline < 0 {
		baseline = 0
	}
	l.balance = baseline
	l.setJSON(KeyBalance, l.balance)
	l.log.Info("ledger seeded", zap.Int64("balance", baseline))
}

// getJSON decodes key into v. It reports whether a value was present and readable.
func (l *Ledger) getJSON(key string, v any) bool {
	raw, ok, err := l.kv.Get(key)
	if err != nil {
		l.log.Warn("kv read", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		l.log.Warn("kv decode", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (l *Ledger) setJSON(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		l.log.Error("kv encode", zap.String("key", key), zap.Error(err))
		return
	}
	if err := l.kv.Set(key, string(data)); err != nil {
		l.log.Warn("kv write", zap.String("key", key), zap.Error(err))
	}
}

func (l *Ledger) notify(typ domain.NotificationType, action domain.Action, title, msg string) {
	if l.notifier != nil {
		l.notifier.Add(typ, action, title, msg)
	}
}

// ─── Earn / Spend ───────────────────────────────────────────────────────────

// Earn credits amount. Non-positive amounts and unknown categories are rejected.
// Daily grants are announced by CheckDailyReward instead of here.
func (l *Ledger) Earn(amount int64, description string, category domain.Category) (domain.Transaction, error) {
	tx, err := l.Award(amount, description, category)
	if err != nil {
		return tx, err
	}
	if category != domain.CategoryDaily {
		l.notify(domain.NotifySuccess, domain.ActionPointsEarned, "Points earned",
			fmt.Sprintf("+%d points: %s", amount, description))
	}
	return tx, nil
}

// Award credits amount like Earn but raises no notification. Callers that
// announce the grant themselves use it.
func (l *Ledger) Award(amount int64, description string, category domain.Category) (domain.Transaction, error) {
	if amount <= 0 {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}
	if _, err := domain.ParseCategory(string(category)); err != nil {
		return domain.Transaction{}, err
	}

	tx, balance, _ := l.apply(amount, domain.KindEarned, description, category)
	l.log.Info("points earned",
		zap.Int64("amount", amount),
		zap.String("category", string(category)),
		zap.Int64("balance", balance))
	return tx, nil
}

// Spend debits amount if the balance covers it. An insufficient balance
// changes nothing and raises a warning notification.
func (l *Ledger) Spend(amount int64, description string, category domain.Category) bool {
	if amount <= 0 {
		return false
	}
	if _, err := domain.ParseCategory(string(category)); err != nil {
		return false
	}

	_, balance, ok := l.apply(-amount, domain.KindSpent, description, category)
	if !ok {
		observability.PointsRejected.Inc()
		l.log.Info("spend rejected", zap.Int64("amount", amount), zap.Int64("balance", balance))
		l.notify(domain.NotifyWarning, domain.ActionPointsInsufficient, "Not enough points",
			fmt.Sprintf("%s needs %d points, you have %d", description, amount, balance))
		return false
	}

	l.log.Info("points spent",
		zap.Int64("amount", amount),
		zap.String("category", string(category)),
		zap.Int64("balance", balance))
	l.notify(domain.NotifyInfo, domain.ActionPointsSpent, "Points spent",
		fmt.Sprintf("-%d points: %s", amount, description))
	return true
}

// apply records a movement; delta is negative for spends. A spend larger
// than the balance is refused with ok=false and the current balance.
func (l *Ledger) apply(delta int64, kind domain.TransactionKind, description string, category domain.Category) (domain.Transaction, int64, bool) {
	l.mu.Lock()
	if l.balance+delta < 0 {
		balance := l.balance
		l.mu.Unlock()
		return domain.Transaction{}, balance, false
	}

	amount := delta
	if amount < 0 {
		amount = -amount
	}
	tx := domain.Transaction{
		ID:          uuid.NewString(),
		Amount:      amount,
		Kind:        kind,
		Description: description,
		Timestamp:   l.now(),
		Category:    category,
	}
	l.balance += delta
	l.history = append([]domain.Transaction{tx}, l.history...)
	if len(l.history) > domain.HistoryLimit {
		l.history = l.history[:domain.HistoryLimit]
	}
	balance := l.balance
	l.setJSON(KeyBalance, l.balance)
	l.setJSON(KeyHistory, l.history)
	l.mu.Unlock()

	observability.PointsBalance.Set(float64(balance))
	observability.PointsTransactions.WithLabelValues(string(kind), string(category)).Inc()
	if l.bus != nil {
		l.bus.Publish(eventbus.TopicBalanceChanged, eventbus.BalanceChanged{Balance: balance})
	}
	return tx, balance, true
}

// CanAfford reports whether the balance covers amount.
func (l *Ledger) CanAfford(amount int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance >= amount
}

// ─── Accessors ──────────────────────────────────────────────────────────────

// Balance returns the current balance.
func (l *Ledger) Balance() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// History returns a copy of the recent transactions, newest first.
func (l *Ledger) History() []domain.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Transaction, len(l.history))
	copy(out, l.history)
	return out
}

// Streak returns the login streak and the last login time.
func (l *Ledger) Streak() (int, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.streak, l.lastLogin
}

// LastDailyReward returns when the daily reward was last granted.
func (l *Ledger) LastDailyReward() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastDaily, !l.lastDaily.IsZero()
}
