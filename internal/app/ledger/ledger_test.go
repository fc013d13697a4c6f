package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-notes/inkwell/internal/app/notify"
	"github.com/inkwell-notes/inkwell/internal/domain"
	"github.com/inkwell-notes/inkwell/internal/infra/eventbus"
	kvmemory "github.com/inkwell-notes/inkwell/internal/infra/kv/memory"
)

type fixedRewards struct {
	points int64
	err    error
	calls  int
}

func (f *fixedRewards) BaselinePoints() (int64, error) {
	f.calls++
	return f.points, f.err
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type harness struct {
	ledger *Ledger
	center *notify.Center
	kv     *kvmemory.Store
	bus    *eventbus.Bus
	clock  *clock
}

func newHarness(t *testing.T, baseline int64) *harness {
	t.Helper()
	kv := kvmemory.New()
	return newHarnessKV(t, kv, &fixedRewards{points: baseline})
}

func newHarnessKV(t *testing.T, kv *kvmemory.Store, rewards domain.RewardsSource) *harness {
	t.Helper()
	bus := eventbus.New()
	center := notify.New(notify.DefaultConfig(), kv, bus, nil)
	t.Cleanup(center.Close)

	cfg := DefaultConfig()
	cfg.Location = time.UTC
	l := New(cfg, kv, rewards, center, bus, nil)
	c := &clock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	l.now = c.now
	return &harness{ledger: l, center: center, kv: kv, bus: bus, clock: c}
}

func countAction(records []domain.NotificationRecord, action domain.Action) int {
	n := 0
	for _, r := range records {
		if r.Action == action {
			n++
		}
	}
	return n
}

// ─── Initialization ─────────────────────────────────────────────────────────

func TestNew_SeedsFromRewardsOnFirstRun(t *testing.T) {
	kv := kvmemory.New()
	rewards := &fixedRewards{points: 120}
	h := newHarnessKV(t, kv, rewards)

	assert.Equal(t, int64(120), h.ledger.Balance())
	raw, ok, _ := kv.Get(KeyBalance)
	require.True(t, ok, "seed must be persisted immediately")
	assert.Equal(t, "120", raw)

	// Second start reads the persisted value, not the rewards source.
	rewards2 := &fixedRewards{points: 999}
	h2 := newHarnessKV(t, kv, rewards2)
	assert.Equal(t, int64(120), h2.ledger.Balance())
	assert.Equal(t, 0, rewards2.calls)
}

func TestNew_RewardsErrorLeavesSeedUnpersisted(t *testing.T) {
	kv := kvmemory.New()
	h := newHarnessKV(t, kv, &fixedRewards{err: errors.New("db locked")})

	assert.Equal(t, int64(0), h.ledger.Balance())
	_, ok, _ := kv.Get(KeyBalance)
	assert.False(t, ok)

	h2 := newHarnessKV(t, kv, &fixedRewards{points: 40})
	assert.Equal(t, int64(40), h2.ledger.Balance())
}

func TestNew_NilRewards(t *testing.T) {
	h := newHarnessKV(t, kvmemory.New(), nil)
	assert.Equal(t, int64(0), h.ledger.Balance())
}

func TestNew_RestoresState(t *testing.T) {
	h := newHarness(t, 0)
	h.ledger.Earn(30, "Edited a page", domain.CategoryEdit)
	h.ledger.CheckDailyReward()

	h2 := newHarnessKV(t, h.kv, nil)
	assert.Equal(t, h.ledger.Balance(), h2.ledger.Balance())
	assert.Len(t, h2.ledger.History(), 2)
	streak, _ := h2.ledger.Streak()
	assert.Equal(t, 1, streak)
	_, granted := h2.ledger.LastDailyReward()
	assert.True(t, granted)
}

// ─── Earn ───────────────────────────────────────────────────────────────────

func TestEarn(t *testing.T) {
	h := newHarness(t, 0)

	tx, err := h.ledger.Earn(25, "Wrote 500 words", domain.CategoryEdit)
	require.NoError(t, err)
	assert.Equal(t, int64(25), tx.Amount)
	assert.Equal(t, domain.KindEarned, tx.Kind)
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, int64(25), h.ledger.Balance())

	assert.Equal(t, 1, countAction(h.center.List(), domain.ActionPointsEarned))
}

func TestEarn_RejectsNonPositive(t *testing.T) {
	h := newHarness(t, 10)
	for _, amt := range []int64{0, -5} {
		_, err := h.ledger.Earn(amt, "x", domain.CategoryEdit)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	}
	assert.Equal(t, int64(10), h.ledger.Balance())
	assert.Empty(t, h.ledger.History())
}

func TestEarn_RejectsUnknownCategory(t *testing.T) {
	h := newHarness(t, 0)
	_, err := h.ledger.Earn(5, "x", "lottery")
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)
	assert.Equal(t, int64(0), h.ledger.Balance())
}

func TestEarn_DailyCategoryIsSilent(t *testing.T) {
	h := newHarness(t, 0)
	h.ledger.Earn(50, "daily", domain.CategoryDaily)
	assert.Equal(t, 0, countAction(h.center.List(), domain.ActionPointsEarned))
}

func TestAward_CreditsWithoutNotification(t *testing.T) {
	h := newHarness(t, 0)

	tx, err := h.ledger.Award(30, "Milestone: First sync", domain.CategoryAchievement)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryAchievement, tx.Category)
	assert.Equal(t, int64(30), h.ledger.Balance())
	assert.Len(t, h.ledger.History(), 1)
	assert.Empty(t, h.center.List())

	_, err = h.ledger.Award(0, "x", domain.CategoryAchievement)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestEarn_PublishesBalanceChanged(t *testing.T) {
	h := newHarness(t, 0)
	var balances []int64
	h.bus.Subscribe(eventbus.TopicBalanceChanged, func(e eventbus.Event) {
		balances = append(balances, e.Payload.(eventbus.BalanceChanged).Balance)
	})

	h.ledger.Earn(10, "a", domain.CategoryEdit)
	h.ledger.Spend(4, "b", domain.CategoryTheme)

	assert.Equal(t, []int64{10, 6}, balances)
}

// ─── Spend ──────────────────────────────────────────────────────────────────

func TestSpend_InsufficientFromZero(t *testing.T) {
	h := newHarness(t, 0)

	ok := h.ledger.Spend(10, "x", domain.CategoryEdit)

	assert.False(t, ok)
	assert.Equal(t, int64(0), h.ledger.Balance())
	assert.Empty(t, h.ledger.History())
	assert.Equal(t, 1, countAction(h.center.List(), domain.ActionPointsInsufficient))
}

func TestSpend_Success(t *testing.T) {
	h := newHarness(t, 100)

	ok := h.ledger.Spend(30, "Unlocked Sepia theme", domain.CategoryTheme)

	require.True(t, ok)
	assert.Equal(t, int64(70), h.ledger.Balance())
	hist := h.ledger.History()
	require.Len(t, hist, 1)
	assert.Equal(t, domain.KindSpent, hist[0].Kind)
	assert.Equal(t, int64(30), hist[0].Amount)
	assert.Equal(t, 1, countAction(h.center.List(), domain.ActionPointsSpent))
}

func TestSpend_ExactBalance(t *testing.T) {
	h := newHarness(t, 15)
	assert.True(t, h.ledger.Spend(15, "x", domain.CategoryAI))
	assert.Equal(t, int64(0), h.ledger.Balance())
}

func TestSpend_NonPositive(t *testing.T) {
	h := newHarness(t, 15)
	assert.False(t, h.ledger.Spend(0, "x", domain.CategoryAI))
	assert.False(t, h.ledger.Spend(-3, "x", domain.CategoryAI))
	assert.Equal(t, int64(15), h.ledger.Balance())
}

func TestCanAfford(t *testing.T) {
	h := newHarness(t, 20)
	assert.True(t, h.ledger.CanAfford(20))
	assert.True(t, h.ledger.CanAfford(0))
	assert.False(t, h.ledger.CanAfford(21))
	assert.Empty(t, h.center.List(), "CanAfford has no side effects")
}

// ─── Invariants ─────────────────────────────────────────────────────────────

func TestBalance_EqualsEarnedMinusSpent(t *testing.T) {
	h := newHarness(t, 0)
	rng := rand.New(rand.NewSource(7))

	var earned, spent int64
	for i := 0; i < 300; i++ {
		amt := rng.Int63n(40) + 1
		if rng.Intn(2) == 0 {
			_, err := h.ledger.Earn(amt, "e", domain.CategoryEdit)
			require.NoError(t, err)
			earned += amt
		} else {
			before := h.ledger.Balance()
			histBefore := h.ledger.History()
			if h.ledger.Spend(amt, "s", domain.CategoryPage) {
				spent += amt
			} else {
				assert.Equal(t, before, h.ledger.Balance())
				assert.Equal(t, histBefore, h.ledger.History())
			}
		}
		require.GreaterOrEqual(t, h.ledger.Balance(), int64(0))
		require.LessOrEqual(t, len(h.ledger.History()), domain.HistoryLimit)
	}
	assert.Equal(t, earned-spent, h.ledger.Balance())
}

func TestHistory_CappedOldestEvicted(t *testing.T) {
	h := newHarness(t, 0)
	for i := int64(1); i <= 12; i++ {
		h.ledger.Earn(i, "e", domain.CategoryEdit)
	}

	hist := h.ledger.History()
	require.Len(t, hist, domain.HistoryLimit)
	assert.Equal(t, int64(12), hist[0].Amount)
	assert.Equal(t, int64(3), hist[len(hist)-1].Amount)

	raw, _, _ := h.kv.Get(KeyHistory)
	var stored []domain.Transaction
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Len(t, stored, domain.HistoryLimit)
}

// ─── Daily Reward ───────────────────────────────────────────────────────────

func TestCheckDailyReward_OncePerDay(t *testing.T) {
	h := newHarness(t, 0)

	first := h.ledger.CheckDailyReward()
	assert.True(t, first.Granted)
	assert.Equal(t, int64(50), first.Base)
	assert.Equal(t, int64(0), first.Bonus)
	assert.Equal(t, int64(50), h.ledger.Balance())

	h.clock.t = h.clock.t.Add(10 * time.Hour)
	second := h.ledger.CheckDailyReward()
	assert.False(t, second.Granted)
	assert.Equal(t, int64(50), h.ledger.Balance())

	assert.Equal(t, 1, countAction(h.center.List(), domain.ActionDailyReward))
	assert.Equal(t, 0, countAction(h.center.List(), domain.ActionPointsEarned))
}

func TestCheckDailyReward_StreakBonus(t *testing.T) {
	h := newHarness(t, 0)

	h.ledger.CheckDailyReward() // day 1
	h.clock.t = h.clock.t.Add(24 * time.Hour)
	res := h.ledger.CheckDailyReward() // day 2

	assert.True(t, res.Granted)
	assert.Equal(t, 2, res.Streak)
	assert.Equal(t, int64(10), res.Bonus)
	assert.Equal(t, int64(50+50+10), h.ledger.Balance())
	assert.Equal(t, 2, countAction(h.center.List(), domain.ActionDailyReward))
}

func TestCheckDailyReward_GapResetsStreak(t *testing.T) {
	h := newHarness(t, 0)

	h.ledger.CheckDailyReward()
	h.clock.t = h.clock.t.Add(24 * time.Hour)
	h.ledger.CheckDailyReward()
	h.clock.t = h.clock.t.Add(72 * time.Hour)
	res := h.ledger.CheckDailyReward()

	assert.Equal(t, 1, res.Streak)
	assert.Equal(t, int64(0), res.Bonus)
}

func TestCheckDailyReward_StreakBonusCapped(t *testing.T) {
	h := newHarness(t, 0)
	var res DailyResult
	for day := 0; day < 15; day++ {
		res = h.ledger.CheckDailyReward()
		h.clock.t = h.clock.t.Add(24 * time.Hour)
	}
	assert.Equal(t, 15, res.Streak)
	assert.Equal(t, int64(100), res.Bonus)
}

func TestCheckDailyReward_JustAfterMidnight(t *testing.T) {
	h := newHarness(t, 0)
	h.clock.t = time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	h.ledger.CheckDailyReward()

	h.clock.t = time.Date(2026, 3, 15, 0, 1, 0, 0, time.UTC)
	res := h.ledger.CheckDailyReward()
	assert.True(t, res.Granted)
	assert.Equal(t, 2, res.Streak)
}

func TestUntilNextCheck(t *testing.T) {
	h := newHarness(t, 0)
	h.clock.t = time.Date(2026, 3, 14, 22, 30, 0, 0, time.UTC)
	assert.Equal(t, 90*time.Minute, h.ledger.untilNextCheck())
}

func TestRun_ChecksAtStartupAndStops(t *testing.T) {
	h := newHarness(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.ledger.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		_, ok := h.ledger.LastDailyReward()
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Equal(t, int64(50), h.ledger.Balance())
}
