// Package milestones tracks achievement unlocks. The sum of unlocked
// milestone points is the baseline that seeds a fresh ledger.
package milestones

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-notes/inkwell/internal/domain"
	"github.com/inkwell-notes/inkwell/internal/infra/eventbus"
	"github.com/inkwell-notes/inkwell/internal/infra/logging"
	"github.com/inkwell-notes/inkwell/internal/infra/sqlite"
)

// Rule pairs a milestone with the condition that unlocks it.
type Rule struct {
	domain.Milestone
	MinNotes  int  // live notes required, 0 to ignore
	NeedsSync bool // requires at least one successful sync
}

// Met reports whether p satisfies the rule.
func (r Rule) Met(p Progress) bool {
	if r.MinNotes > 0 && p.Notes < r.MinNotes {
		return false
	}
	if r.NeedsSync && !p.Synced {
		return false
	}
	return r.MinNotes > 0 || r.NeedsSync
}

// Progress is the user activity milestones are judged on.
type Progress struct {
	Notes  int
	Synced bool
}

// DefaultRules is the stock achievement set.
func DefaultRules() []Rule {
	return []Rule{
		{Milestone: domain.Milestone{ID: "first-note", Title: "First note", Points: 20}, MinNotes: 1},
		{Milestone: domain.Milestone{ID: "first-sync", Title: "Saved to the cloud", Points: 30}, NeedsSync: true},
		{Milestone: domain.Milestone{ID: "ten-notes", Title: "Ten notes", Points: 80}, MinNotes: 10},
		{Milestone: domain.Milestone{ID: "fifty-notes", Title: "Fifty notes", Points: 250}, MinNotes: 50},
	}
}

// Awarder credits unlock rewards without announcing them; the unlock
// notification already carries the points. *ledger.Ledger satisfies it.
type Awarder interface {
	Award(amount int64, description string, category domain.Category) (domain.Transaction, error)
}

// NoteLister counts live notes. *notes.Store satisfies it.
type NoteLister interface {
	List() ([]domain.Note, error)
}

// Service owns the milestone table.
type Service struct {
	db    *sqlite.DB
	bus   *eventbus.Bus
	log   *zap.Logger
	now   func() time.Time
	rules []Rule

	evalMu sync.Mutex

	mu      sync.Mutex
	awarder Awarder
	synced  bool
}

// New defines rules in the database. Existing unlocks are kept.
func New(db *sqlite.DB, rules []Rule, bus *eventbus.Bus, log *zap.Logger) (*Service, error) {
	s := &Service{
		db:    db,
		bus:   bus,
		log:   logging.OrNop(log).Named("milestones"),
		now:   time.Now,
		rules: rules,
	}
	for _, r := range rules {
		if err := s.Define(r.Milestone); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Define inserts or updates a milestone definition.
func (s *Service) Define(m domain.Milestone) error {
	if m.ID == "" {
		return fmt.Errorf("define milestone: empty id")
	}
	if m.Points < 0 {
		return fmt.Errorf("define milestone %s: %w", m.ID, domain.ErrInvalidAmount)
	}
	if err := s.db.DefineMilestone(m); err != nil {
		return fmt.Errorf("define milestone %s: %w", m.ID, err)
	}
	return nil
}

// Unlock marks id reached. It reports false when it was already unlocked.
// A fresh unlock raises a notification and credits the points.
func (s *Service) Unlock(id string) (bool, error) {
	changed, err := s.db.UnlockMilestone(id, s.now())
	if err != nil {
		return false, fmt.Errorf("unlock milestone: %w", err)
	}
	if !changed {
		return false, nil
	}

	m, err := s.db.GetMilestone(id)
	if err != nil {
		return true, fmt.Errorf("unlock milestone: %w", err)
	}
	s.log.Info("milestone unlocked", zap.String("id", m.ID), zap.Int64("points", m.Points))

	if s.bus != nil {
		s.bus.Publish(eventbus.TopicNotifyIntent, eventbus.Intent{
			Type:    string(domain.NotifySuccess),
			Action:  string(domain.ActionMilestoneUnlocked),
			Title:   "Milestone unlocked",
			Message: fmt.Sprintf("%s (+%d points)", m.Title, m.Points),
		})
	}

	s.mu.Lock()
	awarder := s.awarder
	s.mu.Unlock()
	if awarder != nil && m.Points > 0 {
		if _, err := awarder.Award(m.Points, "Milestone: "+m.Title, domain.CategoryAchievement); err != nil {
			s.log.Warn("milestone reward", zap.String("id", m.ID), zap.Error(err))
		}
	}
	return true, nil
}

// List returns every milestone ordered by points.
func (s *Service) List() ([]domain.Milestone, error) {
	return s.db.ListMilestones()
}

// BaselinePoints is the sum of unlocked milestone points.
func (s *Service) BaselinePoints() (int64, error) {
	return s.db.SumUnlockedMilestonePoints()
}

// ─── Evaluation ─────────────────────────────────────────────────────────────

// Evaluate unlocks every rule p satisfies and returns the newly unlocked ids.
func (s *Service) Evaluate(p Progress) ([]string, error) {
	s.evalMu.Lock()
	defer s.evalMu.Unlock()
	s.mu.Lock()
	if s.synced {
		p.Synced = true
	}
	s.mu.Unlock()

	var unlocked []string
	for _, r := range s.rules {
		if !r.Met(p) {
			continue
		}
		m, err := s.db.GetMilestone(r.ID)
		if err != nil {
			return unlocked, err
		}
		if m.Unlocked() {
			continue
		}
		changed, err := s.Unlock(r.ID)
		if err != nil {
			return unlocked, err
		}
		if changed {
			unlocked = append(unlocked, r.ID)
		}
	}
	return unlocked, nil
}

// Attach evaluates milestones whenever notes change or a sync succeeds.
// The returned function detaches.
func (s *Service) Attach(bus *eventbus.Bus, notes NoteLister, awarder Awarder) func() {
	s.mu.Lock()
	s.awarder = awarder
	s.mu.Unlock()

	evaluate := func(synced bool) {
		list, err := notes.List()
		if err != nil {
			s.log.Warn("count notes", zap.Error(err))
			return
		}
		if synced {
			s.mu.Lock()
			s.synced = true
			s.mu.Unlock()
		}
		if _, err := s.Evaluate(Progress{Notes: len(list), Synced: synced}); err != nil {
			s.log.Warn("evaluate milestones", zap.Error(err))
		}
	}

	unNotes := bus.Subscribe(eventbus.TopicNotesChanged, func(eventbus.Event) { evaluate(false) })
	unSync := bus.Subscribe(eventbus.TopicSyncState, func(e eventbus.Event) {
		st, ok := e.Payload.(domain.ConnectionState)
		if ok && st.LastSyncedAt != nil && !st.IsSyncing {
			evaluate(true)
		}
	})
	return func() {
		unNotes()
		unSync()
	}
}
