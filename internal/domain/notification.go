package domain

import "time"

// ─── Notification Types ─────────────────────────────────────────────────────

// NotificationType is the severity shown to the user.
type NotificationType string

const (
	NotifySuccess NotificationType = "success"
	NotifyInfo    NotificationType = "info"
	NotifyWarning NotificationType = "warning"
	NotifyError   NotificationType = "error"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotifySuccess, NotifyInfo, NotifyWarning, NotifyError:
		return true
	}
	return false
}

// Action tags the domain event a notification describes.
type Action string

const (
	ActionPointsEarned       Action = "points_earned"
	ActionPointsSpent        Action = "points_spent"
	ActionPointsInsufficient Action = "points_insufficient"
	ActionDailyReward        Action = "daily_reward"
	ActionSyncSuccess        Action = "sync_success"
	ActionSyncError          Action = "sync_error"
	ActionSyncOffline        Action = "sync_offline"
	ActionSyncBusy           Action = "sync_busy"
	ActionConnectionOnline   Action = "connection_online"
	ActionConnectionOffline  Action = "connection_offline"
	ActionMilestoneUnlocked  Action = "milestone_unlocked"
	ActionSystem             Action = "system"
)

// NotificationRecord is a persisted notification. Only Read is mutable.
type NotificationRecord struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Action    Action           `json:"action"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
}

// SameContent reports whether two records carry identical type, action, title and message.
func (n NotificationRecord) SameContent(o NotificationRecord) bool {
	return n.Type == o.Type && n.Action == o.Action && n.Title == o.Title && n.Message == o.Message
}

// Toast is a transient, auto-expiring projection of a notification.
type Toast struct {
	Notification NotificationRecord `json:"notification"`
	ShownAt      time.Time          `json:"shown_at"`
}

// ExpiredAt reports whether the toast has outlived ttl at now.
func (t Toast) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(t.ShownAt) > ttl
}
