package models

const (
	StatusPending     = "pending"
	StatusConfirmed   = "confirmed"
	StatusRescheduled = "rescheduled"
	StatusCancelled   = "cancelled"
)

// Notification kinds, one per staff-driven transition.
const (
	KindConfirmed   = "confirmed"
	KindRescheduled = "rescheduled"
	KindCancelled   = "cancelled"
)

const (
	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"

	// TimeLayout is the wall-clock appointment time format.
	TimeLayout = "15:04"
)

const (
	// DefaultAttemptLogTTL bounds how long notification attempts stay queryable.
	DefaultAttemptLogTTL = 30 * 24 * 60 * 60 // 30 days in seconds

	// DefaultNotifyTimeout is the per-send deadline before a send counts as transient failure.
	DefaultNotifyTimeout = 15 // seconds

	// DefaultNotifyMaxRetries limits in-call retries for transient send failures.
	DefaultNotifyMaxRetries = 2
)

// ValidStatus reports whether s is a member of the status enum.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRescheduled, StatusCancelled:
		return true
	}
	return false
}

// ValidKind reports whether k is a known notification kind.
func ValidKind(k string) bool {
	switch k {
	case KindConfirmed, KindRescheduled, KindCancelled:
		return true
	}
	return false
}
