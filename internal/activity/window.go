package activity

import (
	"time"

	"qrattend/internal/model"
)

// Ongoing reports whether now falls inside the activity's scan window. The
// window is inclusive on both ends and requires the active flag. Pure
// function; "ongoing" is derived, never stored.
func Ongoing(a model.Activity, now time.Time) bool {
	if !a.IsActive {
		return false
	}
	return !now.Before(a.StartTime) && !now.After(a.EndTime)
}
