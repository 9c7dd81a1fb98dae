package timeline

import "time"

// InitialLoadQuery positions a freshly cleared timeline at a point in the
// past. While it is pending the timeline assumes newer data exists and
// ignores streamed notes.
type InitialLoadQuery struct {
	UntilDate time.Time
	UntilID   string
}

func (q *InitialLoadQuery) empty() bool {
	return q == nil || (q.UntilDate.IsZero() && q.UntilID == "")
}
