package inquiry

import (
	"sort"
	"strings"
	"time"
)

// Filter narrows a synchronized thread list. Zero values disable a criterion.
type Filter struct {
	Query  string
	Status Status
	From   time.Time
	To     time.Time
}

func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Query) == "" && f.Status == "" && f.From.IsZero() && f.To.IsZero()
}

func (f Filter) Matches(t Thread) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && t.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.CreatedAt.After(f.To) {
		return false
	}
	query := strings.ToLower(strings.TrimSpace(f.Query))
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.OwnerName), query) ||
		strings.Contains(strings.ToLower(t.OwnerEmail), query)
}

// Project returns the threads matching f, newest first. The input is not
// modified.
func Project(threads []Thread, f Filter) []Thread {
	out := make([]Thread, 0, len(threads))
	for _, t := range threads {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	SortThreads(out)
	return out
}

// SortThreads orders threads by creation time descending, then by ID.
func SortThreads(threads []Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		if !threads[i].CreatedAt.Equal(threads[j].CreatedAt) {
			return threads[i].CreatedAt.After(threads[j].CreatedAt)
		}
		return threads[i].ID < threads[j].ID
	})
}

// SortMessages orders messages by createdAt ascending with seq as tiebreaker.
func SortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		if !messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].CreatedAt.Before(messages[j].CreatedAt)
		}
		return messages[i].Seq < messages[j].Seq
	})
}

// ParseDateBound accepts RFC3339 or YYYY-MM-DD. A date-only upper bound covers
// the whole day.
func ParseDateBound(field, value string, upper bool) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, Invalid(field, "expected RFC3339 timestamp or YYYY-MM-DD date")
	}
	if upper {
		return parsed.Add(24*time.Hour - time.Nanosecond), nil
	}
	return parsed, nil
}
