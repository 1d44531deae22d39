// Package notify derives the time-sensitive alerts shown to a user: upcoming
// doses, medications running low, and calendar events that closely follow a
// dose.
package notify

import (
	"slices"
	"time"
)

// Category of a notification
type Category string

// Notification categories
const (
	CategoryReminder  Category = "reminder"
	CategoryLowStock  Category = "low_stock"
	CategoryEventSoon Category = "event_soon"
)

// UI color tokens
const (
	ColorBlue = "blue"
	ColorRed  = "red"
)

// Notification is derived on every engine run and never stored. ID is built
// from the category, the source and a timestamp so repeated runs over the same
// input produce the same ID.
type Notification struct {
	ID       string                 `json:"id"`
	Category Category               `json:"category"`
	Title    string                 `json:"title"`
	Message  string                 `json:"message"`
	DueAt    time.Time              `json:"due_at"`
	Color    string                 `json:"color"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	// Devices names the push devices of a medication-bound notification.
	// Empty means every device of the user.
	Devices []string `json:"-"`
}

// Payload is the response shape of a notification computation
type Payload struct {
	Notifications []Notification `json:"notifications"`
}

// Merge concatenates notification lists and orders them by due time. DueAt
// values are absolute instants, so mixed locations compare correctly.
func Merge(lists ...[]Notification) []Notification {
	merged := []Notification{}
	for _, l := range lists {
		merged = append(merged, l...)
	}

	slices.SortStableFunc(merged, func(a, b Notification) int {
		return a.DueAt.Compare(b.DueAt)
	})

	return merged
}
