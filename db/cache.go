package db

import (
	"time"

	"github.com/dgraph-io/badger"

	"github.com/AlisiaBaielli/TirAImisu/calendar"
)

const sentTTL = 72 * time.Hour

func badgerKeyForAdvice(key string) []byte {
	return append([]byte("advice:"), []byte(key)...)
}

func badgerKeyForCalendar(calendarID string) []byte {
	return append([]byte("calendar:"), []byte(calendarID)...)
}

func badgerKeyForSent(userID, notificationID string) []byte {
	return []byte("sent:" + userID + ":" + notificationID)
}

// Advice cached under key. A missing or unreadable entry is reported as absent.
func (b *Badger) Advice(key string) (string, bool, error) {
	var text string
	err := b.getJSON(badgerKeyForAdvice(key), &text)
	if IsNotFound(err) {
		return "", false, nil
	}

	if err != nil {
		b.log.Warnw("unreadable advice cache entry", "advice_key", key, "error", err)
		return "", false, nil
	}

	return text, true, nil
}

// SetAdvice under key. The write replaces the previous value atomically.
func (b *Badger) SetAdvice(key, text string) error {
	return b.setJSON(badgerKeyForAdvice(key), text)
}

// CalendarEvents cached for a calendar
func (b *Badger) CalendarEvents(calendarID string) ([]calendar.Event, bool, error) {
	var events []calendar.Event
	err := b.getJSON(badgerKeyForCalendar(calendarID), &events)
	if IsNotFound(err) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	return events, true, nil
}

// SetCalendarEvents replaces the cached events for a calendar
func (b *Badger) SetCalendarEvents(calendarID string, events []calendar.Event) error {
	if events == nil {
		events = []calendar.Event{}
	}

	return b.setJSON(badgerKeyForCalendar(calendarID), events)
}

// WasSent reports whether a notification was already delivered to a user
func (b *Badger) WasSent(userID, notificationID string) (bool, error) {
	err := b.db.View(func(tx *badger.Txn) error {
		_, err := tx.Get(badgerKeyForSent(userID, notificationID))
		return err
	})

	if err == badger.ErrKeyNotFound {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}

// MarkSent records a delivered notification. Records expire on their own.
func (b *Badger) MarkSent(userID, notificationID string, at time.Time) error {
	return b.db.Update(func(tx *badger.Txn) error {
		entry := badger.NewEntry(badgerKeyForSent(userID, notificationID), []byte(at.Format(time.RFC3339))).WithTTL(sentTTL)
		return tx.SetEntry(entry)
	})
}
