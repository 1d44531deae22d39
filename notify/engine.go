package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AlisiaBaielli/TirAImisu/advice"
	"github.com/AlisiaBaielli/TirAImisu/calendar"
	"github.com/AlisiaBaielli/TirAImisu/db"
	"github.com/AlisiaBaielli/TirAImisu/dose"
	"github.com/AlisiaBaielli/TirAImisu/localtime"
)

// Medications lists a user's stored medications
type Medications interface {
	ListMedicationsForUser(userID uuid.UUID) ([]*db.Medication, error)
}

// Calendar supplies a user's general calendar events
type Calendar interface {
	Events(ctx context.Context, calendarID string) ([]calendar.Event, error)
}

// Advisor produces precaution text for an event
type Advisor interface {
	Advise(ctx context.Context, req advice.Request) advice.Result
}

// Options tune the engine's windows
type Options struct {
	// ReminderWindow is how far ahead a dose triggers a reminder
	ReminderWindow time.Duration
	// LowStockDays is the largest days-left that still warns
	LowStockDays int
	// EventWindow is how far ahead a calendar event is checked against doses
	EventWindow time.Duration
	// RecentDoseWindow is how far before an event a dose counts as recent
	RecentDoseWindow time.Duration
	// DefaultCalendarID is used for users without their own calendar
	DefaultCalendarID string
	Location          *time.Location
}

// DefaultOptions used by the service
func DefaultOptions() Options {
	return Options{
		ReminderWindow:   30 * time.Minute,
		LowStockDays:     7,
		EventWindow:      8 * time.Hour,
		RecentDoseWindow: 12 * time.Hour,
		Location:         time.Local,
	}
}

// Engine computes a user's notifications
type Engine struct {
	meds    Medications
	cal     Calendar
	advisor Advisor
	opts    Options
	log     *zap.SugaredLogger
}

// NewEngine creates an engine. cal and advisor may be nil to disable the
// event-conflict pass or its advice suffix.
func NewEngine(meds Medications, cal Calendar, advisor Advisor, opts Options, log *zap.SugaredLogger) *Engine {
	if opts.Location == nil {
		opts.Location = time.Local
	}

	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Engine{
		meds:    meds,
		cal:     cal,
		advisor: advisor,
		opts:    opts,
		log:     log,
	}
}

// Compute the notifications for user at now, ordered by due time. Items that
// cannot be evaluated are skipped; an error is returned only when the user's
// medications cannot be read at all.
func (e *Engine) Compute(ctx context.Context, user *db.User, now time.Time) (*Payload, error) {
	now = now.In(e.opts.Location)
	log := e.log.With("user", user.ID)

	meds, err := e.meds.ListMedicationsForUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications for user %s: %w", user.ID, err)
	}

	doses := e.doseEvents(meds, now, log)

	reminders := e.reminders(doses, byID(meds), now)
	lowStock := e.lowStock(meds, now, log)
	events := e.eventConflicts(ctx, user, doses, now, log)

	log.Debugw("notifications computed",
		"reminders", len(reminders),
		"low_stock", len(lowStock),
		"event_soon", len(events),
	)

	return &Payload{Notifications: Merge(reminders, lowStock, events)}, nil
}

// doseEvents projects every medication over the span the passes look at: from
// the earlier of today's midnight and the recent-dose lookback, to the later of
// the end of today and the furthest forward window.
func (e *Engine) doseEvents(meds []*db.Medication, now time.Time, log *zap.SugaredLogger) []dose.Event {
	dayStart := localtime.StartOfDay(now)
	from := now.Add(-e.opts.RecentDoseWindow)
	if dayStart.Before(from) {
		from = dayStart
	}

	to := dayStart.AddDate(0, 0, 1).Add(-time.Nanosecond)
	for _, ahead := range []time.Duration{e.opts.ReminderWindow, e.opts.EventWindow} {
		if end := now.Add(ahead); end.After(to) {
			to = end
		}
	}

	var events []dose.Event
	for _, m := range meds {
		if plan := dose.PlanFor(m.Schedule); plan.Fallback && m.Schedule.Type != db.ScheduleAsNeeded {
			log.Debugw("schedule has no usable time, projecting daily at default time",
				"medication", m.DisplayName(),
				"schedule", m.Schedule.Type,
				"at", plan.Anchor.String(),
			)
		}

		events = append(events, dose.Between(m, now, e.opts.Location, from, to)...)
	}

	return events
}

func (e *Engine) reminders(doses []dose.Event, meds map[uuid.UUID]*db.Medication, now time.Time) []Notification {
	end := now.Add(e.opts.ReminderWindow)

	var out []Notification
	for _, ev := range doses {
		if !localtime.Within(ev.Start, now, end) {
			continue
		}

		var devices []string
		if m, ok := meds[ev.MedicationID]; ok {
			devices = m.PushoverDevices
		}

		out = append(out, Notification{
			ID:       fmt.Sprintf("reminder:%s:%s:%d", ev.MedicationID, ev.ID, ev.Start.Unix()),
			Category: CategoryReminder,
			Title:    "Upcoming dose",
			Message:  fmt.Sprintf("It's almost time to take %s at %s.", ev.Title, ev.Start.Format("15:04")),
			DueAt:    ev.Start,
			Color:    ColorBlue,
			Metadata: map[string]interface{}{
				"medicationName": ev.Title,
				"medicationId":   ev.MedicationID.String(),
				"eventId":        ev.ID,
				"startAt":        ev.Start.Format(time.RFC3339),
			},
			Devices: devices,
		})
	}

	return out
}

func (e *Engine) lowStock(meds []*db.Medication, now time.Time, log *zap.SugaredLogger) []Notification {
	var out []Notification
	for _, m := range meds {
		runout, ok := dose.EstimateRunout(m, now)
		if !ok {
			log.Debugw("no runout estimate", "medication", m.DisplayName())
			continue
		}

		if runout.DaysLeft <= 0 || runout.DaysLeft > e.opts.LowStockDays {
			continue
		}

		when := fmt.Sprintf("in %d days", runout.DaysLeft)
		if runout.DaysLeft == 1 {
			when = "in 1 day"
		}

		name := m.DisplayName()
		out = append(out, Notification{
			ID:       fmt.Sprintf("lowstock:%s:%d", medicationKey(m), runout.Date.Unix()),
			Category: CategoryLowStock,
			Title:    "Running low",
			Message:  fmt.Sprintf("You will run out of %s %s.", name, when),
			DueAt:    runout.Date,
			Color:    ColorRed,
			Metadata: map[string]interface{}{
				"medicationName": name,
				"medicationId":   m.ID.String(),
				"daysLeft":       runout.DaysLeft,
				"runoutDate":     runout.Date.Format(time.RFC3339),
			},
			Devices: m.PushoverDevices,
		})
	}

	return out
}

func (e *Engine) eventConflicts(ctx context.Context, user *db.User, doses []dose.Event, now time.Time, log *zap.SugaredLogger) []Notification {
	if e.cal == nil {
		return nil
	}

	if !hasDoseOn(doses, now, e.opts.Location) {
		log.Debugw("no dose today, skipping calendar check")
		return nil
	}

	calendarID := user.CalendarID
	if calendarID == "" {
		calendarID = e.opts.DefaultCalendarID
	}

	if calendarID == "" {
		return nil
	}

	events, err := e.cal.Events(ctx, calendarID)
	if err != nil {
		log.Warnw("calendar unavailable, skipping event check", "calendar_id", calendarID, "error", err)
		return nil
	}

	end := now.Add(e.opts.EventWindow)

	var out []Notification
	for _, ev := range events {
		start, err := ev.StartTime(e.opts.Location)
		if err != nil {
			log.Debugw("skipping calendar event with unreadable start", "event_id", ev.ID, "error", err)
			continue
		}

		if !localtime.Within(start, now, end) || !localtime.SameDate(start, now, e.opts.Location) {
			continue
		}

		out = append(out, e.eventNotification(ctx, ev, start, recentMedications(doses, start, e.opts.RecentDoseWindow)))
	}

	return out
}

func (e *Engine) eventNotification(ctx context.Context, ev calendar.Event, start time.Time, recent []string) Notification {
	title := strings.TrimSpace(ev.Title)
	if title == "" {
		title = "Event"
	}

	source := ev.ID
	if source == "" {
		source = title
	}

	metadata := map[string]interface{}{
		"eventId":           ev.ID,
		"eventTitle":        title,
		"startAt":           start.Format(time.RFC3339),
		"recentMedications": recent,
	}

	if where := strings.TrimSpace(ev.Location); where != "" {
		metadata["eventLocation"] = where
	}

	message := fmt.Sprintf("%s starts at %s.", title, start.Format("15:04"))
	if len(recent) > 0 {
		message += fmt.Sprintf(" You recently took %s.", strings.Join(recent, ", "))

		if e.advisor != nil {
			res := e.advisor.Advise(ctx, advice.Request{
				EventID:     ev.ID,
				EventStart:  start,
				Title:       title,
				Description: ev.Description,
				Medications: recent,
			})

			metadata["adviceKey"] = res.Key
			if res.Text != "" {
				message += " " + res.Text
			}
		}
	}

	return Notification{
		ID:       fmt.Sprintf("event:%s:%d", source, start.Unix()),
		Category: CategoryEventSoon,
		Title:    "Upcoming event",
		Message:  message,
		DueAt:    start,
		Color:    ColorBlue,
		Metadata: metadata,
	}
}

func byID(meds []*db.Medication) map[uuid.UUID]*db.Medication {
	out := make(map[uuid.UUID]*db.Medication, len(meds))
	for _, m := range meds {
		out[m.ID] = m
	}

	return out
}

// medicationKey identifies a medication in notification ids. Stored
// medications always carry an ID; the normalized name stands in otherwise.
func medicationKey(m *db.Medication) string {
	if m.ID != uuid.Nil {
		return m.ID.String()
	}

	return m.NormalizedName()
}

func hasDoseOn(doses []dose.Event, day time.Time, loc *time.Location) bool {
	for _, ev := range doses {
		if localtime.SameDate(ev.Start, day, loc) {
			return true
		}
	}

	return false
}

// recentMedications names the doses taken in (start-window, start]
func recentMedications(doses []dose.Event, start time.Time, window time.Duration) []string {
	from := start.Add(-window)

	var names []string
	for _, ev := range doses {
		if ev.Start.After(from) && !ev.Start.After(start) {
			names = append(names, ev.Title)
		}
	}

	return advice.UniqueSorted(names)
}
