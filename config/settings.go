package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/AlisiaBaielli/TirAImisu/llm"
	"github.com/AlisiaBaielli/TirAImisu/localtime"
)

// Defaults for optional settings
const (
	DefaultListenAddr          = ":8000"
	DefaultOpenFDABaseURL      = "https://api.fda.gov"
	DefaultLLMProvider         = "openai"
	DefaultEventWindow         = 8 * time.Hour
	DefaultCollaboratorTimeout = 10 * time.Second
	DefaultPollSchedule        = "@every 5m"
	DefaultLogMode             = "production"
)

// Settings is the Config read from a Source
type Settings struct {
	source Source
}

var _ Config = (*Settings)(nil)

// New Config over a Source
func New(source Source) *Settings {
	return &Settings{source: source}
}

func (s *Settings) required(name, what string) (string, error) {
	val, ok := s.source.Lookup(name)
	if !ok || strings.TrimSpace(val) == "" {
		return "", fmt.Errorf(
			"unable to get %s from env variable %s: %w",
			what,
			name,
			ErrEnvVariableNotSet,
		)
	}

	return strings.TrimSpace(val), nil
}

func (s *Settings) optional(name, fallback string) string {
	val, ok := s.source.Lookup(name)
	if !ok || strings.TrimSpace(val) == "" {
		return fallback
	}

	return strings.TrimSpace(val)
}

func (s *Settings) duration(name string, fallback time.Duration) (time.Duration, error) {
	val := s.optional(name, "")
	if val == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid duration %q in %s", val, name)
	}

	return d, nil
}

// BadgerPath for the database directory
func (s *Settings) BadgerPath() (string, error) {
	return s.required(BadgerPathEnv, "badger path")
}

// PushoverAPIToken getter
func (s *Settings) PushoverAPIToken() (string, error) {
	return s.required(PushoverAPITokenEnv, "pushover API token")
}

// SendgridAPIKey getter
func (s *Settings) SendgridAPIKey() (string, error) {
	return s.required(SendgridAPIKeyEnv, "sendgrid API key")
}

// EmailFrom is the sender address of outgoing email
func (s *Settings) EmailFrom() (string, error) {
	return s.required(EmailFromEnv, "email sender")
}

// ListenAddr of the HTTP API
func (s *Settings) ListenAddr() (string, error) {
	return s.optional(ListenAddrEnv, DefaultListenAddr), nil
}

// Timezone all wall-clock times are read in
func (s *Settings) Timezone() (*time.Location, error) {
	return localtime.Location(s.optional(TimezoneEnv, ""))
}

// CalendarBaseURL of the calendar REST API
func (s *Settings) CalendarBaseURL() (string, error) {
	return s.required(CalendarBaseURLEnv, "calendar base URL")
}

// CalendarAPIToken getter
func (s *Settings) CalendarAPIToken() (string, error) {
	return s.required(CalendarAPITokenEnv, "calendar API token")
}

// DefaultCalendarID for users without their own calendar
func (s *Settings) DefaultCalendarID() (string, error) {
	return s.optional(CalendarIDEnv, ""), nil
}

// OpenFDABaseURL of the drug label API
func (s *Settings) OpenFDABaseURL() (string, error) {
	return s.optional(OpenFDABaseURLEnv, DefaultOpenFDABaseURL), nil
}

// LLM provider settings. Requests are bounded by the collaborator timeout.
func (s *Settings) LLM() (llm.Config, error) {
	timeout, err := s.CollaboratorTimeout()
	if err != nil {
		return llm.Config{}, err
	}

	return llm.Config{
		Provider: strings.ToLower(s.optional(LLMProviderEnv, DefaultLLMProvider)),
		APIKey:   s.optional(LLMAPIKeyEnv, ""),
		Model:    s.optional(LLMModelEnv, ""),
		BaseURL:  s.optional(LLMBaseURLEnv, ""),
		Timeout:  timeout,
	}, nil
}

// EventWindow is how far ahead calendar events are checked against doses
func (s *Settings) EventWindow() (time.Duration, error) {
	return s.duration(EventWindowEnv, DefaultEventWindow)
}

// CollaboratorTimeout bounds calls to the calendar and text generation
func (s *Settings) CollaboratorTimeout() (time.Duration, error) {
	return s.duration(CollaboratorTimeoutEnv, DefaultCollaboratorTimeout)
}

// PollSchedule is the cron spec of the delivery job
func (s *Settings) PollSchedule() (string, error) {
	return s.optional(PollScheduleEnv, DefaultPollSchedule), nil
}

// LogMode selects the logger configuration
func (s *Settings) LogMode() (string, error) {
	return s.optional(LogModeEnv, DefaultLogMode), nil
}
