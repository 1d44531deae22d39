package config

import (
	"errors"
	"os"
)

const (
	// BadgerPathEnv name
	BadgerPathEnv = "BADGER_PATH"
	// PushoverAPITokenEnv name
	PushoverAPITokenEnv = "PUSHOVER_API_TOKEN"
	// SendgridAPIKeyEnv name
	SendgridAPIKeyEnv = "SENDGRID_API_KEY"
	// EmailFromEnv name
	EmailFromEnv = "EMAIL_FROM"
	// ListenAddrEnv name
	ListenAddrEnv = "LISTEN_ADDR"
	// TimezoneEnv name
	TimezoneEnv = "TIMEZONE"
	// CalendarBaseURLEnv name
	CalendarBaseURLEnv = "CALENDAR_BASE_URL"
	// CalendarAPITokenEnv name
	CalendarAPITokenEnv = "CALENDAR_API_TOKEN"
	// CalendarIDEnv name
	CalendarIDEnv = "CALENDAR_ID"
	// OpenFDABaseURLEnv name
	OpenFDABaseURLEnv = "OPENFDA_BASE_URL"
	// LLMProviderEnv name
	LLMProviderEnv = "LLM_PROVIDER"
	// LLMAPIKeyEnv name
	LLMAPIKeyEnv = "LLM_API_KEY"
	// LLMModelEnv name
	LLMModelEnv = "LLM_MODEL"
	// LLMBaseURLEnv name
	LLMBaseURLEnv = "LLM_BASE_URL"
	// EventWindowEnv name
	EventWindowEnv = "EVENT_WINDOW"
	// CollaboratorTimeoutEnv name
	CollaboratorTimeoutEnv = "COLLABORATOR_TIMEOUT"
	// PollScheduleEnv name
	PollScheduleEnv = "POLL_SCHEDULE"
	// LogModeEnv name
	LogModeEnv = "LOG_MODE"
	// ConfigFileEnv names the YAML file to load, if any
	ConfigFileEnv = "PILLPAL_CONFIG"
)

var (
	// ErrEnvVariableNotSet occurs when an environment variable is not set
	ErrEnvVariableNotSet = errors.New("environment variable is not set")
)

// Env variable Source
type Env struct {
}

// Lookup an environment variable
func (e *Env) Lookup(name string) (string, bool) {
	return os.LookupEnv(name)
}
