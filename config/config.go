package config

import (
	"time"

	"github.com/AlisiaBaielli/TirAImisu/llm"
)

// Config for application setup
type Config interface {
	BadgerPath() (string, error)
	PushoverAPIToken() (string, error)
	SendgridAPIKey() (string, error)
	EmailFrom() (string, error)
	ListenAddr() (string, error)
	Timezone() (*time.Location, error)
	CalendarBaseURL() (string, error)
	CalendarAPIToken() (string, error)
	DefaultCalendarID() (string, error)
	OpenFDABaseURL() (string, error)
	LLM() (llm.Config, error)
	EventWindow() (time.Duration, error)
	CollaboratorTimeout() (time.Duration, error)
	PollSchedule() (string, error)
	LogMode() (string, error)
}

// Source of raw setting values, keyed by environment variable name
type Source interface {
	Lookup(name string) (string, bool)
}

// Load the configuration. With an empty path only the environment is read;
// otherwise the YAML file at path is read and environment variables override
// its values.
func Load(path string) (Config, error) {
	if path == "" {
		return New(&Env{}), nil
	}

	file, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	return New(layered{&Env{}, file}), nil
}

// layered looks a name up in each source in turn
type layered []Source

func (l layered) Lookup(name string) (string, bool) {
	for _, s := range l {
		if val, ok := s.Lookup(name); ok {
			return val, true
		}
	}

	return "", false
}
