package advice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AlisiaBaielli/TirAImisu/llm"
)

// MaxLength of an advice sentence, in characters
const MaxLength = 200

const systemPrompt = "You are a careful pharmacist assistant. Reply with exactly one short precaution " +
	"sentence (under 200 characters) for someone attending the described event after taking the listed " +
	"medications. No greeting, no disclaimer, no markdown."

// Store persists advice by key
type Store interface {
	Advice(key string) (string, bool, error)
	SetAdvice(key, text string) error
}

// Generator is the text-generation collaborator
type Generator interface {
	Chat(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error)
	Model() string
	Endpoint() string
}

// Request for advice about one calendar event
type Request struct {
	EventID     string
	EventStart  time.Time
	Title       string
	Description string
	Medications []string
}

// Result of an advice lookup. Text is empty when no advice could be produced.
type Result struct {
	Key    string
	Text   string
	Cached bool
}

// Advisor memoizes generated advice in a Store
type Advisor struct {
	store   Store
	gen     Generator
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewAdvisor creates an advisor. gen may be nil, in which case only cached
// advice is returned.
func NewAdvisor(store Store, gen Generator, timeout time.Duration, log *zap.SugaredLogger) *Advisor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Advisor{
		store:   store,
		gen:     gen,
		timeout: timeout,
		log:     log,
	}
}

// Context completes a request with the generator identity
func (a *Advisor) Context(req Request) Context {
	c := Context{
		EventID:     req.EventID,
		EventStart:  req.EventStart,
		Title:       req.Title,
		Description: req.Description,
		Medications: req.Medications,
	}

	if a.gen != nil {
		c.Model = a.gen.Model()
		c.Endpoint = a.gen.Endpoint()
	}

	return c
}

// Advise returns advice for the request, generating and storing it on a cache
// miss. Generation is best-effort: failures and timeouts yield an empty Text.
func (a *Advisor) Advise(ctx context.Context, req Request) Result {
	key := Key(a.Context(req))
	log := a.log.With("advice_key", key, "event_id", req.EventID)

	text, ok, err := a.store.Advice(key)
	if err != nil {
		log.Warnw("advice cache unreadable", "error", err)
	}

	if ok && text != "" {
		return Result{Key: key, Text: text, Cached: true}
	}

	if a.gen == nil {
		return Result{Key: key}
	}

	text, err = a.generate(ctx, req)
	if err != nil {
		log.Warnw("advice generation failed", "error", err)
		return Result{Key: key}
	}

	if text == "" {
		return Result{Key: key}
	}

	if err := a.store.SetAdvice(key, text); err != nil {
		log.Warnw("failed to store advice", "error", err)
	}

	return Result{Key: key, Text: text}
}

func (a *Advisor) generate(ctx context.Context, req Request) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	raw, err := a.gen.Chat(ctx, systemPrompt, []llm.Message{{Role: "user", Content: prompt(req)}})
	if err != nil {
		return "", fmt.Errorf("failed to generate advice: %w", err)
	}

	return Clean(raw), nil
}

func prompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Event: %s\n", req.Title)
	if desc := strings.TrimSpace(truncateRunes(req.Description, DescriptionPrefix)); desc != "" {
		fmt.Fprintf(&b, "Details: %s\n", desc)
	}
	fmt.Fprintf(&b, "Starts at: %s\n", req.EventStart.Format("Mon 2 Jan 15:04"))
	fmt.Fprintf(&b, "Medications taken in the 12 hours before: %s\n", strings.Join(UniqueSorted(req.Medications), ", "))

	return b.String()
}

// Clean flattens generated text to a single line of at most MaxLength characters
func Clean(raw string) string {
	text := strings.Join(strings.Fields(raw), " ")
	text = strings.Trim(text, "\"'` ")

	r := []rune(text)
	if len(r) <= MaxLength {
		return text
	}

	return strings.TrimSpace(string(r[:MaxLength-1])) + "…"
}
