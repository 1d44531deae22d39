package interaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AlisiaBaielli/TirAImisu/llm"
)

// ErrUnreadableReport occurs when a model reply holds no interaction report
var ErrUnreadableReport = errors.New("interaction report could not be read")

// maxLabelText bounds how much label text goes into one prompt
const maxLabelText = 12000

const reportShape = `{"interaction_found": bool, "severity": "Mild" | "Moderate" | "Severe" | "", ` +
	`"description": string, "extended_description": string}`

const analyzePrompt = "You are an expert pharmacologist. You are given text from a drug label and the name of a " +
	"second drug. Decide whether the text describes an interaction with the second drug or its class. " +
	"Reply with only a JSON object of the form " + reportShape + ". " +
	"description is one sentence; extended_description explains mechanism, effects and management. " +
	"If no interaction is described, set interaction_found to false and leave the other fields empty."

const synthesizePrompt = "You are an expert clinical pharmacologist. You are given several reports about one drug " +
	"interaction. Combine them into one definitive report that uses the most severe severity found and the most " +
	"complete description. Reply with only a JSON object of the form " + reportShape + "."

// Report is a model's verdict on one pair of drugs
type Report struct {
	InteractionFound    bool   `json:"interaction_found"`
	Severity            string `json:"severity,omitempty"`
	Description         string `json:"description,omitempty"`
	ExtendedDescription string `json:"extended_description,omitempty"`
}

// Finding is an interaction between the new drug and one existing drug
type Finding struct {
	NewDrug      string `json:"new_drug"`
	ExistingDrug string `json:"existing_drug"`
	Report       Report `json:"report"`
}

// Labels supplies the interaction text of a drug's label
type Labels interface {
	InteractionText(ctx context.Context, drug string) (string, error)
}

// Checker compares a new drug with existing ones
type Checker struct {
	labels  Labels
	model   llm.LLM
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewChecker creates a checker. timeout bounds a whole Check.
func NewChecker(labels Labels, model llm.LLM, timeout time.Duration, log *zap.SugaredLogger) *Checker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Checker{
		labels:  labels,
		model:   model,
		timeout: timeout,
		log:     log,
	}
}

// Check newDrug against every distinct existing drug. Each label is read from
// both sides of a pair, and pairs with more than one positive verdict are
// merged into one report. Failures of the label API or the model only drop the
// affected verdict, so the result is whatever could be established in time.
func (c *Checker) Check(ctx context.Context, existing []string, newDrug string) []Finding {
	newDrug = strings.TrimSpace(newDrug)
	if newDrug == "" {
		return nil
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	others := otherDrugs(existing, newDrug)
	if len(others) == 0 {
		return nil
	}

	newText := c.labelText(ctx, newDrug)

	findings := []Finding{}
	for _, other := range others {
		if ctx.Err() != nil {
			c.log.Warnw("interaction check cut short", "drug", newDrug, "error", ctx.Err())
			break
		}

		var reports []Report
		if newText != "" {
			if r, ok := c.analyze(ctx, newText, newDrug, other); ok {
				reports = append(reports, r)
			}
		}

		if otherText := c.labelText(ctx, other); otherText != "" {
			if r, ok := c.analyze(ctx, otherText, other, newDrug); ok && !hasDescription(reports, r.Description) {
				reports = append(reports, r)
			}
		}

		if len(reports) == 0 {
			continue
		}

		findings = append(findings, Finding{
			NewDrug:      newDrug,
			ExistingDrug: other,
			Report:       c.synthesize(ctx, reports, newDrug, other),
		})
	}

	c.log.Debugw("interaction check done", "drug", newDrug, "checked", len(others), "found", len(findings))

	return findings
}

func (c *Checker) labelText(ctx context.Context, drug string) string {
	text, err := c.labels.InteractionText(ctx, drug)
	if errors.Is(err, ErrNoLabel) {
		c.log.Debugw("no label for drug", "drug", drug)
		return ""
	}

	if err != nil {
		c.log.Warnw("failed to read drug label", "drug", drug, "error", err)
		return ""
	}

	if len(text) > maxLabelText {
		text = text[:maxLabelText]
	}

	return text
}

// analyze asks the model whether labelText, from labelDrug's label, describes
// an interaction with otherDrug. ok is true only for a positive verdict.
func (c *Checker) analyze(ctx context.Context, labelText, labelDrug, otherDrug string) (Report, bool) {
	content := fmt.Sprintf(
		"Drug label text (for %s):\n---START TEXT---\n%s\n---END TEXT---\n\nAnalyze this text for any interactions with the drug '%s'.",
		labelDrug, labelText, otherDrug,
	)

	raw, err := c.model.Chat(ctx, analyzePrompt, []llm.Message{{Role: "user", Content: content}})
	if err != nil {
		c.log.Warnw("interaction analysis failed", "label", labelDrug, "other", otherDrug, "error", err)
		return Report{}, false
	}

	report, err := ParseReport(raw)
	if err != nil {
		c.log.Warnw("unreadable interaction analysis", "label", labelDrug, "other", otherDrug, "error", err)
		return Report{}, false
	}

	return *report, report.InteractionFound
}

// synthesize merges the positive reports of one pair. A failed merge keeps
// the most severe report.
func (c *Checker) synthesize(ctx context.Context, reports []Report, drugA, drugB string) Report {
	if len(reports) == 1 {
		return reports[0]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Synthesize the following reports about an interaction between '%s' and '%s' into one final report.\n", drugA, drugB)
	for i, r := range reports {
		fmt.Fprintf(&b, "\n---Source Report %d---\nSeverity: %s\nDescription: %s\nExtended Description: %s\n",
			i+1, r.Severity, r.Description, r.ExtendedDescription)
	}

	raw, err := c.model.Chat(ctx, synthesizePrompt, []llm.Message{{Role: "user", Content: b.String()}})
	if err == nil {
		var merged *Report
		if merged, err = ParseReport(raw); err == nil {
			merged.InteractionFound = true
			return *merged
		}
	}

	c.log.Warnw("interaction synthesis failed, keeping most severe report", "drug", drugA, "other", drugB, "error", err)

	return mostSevere(reports)
}

// ParseReport reads the first JSON object in a model reply
func ParseReport(raw string) (*Report, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in reply: %w", ErrUnreadableReport)
	}

	report := &Report{}
	if err := json.Unmarshal([]byte(raw[start:end+1]), report); err != nil {
		return nil, fmt.Errorf("invalid JSON in reply: %v: %w", err, ErrUnreadableReport)
	}

	report.Severity = strings.TrimSpace(report.Severity)
	report.Description = strings.TrimSpace(report.Description)
	report.ExtendedDescription = strings.TrimSpace(report.ExtendedDescription)

	return report, nil
}

// otherDrugs lists the distinct existing drugs other than drug, first
// spelling wins.
func otherDrugs(existing []string, drug string) []string {
	seen := map[string]bool{strings.ToUpper(drug): true}

	var out []string
	for _, name := range existing {
		name = strings.TrimSpace(name)
		key := strings.ToUpper(name)
		if name == "" || seen[key] {
			continue
		}

		seen[key] = true
		out = append(out, name)
	}

	return out
}

func hasDescription(reports []Report, description string) bool {
	for _, r := range reports {
		if r.Description == description {
			return true
		}
	}

	return false
}

func severityRank(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "severe":
		return 3
	case "moderate":
		return 2
	case "mild":
		return 1
	}

	return 0
}

func mostSevere(reports []Report) Report {
	best := reports[0]
	for _, r := range reports[1:] {
		if severityRank(r.Severity) > severityRank(best.Severity) {
			best = r
		}
	}

	return best
}
