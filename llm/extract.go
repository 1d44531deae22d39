package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnreadableLabel occurs when a label scan yields no medication name
var ErrUnreadableLabel = errors.New("medication label could not be read")

const labelPrompt = "You read photos of medication packages. Reply with only a JSON object of the form " +
	`{"medication_name": string, "dosage": string, "num_pills": number}. ` +
	"Use an empty string or 0 for anything not visible on the package."

// Label is what a package photo says about a medication
type Label struct {
	MedicationName string  `json:"medication_name"`
	Dosage         string  `json:"dosage"`
	NumPills       float64 `json:"num_pills"`
}

// ExtractLabel asks a vision-capable model to read a medication package
func ExtractLabel(ctx context.Context, l LLM, img Image) (*Label, error) {
	raw, err := l.Chat(ctx, labelPrompt, []Message{{
		Role:    "user",
		Content: "Read this medication package.",
		Images:  []Image{img},
	}})
	if err != nil {
		return nil, fmt.Errorf("failed to scan label: %w", err)
	}

	return ParseLabel(raw)
}

// ParseLabel reads the first JSON object in a model reply
func ParseLabel(raw string) (*Label, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON object in reply: %w", ErrUnreadableLabel)
	}

	var fields struct {
		MedicationName string      `json:"medication_name"`
		Dosage         string      `json:"dosage"`
		NumPills       interface{} `json:"num_pills"`
	}

	if err := json.Unmarshal([]byte(raw[start:end+1]), &fields); err != nil {
		return nil, fmt.Errorf("invalid JSON in reply: %v: %w", err, ErrUnreadableLabel)
	}

	label := &Label{
		MedicationName: strings.TrimSpace(fields.MedicationName),
		Dosage:         strings.TrimSpace(fields.Dosage),
	}

	if label.MedicationName == "" {
		return nil, ErrUnreadableLabel
	}

	switch v := fields.NumPills.(type) {
	case float64:
		label.NumPills = v
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			label.NumPills = n
		}
	}

	label.NumPills = max(0, label.NumPills)

	return label, nil
}

// Scanner reads medication labels with a vision-capable model
type Scanner struct {
	model LLM
}

// NewScanner over a model
func NewScanner(model LLM) *Scanner {
	return &Scanner{model: model}
}

// Scan a package photo
func (s *Scanner) Scan(ctx context.Context, img Image) (*Label, error) {
	return ExtractLabel(ctx, s.model, img)
}
