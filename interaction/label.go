// Package interaction checks a new medication against a user's existing ones
// for drug-drug interactions, reading openFDA labels and asking a language
// model to judge them.
package interaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrNoLabel occurs when openFDA has no usable label for a drug
	ErrNoLabel = errors.New("no drug label found")
	// ErrUpstream occurs when openFDA answers with an error or an unexpected payload
	ErrUpstream = errors.New("openFDA upstream error")
)

// labelResult holds the label sections an interaction check reads
type labelResult struct {
	DrugInteractions []string `json:"drug_interactions"`
	Warnings         []string `json:"warnings"`
}

type labelResponse struct {
	Results []labelResult `json:"results"`
}

// LabelClient reads drug labels from the openFDA API
type LabelClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

// NewLabelClient creates an openFDA client. timeout bounds every request.
func NewLabelClient(baseURL string, timeout time.Duration, log *zap.SugaredLogger) *LabelClient {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &LabelClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// InteractionText returns the drug interactions section of a drug's label,
// or its warnings section when the label has none.
func (c *LabelClient) InteractionText(ctx context.Context, drug string) (string, error) {
	query := url.Values{}
	query.Set("search", fmt.Sprintf("openfda.generic_name:%q", strings.ToUpper(strings.TrimSpace(drug))))
	query.Set("limit", "1")
	target := c.baseURL + "/drug/label.json?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create label request for %s: %w", drug, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("label request for %s failed: %w", drug, err)
	}
	defer resp.Body.Close()

	c.log.Debugw("openfda label call",
		"drug", drug,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%s: %w", drug, ErrNoLabel)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("label for %s: status %d: %s: %w", drug, resp.StatusCode, strings.TrimSpace(string(payload)), ErrUpstream)
	}

	var body labelResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("label for %s: %v: %w", drug, err, ErrUpstream)
	}

	if len(body.Results) == 0 {
		return "", fmt.Errorf("%s: %w", drug, ErrNoLabel)
	}

	result := body.Results[0]
	for _, section := range [][]string{result.DrugInteractions, result.Warnings} {
		if text := strings.TrimSpace(strings.Join(section, " ")); text != "" {
			return text, nil
		}
	}

	return "", fmt.Errorf("%s has no interaction or warning section: %w", drug, ErrNoLabel)
}
