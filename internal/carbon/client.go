package carbon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ecoStepAPI/internal/ledger"
)

var errMalformed = errors.New("malformed estimator response")

type remoteBreakdown struct {
	Transportation *float64 `json:"transportation"`
	Energy         *float64 `json:"energy"`
	Diet           *float64 `json:"diet"`
	Shopping       *float64 `json:"shopping"`
}

type remoteRecommendation struct {
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	PotentialSaving float64 `json:"potentialSaving"`
	Difficulty      string  `json:"difficulty"`
}

// RemoteEstimate is the decoded /calculate response.
type RemoteEstimate struct {
	Daily           *float64               `json:"daily"`
	Weekly          *float64               `json:"weekly"`
	Monthly         *float64               `json:"monthly"`
	Breakdown       *remoteBreakdown       `json:"breakdown"`
	Recommendations []remoteRecommendation `json:"recommendations"`
}

func (r *RemoteEstimate) validate() error {
	if r.Daily == nil && r.Breakdown == nil {
		return fmt.Errorf("%w: neither daily nor breakdown present", errMalformed)
	}
	for _, v := range []*float64{r.Daily, r.Weekly, r.Monthly} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: negative total", errMalformed)
		}
	}
	if r.Breakdown != nil {
		b := r.Breakdown
		for _, v := range []*float64{b.Transportation, b.Energy, b.Diet, b.Shopping} {
			if v != nil && *v < 0 {
				return fmt.Errorf("%w: negative breakdown value", errMalformed)
			}
		}
	}
	return nil
}

func (r *RemoteEstimate) toEstimate(now time.Time) Estimate {
	var b Breakdown
	if r.Breakdown != nil {
		b = Breakdown{
			Transportation: valueOrZero(r.Breakdown.Transportation),
			Energy:         valueOrZero(r.Breakdown.Energy),
			Diet:           valueOrZero(r.Breakdown.Diet),
			Shopping:       valueOrZero(r.Breakdown.Shopping),
		}
	}

	daily := b.Sum()
	if r.Daily != nil {
		daily = *r.Daily
	}
	weekly := daily * 7
	if r.Weekly != nil {
		weekly = *r.Weekly
	}
	monthly := daily * 30
	if r.Monthly != nil {
		monthly = *r.Monthly
	}

	recs := make([]ledger.Recommendation, 0, len(r.Recommendations))
	for _, rec := range r.Recommendations {
		recs = append(recs, ledger.Recommendation{
			Title:           rec.Title,
			Description:     rec.Description,
			Category:        rec.Category,
			PotentialSaving: rec.PotentialSaving,
			Difficulty:      rec.Difficulty,
			GeneratedAt:     now,
		})
	}

	return Estimate{
		Daily:           daily,
		Weekly:          weekly,
		Monthly:         monthly,
		Breakdown:       b,
		Recommendations: recs,
	}
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Client talks to the AI estimation service over HTTP/JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Calculate(ctx context.Context, l Lifestyle) (*RemoteEstimate, error) {
	var out RemoteEstimate
	if err := c.post(ctx, "/calculate", l, &out); err != nil {
		return nil, err
	}
	if err := out.validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Insights(ctx context.Context, req InsightRequest) (*InsightReport, error) {
	var out InsightReport
	if err := c.post(ctx, "/insights", req, &out); err != nil {
		return nil, err
	}
	if out.Insights == nil {
		return nil, fmt.Errorf("%w: insights missing", errMalformed)
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("estimator request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("estimator returned status %d: %s", resp.StatusCode, snippet)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}
