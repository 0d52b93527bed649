package digest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"makersclub-insights/pkg/config"
	"makersclub-insights/pkg/errutil"
	"makersclub-insights/services/insights"
)

// GeminiClient is the external-generation strategy: it posts a prompt
// embedding all metric values to the Gemini generateContent endpoint. The
// HTTP client timeout bounds the call; every failure surfaces as an error
// for Service to fall back on, never to the caller.
type GeminiClient struct {
	httpClient *http.Client
	endpoint   string
	model      string
	apiKey     string
	price      int64
}

func NewGeminiClient(cfg *config.Config) *GeminiClient {
	timeout := cfg.Digest.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &GeminiClient{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   cfg.Digest.Endpoint,
		model:      cfg.Digest.Model,
		apiKey:     cfg.Digest.GeminiAPIKey,
		price:      cfg.Pricing.DefaultPrice,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiClient) Summarize(ctx context.Context, m insights.Metrics, c insights.ChartData) (string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: buildPrompt(g.price, m, c)}}}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.endpoint, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", errutil.BadGateway("generation request failed", errutil.WithErr(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", errutil.BadGateway(fmt.Sprintf("generation returned status %d: %s", resp.StatusCode, raw))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errutil.BadGateway("malformed generation response", errutil.WithErr(err))
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", errutil.BadGateway("generation response has no candidates")
	}

	text := out.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", errutil.BadGateway("generation response is empty")
	}

	return text, nil
}

func buildPrompt(price int64, m insights.Metrics, c insights.ChartData) string {
	return fmt.Sprintf(`You are the analyst of the Makers Club subscription community (flat price %d/month).
The club is about six weeks old. Review the metrics and give a short digest.

Metrics:
- Active subscribers: %d
- MRR: %d
- New this week: %d
- Churned (total): %d
- Retention M1: %.1f%%
- Approaching first renewal: %d

Segments:
- New (this week): %d
- Active: %d
- First renewal soon: %d
- Churned: %d

Answer strictly in this format:

%s [1-2 sentences on the current state]

%s [what needs attention right now]

%s [one concrete action]
`,
		price,
		m.Active, m.MRR, m.NewThisWeek, m.Churned, m.RetentionM1, m.FirstRenewalUpcoming,
		c.Segments.New, c.Segments.Active, c.Segments.FirstRenewal, c.Segments.Churned,
		StateMarker, CriticalMarker, RecommendationMarker)
}
