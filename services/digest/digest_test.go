package digest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"makersclub-insights/pkg/config"
	"makersclub-insights/services/insights"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func requireThreeSections(t *testing.T, text string) {
	t.Helper()

	require.NotEmpty(t, text)
	for _, marker := range []string{StateMarker, CriticalMarker, RecommendationMarker} {
		idx := strings.Index(text, marker)
		require.GreaterOrEqual(t, idx, 0, "missing section %q", marker)
		section := strings.TrimSpace(strings.SplitN(text[idx+len(marker):], "\n", 2)[0])
		require.NotEmpty(t, section, "section %q has no content", marker)
	}
}

func TestTemplateZeroMetrics(t *testing.T) {
	text, err := NewTemplate().Summarize(context.Background(), insights.Metrics{}, insights.ChartData{})
	require.NoError(t, err)
	requireThreeSections(t, text)
}

func TestTemplateFlagsUpcomingRenewals(t *testing.T) {
	m := insights.Metrics{Active: 100, FirstRenewalUpcoming: 12, Churned: 3}
	text, err := NewTemplate().Summarize(context.Background(), m, insights.ChartData{})
	require.NoError(t, err)
	require.Contains(t, text, "12 subscribers are approaching their first renewal")
}

func TestTemplateReportsChurn(t *testing.T) {
	m := insights.Metrics{Active: 90, Churned: 10, RetentionM1: 50.0}
	text, err := NewTemplate().Summarize(context.Background(), m, insights.ChartData{})
	require.NoError(t, err)
	require.Contains(t, text, "10 subscribers have already churned")
	require.Contains(t, text, "50.0%")
}

func TestTemplateNoChurnYet(t *testing.T) {
	m := insights.Metrics{Active: 40, NewThisWeek: 40}
	text, err := NewTemplate().Summarize(context.Background(), m, insights.ChartData{})
	require.NoError(t, err)
	require.Contains(t, text, "churn hasn't started yet")
}

func newGeminiConfig(endpoint string) *config.Config {
	cfg := &config.Config{}
	cfg.Digest.GeminiAPIKey = "test-key"
	cfg.Digest.Model = "gemini-1.5-flash"
	cfg.Digest.Endpoint = endpoint
	cfg.Digest.Timeout = 2 * time.Second
	cfg.Pricing.DefaultPrice = 3990
	return cfg
}

func TestGeminiClientReturnsCandidateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Contains(t, r.URL.Path, "gemini-1.5-flash:generateContent")
		require.Equal(t, "test-key", r.URL.Query().Get("key"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"all good"}]}}]}`)
	}))
	defer srv.Close()

	client := NewGeminiClient(newGeminiConfig(srv.URL))
	text, err := client.Summarize(context.Background(), insights.Metrics{Active: 5}, insights.ChartData{})
	require.NoError(t, err)
	require.Equal(t, "all good", text)
}

func TestGeminiClientErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewGeminiClient(newGeminiConfig(srv.URL))
	_, err := client.Summarize(context.Background(), insights.Metrics{}, insights.ChartData{})
	require.Error(t, err)
}

func TestGeminiClientEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	client := NewGeminiClient(newGeminiConfig(srv.URL))
	_, err := client.Summarize(context.Background(), insights.Metrics{}, insights.ChartData{})
	require.Error(t, err)
}

type failingSummarizer struct{}

func (failingSummarizer) Summarize(context.Context, insights.Metrics, insights.ChartData) (string, error) {
	return "", errors.New("upstream down")
}

func TestServiceFallsBackOnExternalError(t *testing.T) {
	svc := NewServiceWith(failingSummarizer{})

	text := svc.Digest(context.Background(), insights.Metrics{}, insights.ChartData{})
	requireThreeSections(t, text)
}

func TestServiceUsesExternalWhenHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"external digest"}]}}]}`)
	}))
	defer srv.Close()

	svc := NewServiceWith(NewGeminiClient(newGeminiConfig(srv.URL)))
	text := svc.Digest(context.Background(), insights.Metrics{}, insights.ChartData{})
	require.Equal(t, "external digest", text)
}

func TestServiceWithoutExternalUsesTemplate(t *testing.T) {
	cfg := &config.Config{} // no API key configured
	svc := NewService(ServiceParams{Config: cfg})

	text := svc.Digest(context.Background(), insights.Metrics{Active: 3, MRR: 11970}, insights.ChartData{})
	requireThreeSections(t, text)
}
