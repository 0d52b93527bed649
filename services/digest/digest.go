package digest

import (
	"context"

	"makersclub-insights/pkg/config"
	"makersclub-insights/services/insights"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Summarizer turns a metrics record into a short natural-language status
// report.
type Summarizer interface {
	Summarize(ctx context.Context, m insights.Metrics, c insights.ChartData) (string, error)
}

// Service composes an optional external summarizer with the deterministic
// template. Digest never fails: any external error degrades to the
// template, which cannot error.
type Service struct {
	external Summarizer
	template *Template
}

type ServiceParams struct {
	fx.In
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	svc := &Service{template: NewTemplate()}
	if p.Config.Digest.GeminiAPIKey != "" {
		svc.external = NewGeminiClient(p.Config)
	}
	return svc
}

// NewServiceWith wires explicit strategies; used by tests and by hosts that
// bring their own generation backend.
func NewServiceWith(external Summarizer) *Service {
	return &Service{external: external, template: NewTemplate()}
}

// Digest produces the narrative report. The external strategy is attempted
// first when configured; on any error the deterministic template answers.
func (s *Service) Digest(ctx context.Context, m insights.Metrics, c insights.ChartData) string {
	if s.external != nil {
		text, err := s.external.Summarize(ctx, m, c)
		if err == nil && text != "" {
			return text
		}
		zap.L().Warn("external digest failed, using template", zap.Error(err))
	}

	text, _ := s.template.Summarize(ctx, m, c)
	return text
}

var Module = fx.Module("digest.service",
	fx.Provide(NewService),
)
