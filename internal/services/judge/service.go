package judge

import (
	"context"

	"github.com/rs/zerolog/log"

	"vigil-worker-go/internal/config"
	"vigil-worker-go/internal/models"
)

// Backend names recorded in incident records
const (
	BackendLocal  = "local_rules"
	BackendVision = "external_vision"
)

// Judge evaluates concealment evidence. Implementations never return an
// error; unavailable strategies resolve internally to the local judge.
type Judge interface {
	Judge(ctx context.Context, evidence models.JudgeEvidence) models.JudgeResult
	Backend() string
}

// Select picks the judge strategy once from configuration. The choice is
// immutable for the lifetime of the pipeline instance.
func Select(cfg *config.Config) Judge {
	if cfg.JudgeVisionEnabled && cfg.JudgeVisionURL != "" && cfg.JudgeVisionAPIKey != "" {
		log.Info().Str("backend", BackendVision).Msg("Concealment judge strategy selected")
		return NewVisionJudge(cfg, NewLocalJudge())
	}

	if cfg.JudgeVisionEnabled {
		log.Warn().Msg("External vision judge enabled but credentials missing, using local judge")
	}
	log.Info().Str("backend", BackendLocal).Msg("Concealment judge strategy selected")
	return NewLocalJudge()
}
