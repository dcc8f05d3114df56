package judge

import (
	"context"

	"vigil-worker-go/internal/models"
)

const (
	localConfidenceLikely   = 0.7
	localConfidenceUnlikely = 0.2
)

// LocalJudge is the deterministic rule judge. Always available, never fails.
type LocalJudge struct{}

func NewLocalJudge() *LocalJudge {
	return &LocalJudge{}
}

func (j *LocalJudge) Backend() string { return BackendLocal }

// Judge flags concealment when the suspicion reasons include an exit without
// checkout or a torso ratio spike.
func (j *LocalJudge) Judge(_ context.Context, evidence models.JudgeEvidence) models.JudgeResult {
	likely := false
	supporting := make([]string, 0, 2)
	for _, reason := range evidence.Reasons {
		switch reason {
		case models.ReasonExitWithoutCheckout, models.ReasonTorsoRatioSpike:
			likely = true
			supporting = append(supporting, reason)
		}
	}

	result := models.JudgeResult{
		ConcealmentLikely: likely,
		Confidence:        localConfidenceUnlikely,
		Evidence:          supporting,
		RecommendedAction: models.ActionLogOnly,
		Backend:           BackendLocal,
	}
	if likely {
		result.Confidence = localConfidenceLikely
	}
	if likely && result.Confidence >= localConfidenceLikely {
		result.RecommendedAction = models.ActionAlert
	}
	return result
}
