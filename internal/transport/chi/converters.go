package chi

import (
	domattempt "github.com/kailas-cloud/voicegate/internal/domain/attempt"
	domvp "github.com/kailas-cloud/voicegate/internal/domain/voiceprint"
	verificationuc "github.com/kailas-cloud/voicegate/internal/usecase/verification"
)

func resultToAPI(r verificationuc.Result) VerificationResult {
	return VerificationResult{
		Verified:     r.Verified,
		Score:        r.Score,
		RawScore:     r.RawScore,
		Threshold:    r.Threshold,
		VoiceprintID: r.VoiceprintID,
		AttemptID:    r.AttemptID,
		Cohort:       statsToAPI(r.Stats),
	}
}

func statsToAPI(s domattempt.CohortStatistics) CohortStats {
	return CohortStats{
		EnrollMean:    s.EnrollMean,
		EnrollStd:     s.EnrollStd,
		EnrollSize:    s.EnrollSize,
		TestMean:      s.TestMean,
		TestStd:       s.TestStd,
		TestSize:      s.TestSize,
		LowConfidence: s.LowConfidence,
	}
}

func voiceprintToAPI(vp *domvp.Voiceprint) Voiceprint {
	return Voiceprint{
		VoiceprintID: vp.ID(),
		UserID:       vp.UserID(),
		Model:        vp.Model(),
		NumSamples:   vp.NumSamples(),
		IsActive:     vp.IsActive(),
		CreatedAt:    vp.CreatedAt().UTC(),
	}
}

func attemptToAPI(a *domattempt.Attempt) Attempt {
	return Attempt{
		AttemptID:       a.ID(),
		UserID:          a.UserID(),
		VoiceprintID:    a.VoiceprintID(),
		ProbeRef:        a.ProbeRef(),
		RawScore:        a.RawScore(),
		NormalizedScore: a.NormalizedScore(),
		Threshold:       a.Threshold(),
		Verified:        a.Verified(),
		Cohort:          statsToAPI(a.Stats()),
		Error:           a.Err(),
		CreatedAt:       a.CreatedAt().UTC(),
	}
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func derefBool(p *bool) bool {
	if p == nil {
		return false
	}
	return *p
}
