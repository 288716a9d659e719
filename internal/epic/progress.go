package epic

import "math"

// attentionThreshold is the verification score below which a story is
// flagged as needing attention.
const attentionThreshold = 80

// Progress summarizes completion and verification state for an epic.
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	// Percentage is completed/total rounded to the nearest integer,
	// 0 when the epic has no stories.
	Percentage int `json:"percentage"`
	// AverageScore is the rounded mean of verification scores, nil when
	// no story has a verification record.
	AverageScore *int `json:"averageScore"`
	// NeedsAttention lists stories whose verification score is below
	// the attention threshold. Unverified stories are not flagged.
	NeedsAttention []Story `json:"storiesNeedingAttention"`
}

// CalculateProgress computes completion and verification stats for an
// epic. Verifications are keyed by story ID; stories without an entry
// are excluded from score aggregates.
func CalculateProgress(e *Epic, verifications map[string]Verification) Progress {
	p := Progress{NeedsAttention: []Story{}}
	if e == nil {
		return p
	}

	p.Total = len(e.Stories)
	scoreSum := 0
	scored := 0
	for _, s := range e.Stories {
		if s.Status.IsDone() {
			p.Completed++
		}
		v, ok := verifications[s.ID]
		if !ok {
			continue
		}
		scoreSum += v.Score
		scored++
		if v.Score < attentionThreshold {
			p.NeedsAttention = append(p.NeedsAttention, s)
		}
	}

	if p.Total > 0 {
		p.Percentage = int(math.Round(float64(p.Completed) / float64(p.Total) * 100))
	}
	if scored > 0 {
		avg := int(math.Round(float64(scoreSum) / float64(scored)))
		p.AverageScore = &avg
	}
	return p
}
