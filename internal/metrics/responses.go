// Package metrics derives response reliability from pure tone responses.
package metrics

import (
	"math"
	"time"

	"hearing-go/internal/models"
)

// Summarize computes the reliability figures of a run.
func Summarize(responses []models.Response) models.ResponseStats {
	st := models.ResponseStats{
		Trials:      CountTrials(responses),
		Detections:  CountDetections(responses),
		FalseAlarms: CountFalseAlarms(responses),
	}
	st.Omissions = st.Trials - st.Detections
	st.DetectionRate = CalculateDetectionRate(responses)
	st.FalseAlarmRate = CalculateFalseAlarmRate(responses)
	st.MeanReactionTime = CalculateAverageReactionTime(responses)
	st.ReactionTimeSD = CalculateReactionTimeSD(responses)
	return st
}

// CountTrials counts presented tones, not presses between them.
func CountTrials(responses []models.Response) int {
	count := 0
	for _, r := range responses {
		if !r.FalseAlarm {
			count++
		}
	}
	return count
}

func CountDetections(responses []models.Response) int {
	count := 0
	for _, r := range responses {
		if r.Heard && !r.FalseAlarm {
			count++
		}
	}
	return count
}

func CountFalseAlarms(responses []models.Response) int {
	count := 0
	for _, r := range responses {
		if r.FalseAlarm {
			count++
		}
	}
	return count
}

func CalculateDetectionRate(responses []models.Response) float64 {
	trials := CountTrials(responses)
	if trials == 0 {
		return 0
	}
	return float64(CountDetections(responses)) / float64(trials)
}

// CalculateFalseAlarmRate is false alarms per presented tone.
func CalculateFalseAlarmRate(responses []models.Response) float64 {
	trials := CountTrials(responses)
	if trials == 0 {
		return 0
	}
	return float64(CountFalseAlarms(responses)) / float64(trials)
}

func reactionTimes(responses []models.Response) []float64 {
	var out []float64
	for _, r := range responses {
		if r.Heard && !r.FalseAlarm {
			out = append(out, float64(r.ReactionTime))
		}
	}
	return out
}

func CalculateAverageReactionTime(responses []models.Response) time.Duration {
	rts := reactionTimes(responses)
	if len(rts) == 0 {
		return 0
	}
	var sum float64
	for _, rt := range rts {
		sum += rt
	}
	return time.Duration(sum / float64(len(rts)))
}

// CalculateReactionTimeSD is the population standard deviation of detection latencies.
func CalculateReactionTimeSD(responses []models.Response) time.Duration {
	rts := reactionTimes(responses)
	if len(rts) <= 1 {
		return 0
	}

	avg := float64(CalculateAverageReactionTime(responses))
	var sumSquaredDiff float64
	for _, rt := range rts {
		diff := rt - avg
		sumSquaredDiff += diff * diff
	}
	return time.Duration(math.Sqrt(sumSquaredDiff / float64(len(rts))))
}
