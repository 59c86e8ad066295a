package models

import (
	"sort"
	"time"
)

// SpeechVolumes are the presentation volumes of the speech test, loudest first.
var SpeechVolumes = []float64{1.0, 0.8, 0.6, 0.4, 0.3, 0.2, 0.15, 0.1}

// WordsPerVolume is how many words are presented at each speech volume.
const WordsPerVolume = 5

// SpeechTrialRecord is one answered speech trial.
type SpeechTrialRecord struct {
	Volume  float64 `json:"volume"`
	Word    string  `json:"word"`
	Chosen  string  `json:"chosen"`
	Correct bool    `json:"correct"`
}

// VolumeStats aggregates the answers given at one volume.
type VolumeStats struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// Accuracy returns the fraction of correct answers, 0 when nothing was asked.
func (v VolumeStats) Accuracy() float64 {
	if v.Total == 0 {
		return 0
	}
	return float64(v.Correct) / float64(v.Total)
}

// SpeechResults is the outcome of a speech reception threshold test.
type SpeechResults struct {
	ByVolume  map[float64]*VolumeStats `json:"byVolume"`
	Threshold float64                  `json:"threshold"`
	Trials    []SpeechTrialRecord      `json:"trials"`
	Timestamp time.Time                `json:"timestamp"`
}

func NewSpeechResults(now time.Time) SpeechResults {
	return SpeechResults{
		ByVolume:  make(map[float64]*VolumeStats),
		Timestamp: now,
	}
}

// Record adds one answered trial to its volume bucket.
func (r *SpeechResults) Record(rec SpeechTrialRecord) {
	stats, ok := r.ByVolume[rec.Volume]
	if !ok {
		stats = &VolumeStats{}
		r.ByVolume[rec.Volume] = stats
	}
	stats.Total++
	if rec.Correct {
		stats.Correct++
	}
	r.Trials = append(r.Trials, rec)
}

// Volumes returns the tested volumes sorted loudest first.
func (r SpeechResults) Volumes() []float64 {
	return SortedVolumes(r.ByVolume)
}

// SortedVolumes returns the keys of byVolume sorted loudest first.
func SortedVolumes(byVolume map[float64]*VolumeStats) []float64 {
	volumes := make([]float64, 0, len(byVolume))
	for v := range byVolume {
		volumes = append(volumes, v)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(volumes)))
	return volumes
}
