package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Ear identifies the channel a stimulus is routed to.
type Ear string

const (
	EarRight Ear = "right"
	EarLeft  Ear = "left"
	EarBoth  Ear = "both"
	EarNone  Ear = "none"
)

// Hearing level bounds and the starting level of every staircase, in dB HL.
const (
	MinLevel   = -10
	MaxLevel   = 100
	StartLevel = 40
)

// SkipToken is how a skipped threshold is written in text exports.
const SkipToken = "SKIP"

// StandardFrequencies are the audiometric test frequencies in Hz, in test order.
var StandardFrequencies = []int{250, 500, 1000, 2000, 3000, 4000, 6000, 8000}

// TestEars lists the ears in test order. The right ear is finished before the left starts.
var TestEars = []Ear{EarRight, EarLeft}

var ErrAlreadyRecorded = errors.New("result already recorded")

// Trial is a single stimulus presentation.
type Trial struct {
	Frequency  int     `json:"frequency"`
	Ear        Ear     `json:"ear"`
	Level      float64 `json:"level"` // dB HL for tones, volume fraction for speech
	StimulusID uint64  `json:"stimulusId"`
}

// Response records what the subject did with a trial.
// A false alarm is a press while no tone was waiting for an answer; its Trial is empty.
type Response struct {
	Trial        Trial         `json:"trial"`
	Heard        bool          `json:"heard"`
	At           time.Duration `json:"at"` // offset from session start
	ReactionTime time.Duration `json:"reactionTime,omitempty"`
	FalseAlarm   bool          `json:"falseAlarm,omitempty"`
}

// ResponseStats summarizes how consistently the subject answered the tones.
type ResponseStats struct {
	Trials           int           `json:"trials"`
	Detections       int           `json:"detections"`
	Omissions        int           `json:"omissions"`
	FalseAlarms      int           `json:"falseAlarms"`
	DetectionRate    float64       `json:"detectionRate"`
	FalseAlarmRate   float64       `json:"falseAlarmRate"`
	MeanReactionTime time.Duration `json:"meanReactionTime"`
	ReactionTimeSD   time.Duration `json:"reactionTimeSd"`
}

// Threshold is the outcome for one (ear, frequency) pair.
// A skipped pair carries no level and must never be treated as one.
type Threshold struct {
	Level   int
	Skipped bool
}

func LevelThreshold(level int) Threshold {
	return Threshold{Level: level}
}

func SkippedThreshold() Threshold {
	return Threshold{Skipped: true}
}

func (t Threshold) String() string {
	if t.Skipped {
		return SkipToken
	}
	return strconv.Itoa(t.Level)
}

func (t Threshold) MarshalJSON() ([]byte, error) {
	if t.Skipped {
		return []byte(`"skipped"`), nil
	}
	return []byte(strconv.Itoa(t.Level)), nil
}

func (t *Threshold) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "skipped" {
			return fmt.Errorf("invalid threshold %q", s)
		}
		*t = SkippedThreshold()
		return nil
	}
	var level int
	if err := json.Unmarshal(data, &level); err != nil {
		return fmt.Errorf("invalid threshold: %w", err)
	}
	*t = LevelThreshold(level)
	return nil
}

// ToneResults holds the thresholds of a tone-based test, keyed by frequency.
type ToneResults struct {
	Right     map[int]Threshold `json:"right"`
	Left      map[int]Threshold `json:"left"`
	Timestamp time.Time         `json:"timestamp"`
}

func NewToneResults(now time.Time) ToneResults {
	return ToneResults{
		Right:     make(map[int]Threshold),
		Left:      make(map[int]Threshold),
		Timestamp: now,
	}
}

func (r *ToneResults) ear(ear Ear) (map[int]Threshold, error) {
	switch ear {
	case EarRight:
		return r.Right, nil
	case EarLeft:
		return r.Left, nil
	default:
		return nil, fmt.Errorf("no tone results for ear %q", ear)
	}
}

// Set records the threshold for a pair. Each pair is written at most once.
func (r *ToneResults) Set(ear Ear, frequency int, t Threshold) error {
	m, err := r.ear(ear)
	if err != nil {
		return err
	}
	if _, ok := m[frequency]; ok {
		return fmt.Errorf("%s ear %d Hz: %w", ear, frequency, ErrAlreadyRecorded)
	}
	m[frequency] = t
	return nil
}

func (r ToneResults) Get(ear Ear, frequency int) (Threshold, bool) {
	m, err := r.ear(ear)
	if err != nil {
		return Threshold{}, false
	}
	t, ok := m[frequency]
	return t, ok
}

// Complete reports whether every standard pair has a result.
func (r ToneResults) Complete() bool {
	for _, ear := range TestEars {
		for _, f := range StandardFrequencies {
			if _, ok := r.Get(ear, f); !ok {
				return false
			}
		}
	}
	return true
}
