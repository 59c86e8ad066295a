// Package staircase implements the adaptive level search shared by the
// clinical pure-tone test and the forced-choice game.
package staircase

import "hearing-go/internal/models"

// CeilingPolicy decides what happens when a negative response would step
// above the ceiling.
type CeilingPolicy int

const (
	// Finalize ends the search with the ceiling as the result.
	Finalize CeilingPolicy = iota
	// Clamp keeps presenting at the ceiling.
	Clamp
)

// Reason says why a search ended. ReasonFallback is a result the rule picked
// without meeting its convergence condition.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonConverged Reason = "converged"
	ReasonFallback  Reason = "fallback"
	ReasonCeiling   Reason = "ceiling"
	ReasonMaxMisses Reason = "max-misses"
	ReasonGaveUp    Reason = "gave-up"
)

// Observation is one recorded response.
type Observation struct {
	Level    int
	Positive bool
}

// Config parameterizes a staircase. Zero MaxMisses or MaxEscalations means no limit.
type Config struct {
	Start          int
	Floor          int
	Ceiling        int
	StepDown       int
	StepUp         int
	EscalateStep   int
	CeilingPolicy  CeilingPolicy
	MaxMisses      int
	MaxEscalations int
	// AscendingOnly records positives only when they follow a negative,
	// or when the level is already at the floor.
	AscendingOnly bool
	Rule          Rule
}

// HughsonWestlake is the clinical 10-down 5-up procedure.
func HughsonWestlake() Config {
	return Config{
		Start:         models.StartLevel,
		Floor:         models.MinLevel,
		Ceiling:       models.MaxLevel,
		StepDown:      10,
		StepUp:        5,
		CeilingPolicy: Finalize,
		AscendingOnly: true,
		Rule:          LowestLevel{Min: 2, FallbackAfter: 6},
	}
}

// ForcedChoice is the game variant: two correct answers at one level end the search.
func ForcedChoice() Config {
	return Config{
		Start:          models.StartLevel,
		Floor:          models.MinLevel,
		Ceiling:        models.MaxLevel,
		StepDown:       10,
		StepUp:         5,
		EscalateStep:   10,
		CeilingPolicy:  Clamp,
		MaxMisses:      8,
		MaxEscalations: 3,
		Rule:           SameLevel{Min: 2},
	}
}

// Outcome reports the state after a response. Level is the next level to
// present when Done is false.
type Outcome struct {
	Level     int
	Done      bool
	Threshold int
	Reason    Reason
}

// Staircase holds the search state for one (ear, frequency) pair.
// It is not safe for concurrent use.
type Staircase struct {
	cfg         Config
	level       int
	ascending   bool
	history     []Observation
	trials      int
	misses      int
	escalations int
	done        bool
	result      int
	reason      Reason
}

func New(cfg Config) *Staircase {
	if cfg.Rule == nil {
		cfg.Rule = LowestLevel{Min: 2}
	}
	if cfg.EscalateStep == 0 {
		cfg.EscalateStep = cfg.StepUp
	}
	return &Staircase{cfg: cfg, level: clamp(cfg.Start, cfg.Floor, cfg.Ceiling)}
}

func (s *Staircase) Level() int { return s.level }

func (s *Staircase) Done() bool { return s.done }

func (s *Staircase) Trials() int { return s.trials }

// Result returns the threshold once the search is done.
func (s *Staircase) Result() (int, Reason, bool) {
	return s.result, s.reason, s.done
}

// History returns a copy of the recorded observations.
func (s *Staircase) History() []Observation {
	out := make([]Observation, len(s.history))
	copy(out, s.history)
	return out
}

// Respond applies a positive (heard, correct) or negative response at the current level.
func (s *Staircase) Respond(positive bool) Outcome {
	if s.done {
		return s.outcome()
	}
	s.trials++
	if positive {
		s.positive()
	} else {
		s.negative()
	}
	return s.outcome()
}

func (s *Staircase) positive() {
	if !s.cfg.AscendingOnly || s.ascending || s.level == s.cfg.Floor {
		s.history = append(s.history, Observation{Level: s.level, Positive: true})
		if t, reason, ok := s.cfg.Rule.Threshold(s.history, s.level); ok {
			s.finish(t, reason)
			return
		}
	}
	s.level = max(s.cfg.Floor, s.level-s.cfg.StepDown)
	s.ascending = false
}

func (s *Staircase) negative() {
	s.history = append(s.history, Observation{Level: s.level})
	next := s.level + s.cfg.StepUp
	if next > s.cfg.Ceiling {
		if s.cfg.CeilingPolicy == Finalize {
			s.finish(s.cfg.Ceiling, ReasonCeiling)
			return
		}
		next = s.cfg.Ceiling
	}
	s.level = next
	s.ascending = true
	if s.cfg.MaxMisses > 0 {
		s.misses++
		if s.misses >= s.cfg.MaxMisses {
			s.finish(s.level, ReasonMaxMisses)
		}
	}
}

// Escalate handles a "don't know": it counts as a negative response and
// raises the level by the escalation step. It counts toward MaxMisses too.
func (s *Staircase) Escalate() Outcome {
	if s.done {
		return s.outcome()
	}
	s.trials++
	s.history = append(s.history, Observation{Level: s.level})
	s.escalations++
	s.misses++
	if (s.cfg.MaxEscalations > 0 && s.escalations >= s.cfg.MaxEscalations) || s.level >= s.cfg.Ceiling {
		s.finish(s.cfg.Ceiling, ReasonGaveUp)
		return s.outcome()
	}
	s.level = min(s.cfg.Ceiling, s.level+s.cfg.EscalateStep)
	s.ascending = true
	if s.cfg.MaxMisses > 0 && s.misses >= s.cfg.MaxMisses {
		s.finish(s.level, ReasonMaxMisses)
	}
	return s.outcome()
}

func (s *Staircase) finish(threshold int, reason Reason) {
	s.done = true
	s.result = clamp(threshold, s.cfg.Floor, s.cfg.Ceiling)
	s.reason = reason
}

func (s *Staircase) outcome() Outcome {
	return Outcome{
		Level:     s.level,
		Done:      s.done,
		Threshold: s.result,
		Reason:    s.reason,
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
