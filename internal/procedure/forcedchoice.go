package procedure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hearing-go/internal/audio"
	"hearing-go/internal/models"
	"hearing-go/internal/staircase"
)

const ProcedureGame = "gamemode"

// Feedback shown after a game answer.
const (
	FeedbackCorrect   = "correct"
	FeedbackIncorrect = "incorrect"
	FeedbackLouder    = "louder"
	FeedbackSkipping  = "skipping"
)

var ErrNoScenarios = errors.New("no game scenarios")

type gameEventKind int

const (
	gameProbe gameEventKind = iota
	gameConfirm
	gameDontKnow
)

type gameEvent struct {
	kind gameEventKind
	tile int
}

// ForcedChoiceOptions configures the game. Zero values take the defaults.
type ForcedChoiceOptions struct {
	Timing      Timing
	Rand        Rand
	Ears        []models.Ear
	Frequencies []int
	Scenarios   []models.Scenario
	Staircase   *staircase.Config
	OnProgress  func(Progress)
}

// ForcedChoice is the three-alternative game: one of three tiles hides the
// tone and the subject has to find it.
type ForcedChoice struct {
	log      *zap.Logger
	device   TonePlayer
	opts     ForcedChoiceOptions
	cfg      staircase.Config
	events   chan gameEvent
	matrix   *models.TestMatrix
	scenario int
}

// round is one scene presentation.
type round struct {
	scenario models.Scenario
	tiles    []models.ScenarioOption
	correct  int
}

func NewForcedChoice(log *zap.Logger, device TonePlayer, opts ForcedChoiceOptions) *ForcedChoice {
	if opts.Timing == (Timing{}) {
		opts.Timing = DefaultTiming()
	}
	if opts.Rand == nil {
		opts.Rand = newRand()
	}
	if len(opts.Ears) == 0 {
		opts.Ears = models.TestEars
	}
	if len(opts.Frequencies) == 0 {
		opts.Frequencies = models.StandardFrequencies
	}
	cfg := staircase.ForcedChoice()
	if opts.Staircase != nil {
		cfg = *opts.Staircase
	}
	return &ForcedChoice{
		log:    log.Named(ProcedureGame),
		device: device,
		opts:   opts,
		cfg:    cfg,
		events: make(chan gameEvent, eventQueue),
	}
}

// Probe listens to a tile. Only the hiding tile plays the tone; the others
// stay silent for as long. Probes during another probe are ignored.
func (g *ForcedChoice) Probe(tile int) bool { return post(g.events, gameEvent{kind: gameProbe, tile: tile}) }

// Confirm picks a tile as the answer. It needs at least one probe first.
func (g *ForcedChoice) Confirm(tile int) bool {
	return post(g.events, gameEvent{kind: gameConfirm, tile: tile})
}

// DontKnow asks for a louder tone.
func (g *ForcedChoice) DontKnow() bool { return post(g.events, gameEvent{kind: gameDontKnow}) }

// Run plays rounds until every pair has a threshold or ctx is done.
func (g *ForcedChoice) Run(ctx context.Context) (models.GameResults, error) {
	defer g.device.Stop()

	if len(g.opts.Scenarios) == 0 {
		return models.GameResults{}, ErrNoScenarios
	}
	for _, s := range g.opts.Scenarios {
		if len(s.Options) != models.OptionsPerScene {
			return models.GameResults{}, fmt.Errorf("scenario %q has %d options", s.ID, len(s.Options))
		}
	}

	g.matrix = models.NewTestMatrix()
	g.scenario = 0
	results := models.GameResults{Tone: models.NewToneResults(time.Now()), Matrix: g.matrix}
	pairs := testOrder(g.opts.Ears, g.opts.Frequencies)
	g.log.Info("Starting game", zap.Int("pairs", len(pairs)), zap.Int("scenarios", len(g.opts.Scenarios)))

	for i, pr := range pairs {
		if i > 0 {
			g.publish(Progress{Phase: PhasePause, Ear: pr.ear, Frequency: pr.frequency, Pair: i, Pairs: len(pairs)})
			if err := wait(ctx, g.opts.Timing.PairPause); err != nil {
				return results, err
			}
		}

		level, err := g.runPair(ctx, pr, i, len(pairs))
		if err != nil {
			return results, err
		}
		if err := results.Tone.Set(pr.ear, pr.frequency, models.LevelThreshold(level)); err != nil {
			return results, err
		}
		g.log.Info("Threshold recorded",
			zap.String("ear", string(pr.ear)),
			zap.Int("frequency", pr.frequency),
			zap.Int("threshold", level))
	}

	g.publish(Progress{Phase: PhaseDone, Pair: len(pairs), Pairs: len(pairs)})
	return results, nil
}

// newRound rotates to the next scene, hides the tone behind a uniformly
// chosen tile and shuffles the tile artwork independently.
func (g *ForcedChoice) newRound() round {
	sc := g.opts.Scenarios[g.scenario%len(g.opts.Scenarios)]
	g.scenario++

	tiles := make([]models.ScenarioOption, len(sc.Options))
	copy(tiles, sc.Options)
	g.opts.Rand.Shuffle(len(tiles), func(i, j int) { tiles[i], tiles[j] = tiles[j], tiles[i] })

	return round{scenario: sc, tiles: tiles, correct: g.opts.Rand.Intn(models.OptionsPerScene)}
}

func (g *ForcedChoice) runPair(ctx context.Context, pr pair, index, total int) (int, error) {
	sc := staircase.New(g.cfg)
	drain(g.events)

	for trial := 1; ; trial++ {
		r := g.newRound()
		progress := Progress{
			Phase:     PhaseChoosing,
			Ear:       pr.ear,
			Frequency: pr.frequency,
			Level:     float64(sc.Level()),
			Pair:      index,
			Pairs:     total,
			Trial:     trial,
			Scenario:  r.scenario.ID,
			Prompt:    r.scenario.Instruction,
			Tiles:     r.tiles,
		}
		g.publish(progress)

		out, feedback, err := g.play(ctx, sc, pr, r, progress)
		if err != nil {
			return 0, err
		}

		progress.Phase = PhaseFeedback
		progress.Feedback = feedback
		progress.Matrix = g.matrix.Clone()
		g.publish(progress)
		if err := wait(ctx, g.opts.Timing.FeedbackPause); err != nil {
			return 0, err
		}
		drain(g.events)

		if out.Done {
			return out.Threshold, nil
		}
	}
}

// play handles probes until the subject answers or gives up on the round.
func (g *ForcedChoice) play(ctx context.Context, sc *staircase.Staircase, pr pair, r round, progress Progress) (staircase.Outcome, string, error) {
	var (
		probeDone <-chan time.Time
		probeTmr  *time.Timer
		probed    bool
	)
	stopProbe := func() {
		if probeTmr != nil {
			probeTmr.Stop()
			probeTmr = nil
		}
		probeDone = nil
		g.device.Stop()
	}
	defer stopProbe()

	level := sc.Level()
	for {
		select {
		case <-ctx.Done():
			return staircase.Outcome{}, "", ctx.Err()

		case <-probeDone:
			probeTmr = nil
			probeDone = nil
			progress.Phase = PhaseChoosing
			g.publish(progress)

		case ev := <-g.events:
			switch ev.kind {
			case gameProbe:
				if probeDone != nil || ev.tile < 0 || ev.tile >= models.OptionsPerScene {
					continue
				}
				if ev.tile == r.correct {
					if err := g.device.Play(audio.Stimulus{
						FrequencyHz: float64(pr.frequency),
						Level:       float64(level),
						Channel:     pr.ear,
						Duration:    g.opts.Timing.ToneDuration,
					}); err != nil {
						return staircase.Outcome{}, "", fmt.Errorf("failed to present tone: %w", err)
					}
				}
				probed = true
				probeTmr = time.NewTimer(g.opts.Timing.probeLength())
				probeDone = probeTmr.C
				progress.Phase = PhaseProbing
				g.publish(progress)

			case gameConfirm:
				if !probed || ev.tile < 0 || ev.tile >= models.OptionsPerScene {
					continue
				}
				stopProbe()
				correct := ev.tile == r.correct
				state, feedback := models.CellFail, FeedbackIncorrect
				if correct {
					state, feedback = models.CellSuccess, FeedbackCorrect
				}
				g.matrix.Mark(pr.ear, pr.frequency, level, state)
				g.log.Debug("Answer", zap.Int("level", level), zap.Bool("correct", correct), zap.String("scenario", r.scenario.ID))
				return sc.Respond(correct), feedback, nil

			case gameDontKnow:
				if probeDone != nil {
					continue
				}
				g.matrix.Mark(pr.ear, pr.frequency, level, models.CellFail)
				out := sc.Escalate()
				feedback := FeedbackLouder
				if out.Done {
					feedback = FeedbackSkipping
				}
				g.log.Debug("Don't know", zap.Int("level", level), zap.Bool("gave_up", out.Done))
				return out, feedback, nil
			}
		}
	}
}

func (g *ForcedChoice) publish(pr Progress) {
	if g.opts.OnProgress == nil {
		return
	}
	pr.Procedure = ProcedureGame
	g.opts.OnProgress(pr)
}
