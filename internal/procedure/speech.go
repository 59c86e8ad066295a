package procedure

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"hearing-go/internal/models"
)

const (
	ProcedureSpeech = "speech"

	// OptionsPerWord is the number of answer choices per speech trial.
	OptionsPerWord = 4
)

var (
	ErrUnknownLanguage = errors.New("no word list for language")
	ErrNotEnoughWords  = models.ErrNotEnoughWords
)

// VoiceMismatchError reports that no voice can speak the test language.
// The test may still run when the subject consents.
type VoiceMismatchError struct {
	Language string
	Voice    string
}

func (e *VoiceMismatchError) Error() string {
	return fmt.Sprintf("no speech voice %q available for language %q", e.Voice, e.Language)
}

type speechEventKind int

const (
	speechAnswer speechEventKind = iota
	speechReplay
)

type speechEvent struct {
	kind   speechEventKind
	option int
}

// SpeechOptions configures a speech reception test. Zero values take the defaults.
type SpeechOptions struct {
	Timing             Timing
	Rand               Rand
	Language           string
	WordLists          map[string]models.WordList
	Volumes            []float64
	WordsPerVolume     int
	AllowVoiceMismatch bool
	OnProgress         func(Progress)
}

// Speech presents words at decreasing volumes and asks the subject to pick
// each one out of four choices.
type Speech struct {
	log     *zap.Logger
	speaker WordSpeaker
	opts    SpeechOptions
	events  chan speechEvent
}

func NewSpeech(log *zap.Logger, speaker WordSpeaker, opts SpeechOptions) *Speech {
	if opts.Timing == (Timing{}) {
		opts.Timing = DefaultTiming()
	}
	if opts.Rand == nil {
		opts.Rand = newRand()
	}
	if len(opts.Volumes) == 0 {
		opts.Volumes = models.SpeechVolumes
	}
	if opts.WordsPerVolume <= 0 {
		opts.WordsPerVolume = models.WordsPerVolume
	}
	return &Speech{
		log:     log.Named(ProcedureSpeech),
		speaker: speaker,
		opts:    opts,
		events:  make(chan speechEvent, eventQueue),
	}
}

// Answer picks one of the four displayed choices.
func (s *Speech) Answer(option int) bool {
	return post(s.events, speechEvent{kind: speechAnswer, option: option})
}

// Replay speaks the current word again.
func (s *Speech) Replay() bool { return post(s.events, speechEvent{kind: speechReplay}) }

// Run presents every trial and derives the reception threshold.
func (s *Speech) Run(ctx context.Context) (models.SpeechResults, error) {
	defer s.speaker.Stop()

	wl, ok := s.opts.WordLists[s.opts.Language]
	if !ok {
		return models.SpeechResults{}, fmt.Errorf("%w %q", ErrUnknownLanguage, s.opts.Language)
	}
	total := len(s.opts.Volumes) * s.opts.WordsPerVolume
	if len(wl.Words) < total {
		return models.SpeechResults{}, fmt.Errorf("%d words for %d trials: %w", len(wl.Words), total, ErrNotEnoughWords)
	}
	voice := wl.Voice
	if voice == "" {
		voice = s.opts.Language
	}
	if !s.speaker.Supports(voice) {
		if !s.opts.AllowVoiceMismatch {
			return models.SpeechResults{}, &VoiceMismatchError{Language: s.opts.Language, Voice: voice}
		}
		s.log.Warn("Running speech test without a matching voice", zap.String("language", s.opts.Language))
	}

	vocabulary := make([]string, len(wl.Words))
	copy(vocabulary, wl.Words)
	s.opts.Rand.Shuffle(len(vocabulary), func(i, j int) { vocabulary[i], vocabulary[j] = vocabulary[j], vocabulary[i] })
	pool := append(append([]string{}, wl.Distractors...), wl.Words...)

	results := models.NewSpeechResults(time.Now())
	s.log.Info("Starting speech test", zap.String("language", s.opts.Language), zap.Int("trials", total))
	drain(s.events)

	n := 0
	for _, volume := range s.opts.Volumes {
		for k := 0; k < s.opts.WordsPerVolume; k++ {
			word := vocabulary[n]
			n++
			progress := Progress{
				Procedure: ProcedureSpeech,
				Level:     volume,
				Trial:     n,
				Trials:    total,
				Options:   BuildOptions(s.opts.Rand, word, pool),
			}

			rec, err := s.trial(ctx, word, voice, volume, progress)
			if err != nil {
				return results, err
			}
			results.Record(rec)

			progress.Phase = PhasePause
			s.publish(progress)
			if err := wait(ctx, s.opts.Timing.AnswerPause); err != nil {
				return results, err
			}
		}
	}

	results.Threshold, _ = SpeechThreshold(results.ByVolume)
	s.log.Info("Speech test complete", zap.Float64("threshold", results.Threshold))
	s.publish(Progress{Phase: PhaseDone, Trial: total, Trials: total})
	return results, nil
}

func (s *Speech) trial(ctx context.Context, word, voice string, volume float64, progress Progress) (models.SpeechTrialRecord, error) {
	progress.Phase = PhaseWaiting
	s.publish(progress)
	if err := wait(ctx, s.opts.Timing.WordDelay); err != nil {
		return models.SpeechTrialRecord{}, err
	}

	speak := func() error {
		progress.Phase = PhaseSpeaking
		s.publish(progress)
		if err := s.speaker.Speak(ctx, word, voice, volume); err != nil {
			return fmt.Errorf("failed to speak word: %w", err)
		}
		progress.Phase = PhaseAnswering
		s.publish(progress)
		return nil
	}
	if err := speak(); err != nil {
		return models.SpeechTrialRecord{}, err
	}

	for {
		select {
		case <-ctx.Done():
			return models.SpeechTrialRecord{}, ctx.Err()
		case ev := <-s.events:
			switch ev.kind {
			case speechReplay:
				if err := speak(); err != nil {
					return models.SpeechTrialRecord{}, err
				}
			case speechAnswer:
				if ev.option < 0 || ev.option >= len(progress.Options) {
					continue
				}
				chosen := progress.Options[ev.option]
				rec := models.SpeechTrialRecord{Volume: volume, Word: word, Chosen: chosen, Correct: chosen == word}
				s.log.Debug("Answer", zap.Float64("volume", volume), zap.Bool("correct", rec.Correct))
				return rec, nil
			}
		}
	}
}

// BuildOptions returns the target plus three distinct wrong answers drawn
// from pool, in random order.
func BuildOptions(rng Rand, target string, pool []string) []string {
	seen := map[string]struct{}{target: {}}
	candidates := make([]string, 0, len(pool))
	for _, w := range pool {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		candidates = append(candidates, w)
	}
	rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })

	options := []string{target}
	options = append(options, candidates[:min(OptionsPerWord-1, len(candidates))]...)
	rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	return options
}

// SpeechThreshold scans volumes loudest first and returns the first with at
// least 50% correct. When none qualifies it returns the quietest tested
// volume. It reports false only when nothing was tested.
func SpeechThreshold(byVolume map[float64]*models.VolumeStats) (float64, bool) {
	volumes := models.SortedVolumes(byVolume)
	if len(volumes) == 0 {
		return 0, false
	}
	for _, v := range volumes {
		if stats := byVolume[v]; stats != nil && stats.Total > 0 && stats.Accuracy() >= 0.5 {
			return v, true
		}
	}
	return volumes[len(volumes)-1], true
}

func (s *Speech) publish(pr Progress) {
	if s.opts.OnProgress == nil {
		return
	}
	pr.Procedure = ProcedureSpeech
	s.opts.OnProgress(pr)
}
