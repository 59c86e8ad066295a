package models

import (
	"errors"
	"fmt"
	"strings"
)

// Mode is a test selection.
type Mode string

const (
	ModePureTone Mode = "puretone"
	ModeSpeech   Mode = "speech"
	ModeBoth     Mode = "both"
	ModeGame     Mode = "gamemode"
)

// Modes lists every selectable mode in menu order.
var Modes = []Mode{ModePureTone, ModeSpeech, ModeBoth, ModeGame}

var ErrInvalidMode = errors.New("invalid test mode")

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// NeedsSpeech reports whether the mode includes the speech test.
func (m Mode) NeedsSpeech() bool {
	return m == ModeSpeech || m == ModeBoth
}

// ResultsBundle aggregates the results of every test that ran in a session.
// Each part is written once, when its test completes.
type ResultsBundle struct {
	Mode     Mode           `json:"mode"`
	PureTone *ToneResults   `json:"puretone,omitempty"`
	Game     *GameResults   `json:"gamemode,omitempty"`
	Speech   *SpeechResults `json:"speech,omitempty"`

	// Reliability describes the pure tone responses.
	Reliability *ResponseStats `json:"reliability,omitempty"`
}

func (b *ResultsBundle) SetPureTone(r ToneResults) error {
	if b.PureTone != nil {
		return fmt.Errorf("pure tone: %w", ErrAlreadyRecorded)
	}
	b.PureTone = &r
	return nil
}

func (b *ResultsBundle) SetGame(r GameResults) error {
	if b.Game != nil {
		return fmt.Errorf("game: %w", ErrAlreadyRecorded)
	}
	b.Game = &r
	return nil
}

func (b *ResultsBundle) SetSpeech(r SpeechResults) error {
	if b.Speech != nil {
		return fmt.Errorf("speech: %w", ErrAlreadyRecorded)
	}
	b.Speech = &r
	return nil
}

func (b *ResultsBundle) SetReliability(st ResponseStats) error {
	if b.Reliability != nil {
		return fmt.Errorf("reliability: %w", ErrAlreadyRecorded)
	}
	b.Reliability = &st
	return nil
}

// Audiogram returns the tone results to chart, preferring the clinical test.
func (b ResultsBundle) Audiogram() (ToneResults, bool) {
	if b.PureTone != nil {
		return *b.PureTone, true
	}
	if b.Game != nil {
		return b.Game.Tone, true
	}
	return ToneResults{}, false
}

func (b ResultsBundle) Empty() bool {
	return b.PureTone == nil && b.Game == nil && b.Speech == nil
}
