package models

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestThresholdJSON(t *testing.T) {
	res := NewToneResults(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	if err := res.Set(EarRight, 1000, LevelThreshold(25)); err != nil {
		t.Fatal(err)
	}
	if err := res.Set(EarLeft, 4000, SkippedThreshold()); err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	if !strings.Contains(s, `"1000":25`) || !strings.Contains(s, `"4000":"skipped"`) {
		t.Fatalf("unexpected JSON %s", s)
	}

	var back ToneResults
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if th, _ := back.Get(EarLeft, 4000); !th.Skipped {
		t.Errorf("left 4000 = %s, want skipped", th)
	}
	if th, _ := back.Get(EarRight, 1000); th != LevelThreshold(25) {
		t.Errorf("right 1000 = %s, want 25", th)
	}

	var bad Threshold
	if err := json.Unmarshal([]byte(`"loud"`), &bad); err == nil {
		t.Error("expected error for unknown threshold string")
	}
}

func TestThresholdString(t *testing.T) {
	if s := SkippedThreshold().String(); s != SkipToken {
		t.Errorf("skipped = %q", s)
	}
	if s := LevelThreshold(-10).String(); s != "-10" {
		t.Errorf("level = %q", s)
	}
}

func TestToneResultsWriteOnce(t *testing.T) {
	res := NewToneResults(time.Now())
	if err := res.Set(EarRight, 500, LevelThreshold(10)); err != nil {
		t.Fatal(err)
	}
	if err := res.Set(EarRight, 500, LevelThreshold(20)); !errors.Is(err, ErrAlreadyRecorded) {
		t.Fatalf("err = %v, want ErrAlreadyRecorded", err)
	}
	if err := res.Set(EarBoth, 500, LevelThreshold(20)); err == nil {
		t.Fatal("expected error for ear without results")
	}
	if res.Complete() {
		t.Fatal("one pair must not complete the results")
	}
	for _, ear := range TestEars {
		for _, f := range StandardFrequencies {
			_ = res.Set(ear, f, LevelThreshold(0))
		}
	}
	if !res.Complete() {
		t.Fatal("expected complete results")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
		err  bool
	}{
		{"puretone", ModePureTone, false},
		{" Speech ", ModeSpeech, false},
		{"BOTH", ModeBoth, false},
		{"gamemode", ModeGame, false},
		{"game", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.err {
			if !errors.Is(err, ErrInvalidMode) {
				t.Errorf("ParseMode(%q) err = %v, want ErrInvalidMode", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.in, got, err)
		}
	}
	if !ModeBoth.NeedsSpeech() || ModeGame.NeedsSpeech() {
		t.Error("NeedsSpeech mismatch")
	}
}

func TestResultsBundle(t *testing.T) {
	b := ResultsBundle{Mode: ModeBoth}
	if !b.Empty() {
		t.Fatal("new bundle must be empty")
	}
	tone := NewToneResults(time.Now())
	if err := b.SetPureTone(tone); err != nil {
		t.Fatal(err)
	}
	if err := b.SetPureTone(tone); !errors.Is(err, ErrAlreadyRecorded) {
		t.Fatalf("err = %v, want ErrAlreadyRecorded", err)
	}
	if err := b.SetSpeech(NewSpeechResults(time.Now())); err != nil {
		t.Fatal(err)
	}
	if _, ok := b.Audiogram(); !ok {
		t.Error("expected an audiogram")
	}
	if err := b.SetReliability(ResponseStats{Trials: 16, Detections: 12}); err != nil {
		t.Fatal(err)
	}
	if err := b.SetReliability(ResponseStats{}); !errors.Is(err, ErrAlreadyRecorded) {
		t.Fatalf("err = %v, want ErrAlreadyRecorded", err)
	}
	if b.Reliability.Trials != 16 {
		t.Errorf("reliability overwritten: %+v", b.Reliability)
	}

	g := ResultsBundle{Mode: ModeGame}
	if _, ok := g.Audiogram(); ok {
		t.Error("empty bundle has no audiogram")
	}
	if err := g.SetGame(GameResults{Tone: NewToneResults(time.Now()), Matrix: NewTestMatrix()}); err != nil {
		t.Fatal(err)
	}
	if _, ok := g.Audiogram(); !ok {
		t.Error("game tone results must chart")
	}
}

func TestSpeechResultsRecord(t *testing.T) {
	res := NewSpeechResults(time.Now())
	res.Record(SpeechTrialRecord{Volume: 0.4, Word: "a", Chosen: "a", Correct: true})
	res.Record(SpeechTrialRecord{Volume: 0.4, Word: "b", Chosen: "c"})
	res.Record(SpeechTrialRecord{Volume: 1.0, Word: "d", Chosen: "d", Correct: true})

	if got := res.ByVolume[0.4].Accuracy(); got != 0.5 {
		t.Errorf("accuracy = %v, want 0.5", got)
	}
	vols := res.Volumes()
	if len(vols) != 2 || vols[0] != 1.0 || vols[1] != 0.4 {
		t.Errorf("volumes = %v, want [1 0.4]", vols)
	}
	if (VolumeStats{}).Accuracy() != 0 {
		t.Error("empty stats must report 0")
	}
}

func TestTestMatrix(t *testing.T) {
	m := NewTestMatrix()
	if c := m.Cell(EarRight, 1000, 40); c != CellUnknown {
		t.Fatalf("cell = %s, want unknown", c)
	}
	m.Mark(EarRight, 1000, 45, CellSuccess)
	if c := m.Cell(EarRight, 1000, 45); c != CellSuccess {
		t.Fatalf("cell = %s, want success", c)
	}

	levels := m.Levels()
	if len(levels) != len(MatrixLevels)+1 {
		t.Fatalf("levels = %v", levels)
	}
	for i := 1; i < len(levels); i++ {
		if levels[i] <= levels[i-1] {
			t.Fatalf("levels not ascending: %v", levels)
		}
	}

	c := m.Clone()
	m.Mark(EarRight, 1000, 45, CellFail)
	if c.Cell(EarRight, 1000, 45) != CellSuccess {
		t.Error("clone shares state with original")
	}
	if _, err := json.Marshal(m); err != nil {
		t.Fatal(err)
	}
}

func TestLoadEmbeddedAssets(t *testing.T) {
	scenarios, err := LoadScenarios("")
	if err != nil {
		t.Fatalf("LoadScenarios: %v", err)
	}
	if len(scenarios) != 6 {
		t.Errorf("scenarios = %d, want 6", len(scenarios))
	}

	lists, err := LoadWordLists("")
	if err != nil {
		t.Fatalf("LoadWordLists: %v", err)
	}
	for _, lang := range []string{"en", "he"} {
		wl, ok := lists[lang]
		if !ok {
			t.Fatalf("missing %s word list", lang)
		}
		if len(wl.Words) < len(SpeechVolumes)*WordsPerVolume {
			t.Errorf("%s has %d words", lang, len(wl.Words))
		}
		if wl.Voice == "" {
			t.Errorf("%s has no voice", lang)
		}
	}
}

func TestLoadWordListsDedupes(t *testing.T) {
	words := make([]string, 0, 41)
	for i := 0; i < 39; i++ {
		words = append(words, "w"+strings.Repeat("x", i))
	}
	words = append(words, "w", "w")

	path := filepath.Join(t.TempDir(), "words.yaml")
	content := "languages:\n  xx:\n    voice: xx\n    words: [" + strings.Join(words, ", ") + "]\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadWordLists(path)
	if !errors.Is(err, ErrNotEnoughWords) {
		t.Fatalf("err = %v, want ErrNotEnoughWords", err)
	}
}

func TestLoadScenariosRejectsBadScene(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	content := "scenarios:\n  - id: broken\n    options:\n      - { id: a }\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadScenarios(path); err == nil {
		t.Fatal("expected error for a scene with one option")
	}
}
