package procedure

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"go.uber.org/zap/zaptest"

	"hearing-go/internal/models"
)

func testScenarios(t *testing.T) []models.Scenario {
	t.Helper()
	scenarios, err := models.LoadScenarios("")
	if err != nil {
		t.Fatalf("LoadScenarios: %v", err)
	}
	return scenarios
}

// gameSubject acts once per round when the tiles are first shown.
func gameSubject(g **ForcedChoice, act func(g *ForcedChoice)) func(Progress) {
	last := -1
	return func(p Progress) {
		if p.Phase != PhaseChoosing {
			return
		}
		key := p.Pair*1000 + p.Trial
		if key == last {
			return
		}
		last = key
		act(*g)
	}
}

func newGame(t *testing.T, dev *fakeDevice, act func(g *ForcedChoice)) *ForcedChoice {
	var g *ForcedChoice
	g = NewForcedChoice(zaptest.NewLogger(t), dev, ForcedChoiceOptions{
		Timing:      fastTiming(),
		Rand:        fixedRand{},
		Ears:        []models.Ear{models.EarRight},
		Frequencies: []int{1000},
		Scenarios:   testScenarios(t),
		OnProgress:  gameSubject(&g, act),
	})
	return g
}

func TestForcedChoiceAlwaysCorrect(t *testing.T) {
	dev := &fakeDevice{}
	g := newGame(t, dev, func(g *ForcedChoice) {
		g.Probe(0)
		g.Confirm(0)
	})

	res, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if th, _ := res.Tone.Get(models.EarRight, 1000); th != models.LevelThreshold(-10) {
		t.Fatalf("threshold = %s, want -10", th)
	}
	if n := len(dev.plays()); n != 7 {
		t.Errorf("plays = %d, want 7", n)
	}
	if c := res.Matrix.Cell(models.EarRight, 1000, -10); c != models.CellSuccess {
		t.Errorf("matrix cell = %s, want success", c)
	}
	if c := res.Matrix.Cell(models.EarRight, 1000, 100); c != models.CellUnknown {
		t.Errorf("untested cell = %s, want unknown", c)
	}
}

func TestForcedChoiceAlwaysWrong(t *testing.T) {
	dev := &fakeDevice{}
	g := newGame(t, dev, func(g *ForcedChoice) {
		g.Probe(1)
		g.Confirm(2)
	})

	res, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if th, _ := res.Tone.Get(models.EarRight, 1000); th != models.LevelThreshold(80) {
		t.Fatalf("threshold = %s, want 80", th)
	}
	if n := len(dev.plays()); n != 0 {
		t.Errorf("decoy probes played %d tones", n)
	}
	if c := res.Matrix.Cell(models.EarRight, 1000, 40); c != models.CellFail {
		t.Errorf("matrix cell = %s, want fail", c)
	}
}

func TestForcedChoiceDontKnow(t *testing.T) {
	dev := &fakeDevice{}
	rounds := 0
	g := newGame(t, dev, func(g *ForcedChoice) {
		rounds++
		g.Confirm(0) // ignored without a probe
		g.DontKnow()
	})

	res, err := g.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if th, _ := res.Tone.Get(models.EarRight, 1000); th != models.LevelThreshold(100) {
		t.Fatalf("threshold = %s, want 100", th)
	}
	if rounds != 3 {
		t.Errorf("rounds = %d, want 3", rounds)
	}
}

func TestForcedChoiceNeedsScenarios(t *testing.T) {
	g := NewForcedChoice(zaptest.NewLogger(t), &fakeDevice{}, ForcedChoiceOptions{Timing: fastTiming()})
	if _, err := g.Run(context.Background()); !errors.Is(err, ErrNoScenarios) {
		t.Fatalf("err = %v, want ErrNoScenarios", err)
	}
}

func TestNewRound(t *testing.T) {
	scenarios := testScenarios(t)
	g := NewForcedChoice(zaptest.NewLogger(t), &fakeDevice{}, ForcedChoiceOptions{
		Rand:      rand.New(rand.NewSource(1)),
		Scenarios: scenarios,
	})

	counts := make([]int, models.OptionsPerScene)
	for i := 0; i < 600; i++ {
		r := g.newRound()
		if want := scenarios[i%len(scenarios)].ID; r.scenario.ID != want {
			t.Fatalf("round %d scenario = %s, want %s", i, r.scenario.ID, want)
		}
		if r.correct < 0 || r.correct >= models.OptionsPerScene {
			t.Fatalf("correct tile %d out of range", r.correct)
		}
		counts[r.correct]++

		seen := map[string]bool{}
		for _, tile := range r.tiles {
			seen[tile.ID] = true
		}
		for _, opt := range r.scenario.Options {
			if !seen[opt.ID] {
				t.Fatalf("round %d lost option %s", i, opt.ID)
			}
		}
	}
	for tile, n := range counts {
		if n < 120 {
			t.Errorf("tile %d correct %d times in 600 rounds", tile, n)
		}
	}
}
