package models

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed data/scenarios.yaml
var defaultScenarios []byte

//go:embed data/words.yaml
var defaultWords []byte

// OptionsPerScene is the number of tiles in every game scene.
const OptionsPerScene = 3

var ErrNotEnoughWords = errors.New("not enough words")

// WordList is the speech vocabulary for one language.
type WordList struct {
	Voice       string   `yaml:"voice"`
	Words       []string `yaml:"words"`
	Distractors []string `yaml:"distractors"`
}

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

type wordFile struct {
	Languages map[string]WordList `yaml:"languages"`
}

// readAsset returns the file at path, or the embedded default when path is empty.
func readAsset(path string, fallback []byte) ([]byte, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// LoadScenarios reads the game scenes. An empty path loads the built-in set.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := readAsset(path, defaultScenarios)
	if err != nil {
		return nil, err
	}

	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scenarios YAML: %w", err)
	}
	if len(file.Scenarios) == 0 {
		return nil, errors.New("no scenarios defined")
	}
	for _, s := range file.Scenarios {
		if len(s.Options) != OptionsPerScene {
			return nil, fmt.Errorf("scenario %q has %d options, want %d", s.ID, len(s.Options), OptionsPerScene)
		}
	}
	return file.Scenarios, nil
}

// LoadWordLists reads the speech vocabularies keyed by language code.
// Duplicate words are dropped; every language needs a full test's worth of unique words.
func LoadWordLists(path string) (map[string]WordList, error) {
	data, err := readAsset(path, defaultWords)
	if err != nil {
		return nil, err
	}

	var file wordFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal word list YAML: %w", err)
	}

	need := len(SpeechVolumes) * WordsPerVolume
	lists := make(map[string]WordList, len(file.Languages))
	for lang, wl := range file.Languages {
		wl.Words = dedupe(wl.Words)
		wl.Distractors = dedupe(wl.Distractors)
		if len(wl.Words) < need {
			return nil, fmt.Errorf("language %q has %d unique words, need %d: %w", lang, len(wl.Words), need, ErrNotEnoughWords)
		}
		lists[lang] = wl
	}
	return lists, nil
}

func dedupe(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
