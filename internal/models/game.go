package models

import (
	"encoding/json"
	"sort"
)

// CellState is the display state of one cell of the game test matrix.
type CellState string

const (
	CellUnknown CellState = "unknown"
	CellSuccess CellState = "success"
	CellFail    CellState = "fail"
)

// MatrixLevels are the levels every matrix row is initialised with.
var MatrixLevels = []int{-10, 0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// TestMatrix records the last outcome seen at each (ear, frequency, level).
// It is for display only and never feeds back into threshold decisions.
type TestMatrix struct {
	cells map[Ear]map[int]map[int]CellState
}

func NewTestMatrix() *TestMatrix {
	m := &TestMatrix{cells: make(map[Ear]map[int]map[int]CellState)}
	for _, ear := range TestEars {
		m.cells[ear] = make(map[int]map[int]CellState)
		for _, f := range StandardFrequencies {
			row := make(map[int]CellState, len(MatrixLevels))
			for _, level := range MatrixLevels {
				row[level] = CellUnknown
			}
			m.cells[ear][f] = row
		}
	}
	return m
}

// Mark sets a cell, creating the row or level column when it is not in the defaults.
func (m *TestMatrix) Mark(ear Ear, frequency, level int, state CellState) {
	rows, ok := m.cells[ear]
	if !ok {
		rows = make(map[int]map[int]CellState)
		m.cells[ear] = rows
	}
	row, ok := rows[frequency]
	if !ok {
		row = make(map[int]CellState)
		rows[frequency] = row
	}
	row[level] = state
}

func (m *TestMatrix) Cell(ear Ear, frequency, level int) CellState {
	if s, ok := m.cells[ear][frequency][level]; ok {
		return s
	}
	return CellUnknown
}

// Levels returns every level present in any row, ascending.
func (m *TestMatrix) Levels() []int {
	seen := make(map[int]struct{})
	for _, rows := range m.cells {
		for _, row := range rows {
			for level := range row {
				seen[level] = struct{}{}
			}
		}
	}
	levels := make([]int, 0, len(seen))
	for l := range seen {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	return levels
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (m *TestMatrix) Clone() *TestMatrix {
	c := &TestMatrix{cells: make(map[Ear]map[int]map[int]CellState, len(m.cells))}
	for ear, rows := range m.cells {
		c.cells[ear] = make(map[int]map[int]CellState, len(rows))
		for f, row := range rows {
			cp := make(map[int]CellState, len(row))
			for l, s := range row {
				cp[l] = s
			}
			c.cells[ear][f] = cp
		}
	}
	return c
}

func (m *TestMatrix) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.cells)
}

// GameResults is the outcome of the forced-choice game.
type GameResults struct {
	Tone   ToneResults `json:"tone"`
	Matrix *TestMatrix `json:"matrix"`
}

// Scenario is one themed three-option scene of the game.
type Scenario struct {
	ID             string           `yaml:"id"`
	TitleKey       string           `yaml:"title_key"`
	InstructionKey string           `yaml:"instruction_key"`
	Instruction    string           `yaml:"instruction"`
	Options        []ScenarioOption `yaml:"options"`
}

// ScenarioOption is one tile of a scene.
type ScenarioOption struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
	Color string `yaml:"color"`
}
