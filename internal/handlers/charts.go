package handlers

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"hearing-go/internal/models"
)

const (
	colorRight = "#d32f2f"
	colorLeft  = "#1976d2"
)

// echarts treats this value as a missing point and breaks the line there.
const gap = "-"

func frequencyLabels() []string {
	out := make([]string, len(models.StandardFrequencies))
	for i, f := range models.StandardFrequencies {
		out[i] = strconv.Itoa(f)
	}
	return out
}

// generateAudiogram charts both ears on a dB HL axis with loud levels at the bottom.
// Skipped and untested pairs are gaps and are listed in the axis name.
func generateAudiogram(r models.ToneResults, title string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "category",
			Name: "Frequency (Hz)",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type: "value",
			Name: "dB HL",
			Min:  models.MinLevel,
			Max:  models.MaxLevel,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	labels := frequencyLabels()
	for i, f := range models.StandardFrequencies {
		var skipped []string
		for _, ear := range models.TestEars {
			if th, ok := r.Get(ear, f); ok && th.Skipped {
				skipped = append(skipped, earTitle(ear)[:1])
			}
		}
		if len(skipped) > 0 {
			labels[i] = fmt.Sprintf("%d (SKIP %s)", f, joinEars(skipped))
		}
	}
	line.SetXAxis(labels)

	line.AddSeries("Right", earSeries(r, models.EarRight, "circle"),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorRight}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: 2, Color: colorRight}),
	)
	line.AddSeries("Left", earSeries(r, models.EarLeft, "path://M0,0L10,10M10,0L0,10"),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: colorLeft}),
		charts.WithLineStyleOpts(opts.LineStyle{Width: 2, Color: colorLeft}),
	)
	return line
}

func joinEars(ears []string) string {
	if len(ears) == 2 {
		return ears[0] + "/" + ears[1]
	}
	return ears[0]
}

func earSeries(r models.ToneResults, ear models.Ear, symbol string) []opts.LineData {
	items := make([]opts.LineData, 0, len(models.StandardFrequencies))
	for _, f := range models.StandardFrequencies {
		th, ok := r.Get(ear, f)
		if !ok || th.Skipped {
			items = append(items, opts.LineData{Value: gap})
			continue
		}
		items = append(items, opts.LineData{Value: th.Level, Symbol: symbol, SymbolSize: 12})
	}
	return items
}

var cellValues = map[models.CellState]int{
	models.CellUnknown: 0,
	models.CellFail:    1,
	models.CellSuccess: 2,
}

// generateMatrix shows the game's success and fail cells for one ear.
func generateMatrix(m *models.TestMatrix, ear models.Ear) *charts.HeatMap {
	levels := m.Levels()
	levelLabels := make([]string, len(levels))
	for i, l := range levels {
		levelLabels[i] = strconv.Itoa(l)
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Game responses", Subtitle: earTitle(ear) + " ear"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "Frequency (Hz)"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "dB HL", Data: levelLabels}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(false),
			Min:        0,
			Max:        2,
			InRange:    &opts.VisualMapInRange{Color: []string{"#eeeeee", "#ef9a9a", "#a5d6a7"}},
		}),
	)
	hm.SetXAxis(frequencyLabels())

	items := make([]opts.HeatMapData, 0, len(models.StandardFrequencies)*len(levels))
	for x, f := range models.StandardFrequencies {
		for y, l := range levels {
			items = append(items, opts.HeatMapData{Value: [3]interface{}{x, y, cellValues[m.Cell(ear, f, l)]}})
		}
	}
	hm.AddSeries(earTitle(ear), items)
	return hm
}

func earTitle(ear models.Ear) string {
	if ear == models.EarRight {
		return "Right"
	}
	return "Left"
}

// generateSpeechChart plots accuracy per volume, loudest first.
func generateSpeechChart(r models.SpeechResults) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Speech recognition",
			Subtitle: "Threshold " + percentLabel(r.Threshold),
		}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "Volume"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "Accuracy (%)", Min: 0, Max: 100}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	volumes := r.Volumes()
	labels := make([]string, len(volumes))
	items := make([]opts.BarData, len(volumes))
	for i, v := range volumes {
		labels[i] = percentLabel(v)
		items[i] = opts.BarData{Value: r.ByVolume[v].Accuracy() * 100}
	}
	bar.SetXAxis(labels)
	bar.AddSeries("Accuracy", items)
	return bar
}

func percentLabel(volume float64) string {
	return strconv.FormatFloat(volume*100, 'f', 0, 64) + "%"
}

// chartOptions serializes a chart's options for echarts.setOption.
// With invertY the value axis runs top to bottom, as audiograms are read.
func chartOptions(c interface{ JSON() map[string]interface{} }, invertY bool) (string, error) {
	data, err := json.Marshal(c.JSON())
	if err != nil {
		return "", fmt.Errorf("failed to marshal chart: %w", err)
	}
	if !invertY {
		return string(data), nil
	}

	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("failed to decode chart: %w", err)
	}
	if axes, ok := m["yAxis"].([]interface{}); ok {
		for _, a := range axes {
			if axis, ok := a.(map[string]interface{}); ok {
				axis["inverse"] = true
			}
		}
	}
	data, err = json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chart: %w", err)
	}
	return string(data), nil
}
