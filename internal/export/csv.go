// Package export writes session results to files the subject can keep.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"hearing-go/internal/models"
)

var ErrNoResults = errors.New("no results to export")

// FileName returns the download name for an export made on day.
func FileName(day time.Time, ext string) string {
	return fmt.Sprintf("hearing-test-%s.%s", day.Format("2006-01-02"), ext)
}

// WriteCSV writes one section per completed test. Skipped pairs are written as SKIP.
func WriteCSV(w io.Writer, b models.ResultsBundle) error {
	if b.Empty() {
		return ErrNoResults
	}
	cw := csv.NewWriter(w)
	// sections are separated by a blank line
	sep := false
	section := func() {
		if sep {
			cw.Write(nil)
		}
		sep = true
	}

	if b.PureTone != nil {
		section()
		writeTone(cw, "Pure Tone Audiogram", *b.PureTone)
	}
	if b.Game != nil {
		section()
		writeTone(cw, "Game Mode Audiogram", b.Game.Tone)
	}
	if b.Speech != nil {
		section()
		writeSpeech(cw, *b.Speech)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

func writeTone(cw *csv.Writer, title string, r models.ToneResults) {
	cw.Write([]string{title})
	cw.Write([]string{"Frequency (Hz)", "Right Ear (dB HL)", "Left Ear (dB HL)"})
	for _, f := range models.StandardFrequencies {
		cw.Write([]string{strconv.Itoa(f), cell(r, models.EarRight, f), cell(r, models.EarLeft, f)})
	}
}

// cell renders a pair's result. Untested pairs read as skipped.
func cell(r models.ToneResults, ear models.Ear, f int) string {
	th, ok := r.Get(ear, f)
	if !ok {
		return models.SkipToken
	}
	return th.String()
}

func writeSpeech(cw *csv.Writer, r models.SpeechResults) {
	cw.Write([]string{"Speech Recognition Test"})
	cw.Write([]string{"Speech Recognition Threshold", percent(r.Threshold) + "%"})
	cw.Write(nil)
	cw.Write([]string{"Volume Level (%)", "Correct", "Total", "Accuracy (%)"})
	for _, v := range r.Volumes() {
		st := r.ByVolume[v]
		cw.Write([]string{
			percent(v),
			strconv.Itoa(st.Correct),
			strconv.Itoa(st.Total),
			strconv.FormatFloat(st.Accuracy()*100, 'f', 1, 64),
		})
	}
}

// percent prints a volume fraction as a percentage to one decimal at most.
func percent(volume float64) string {
	return strconv.FormatFloat(math.Round(volume*1000)/10, 'f', -1, 64)
}
