package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"hearing-go/internal/models"
)

const (
	chartWidth  = 800
	chartHeight = 560
	marginLeft  = 80
	marginRight = 40
	marginTop   = 60
	marginBot   = 60
	markerSize  = 6
)

var (
	colorBackground = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorGrid       = color.RGBA{0xdd, 0xdd, 0xdd, 0xff}
	colorAxis       = color.RGBA{0x33, 0x33, 0x33, 0xff}
	colorRight      = color.RGBA{0xd3, 0x2f, 0x2f, 0xff}
	colorLeft       = color.RGBA{0x19, 0x76, 0xd2, 0xff}
)

// plot maps audiogram coordinates onto the image. Levels grow downward.
type plot struct {
	img  *image.RGBA
	rect image.Rectangle
}

func plotRect() image.Rectangle {
	return image.Rect(marginLeft, marginTop, chartWidth-marginRight, chartHeight-marginBot)
}

func (p plot) x(i int) int {
	step := p.rect.Dx() / (len(models.StandardFrequencies) - 1)
	return p.rect.Min.X + i*step
}

func (p plot) y(level int) int {
	span := models.MaxLevel - models.MinLevel
	return p.rect.Min.Y + (level-models.MinLevel)*p.rect.Dy()/span
}

// WriteAudiogramPNG renders tone results as a conventional audiogram.
// The right ear is drawn with red circles, the left with blue crosses.
func WriteAudiogramPNG(w io.Writer, title string, r models.ToneResults) error {
	img := image.NewRGBA(image.Rect(0, 0, chartWidth, chartHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(colorBackground), image.Point{}, draw.Src)

	p := plot{img: img, rect: plotRect()}
	p.grid()
	text(img, chartWidth/2-len(title)*7/2, 30, title, colorAxis)

	p.series(r, models.EarRight, colorRight, 0)
	p.series(r, models.EarLeft, colorLeft, 1)

	text(img, marginLeft, chartHeight-15, "o Right", colorRight)
	text(img, marginLeft+80, chartHeight-15, "x Left", colorLeft)

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode audiogram: %w", err)
	}
	return nil
}

func (p plot) grid() {
	for level := models.MinLevel; level <= models.MaxLevel; level += 10 {
		y := p.y(level)
		hline(p.img, p.rect.Min.X, p.rect.Max.X, y, colorGrid)
		label := strconv.Itoa(level)
		text(p.img, p.rect.Min.X-10-len(label)*7, y+4, label, colorAxis)
	}
	for i, f := range models.StandardFrequencies {
		x := p.x(i)
		vline(p.img, x, p.rect.Min.Y, p.rect.Max.Y, colorGrid)
		label := strconv.Itoa(f)
		text(p.img, x-len(label)*7/2, p.rect.Max.Y+18, label, colorAxis)
	}
	hline(p.img, p.rect.Min.X, p.rect.Max.X, p.rect.Max.Y, colorAxis)
	vline(p.img, p.rect.Min.X, p.rect.Min.Y, p.rect.Max.Y, colorAxis)
	text(p.img, 8, p.rect.Min.Y-12, "dB HL", colorAxis)
	text(p.img, p.rect.Max.X-90, p.rect.Max.Y+36, "Frequency (Hz)", colorAxis)
}

// series draws one ear. Skipped pairs break the line and are labelled SKIP.
func (p plot) series(r models.ToneResults, ear models.Ear, c color.Color, row int) {
	prev := image.Point{X: -1}
	for i, f := range models.StandardFrequencies {
		th, ok := r.Get(ear, f)
		if !ok {
			prev.X = -1
			continue
		}
		x := p.x(i)
		if th.Skipped {
			text(p.img, x-14, p.rect.Min.Y-20+row*12, models.SkipToken, c)
			prev.X = -1
			continue
		}
		pt := image.Pt(x, p.y(th.Level))
		if prev.X >= 0 {
			line(p.img, prev, pt, c)
		}
		if ear == models.EarRight {
			circle(p.img, pt, markerSize, c)
		} else {
			cross(p.img, pt, markerSize, c)
		}
		prev = pt
	}
}

func text(img draw.Image, x, y int, s string, c color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func hline(img *image.RGBA, x0, x1, y int, c color.Color) {
	for x := x0; x <= x1; x++ {
		img.Set(x, y, c)
	}
}

func vline(img *image.RGBA, x, y0, y1 int, c color.Color) {
	for y := y0; y <= y1; y++ {
		img.Set(x, y, c)
	}
}

// line is Bresenham's algorithm.
func line(img *image.RGBA, a, b image.Point, c color.Color) {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	e := dx + dy
	for {
		img.Set(a.X, a.Y, c)
		if a == b {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			a.X += sx
		}
		if e2 <= dx {
			e += dx
			a.Y += sy
		}
	}
}

func circle(img *image.RGBA, center image.Point, r int, c color.Color) {
	x, y := r, 0
	e := 1 - r
	for x >= y {
		for _, d := range [...]image.Point{{x, y}, {y, x}, {-y, x}, {-x, y}, {-x, -y}, {-y, -x}, {y, -x}, {x, -y}} {
			img.Set(center.X+d.X, center.Y+d.Y, c)
		}
		y++
		if e < 0 {
			e += 2*y + 1
		} else {
			x--
			e += 2*(y-x) + 1
		}
	}
}

func cross(img *image.RGBA, center image.Point, r int, c color.Color) {
	line(img, center.Add(image.Pt(-r, -r)), center.Add(image.Pt(r, r)), c)
	line(img, center.Add(image.Pt(-r, r)), center.Add(image.Pt(r, -r)), c)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
