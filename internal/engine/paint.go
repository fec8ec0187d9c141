package engine

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const workingVariant = "rgba"

// Paint fills every region box with its background color and draws the
// translation inside it. The source image is left untouched.
func Paint(c *Context) *image.RGBA {
	var base *image.RGBA
	if v, ok := c.Variants[workingVariant].(*image.RGBA); ok {
		base = toRGBA(v)
	} else {
		base = toRGBA(c.Image)
	}

	face := basicfont.Face7x13
	for _, r := range c.Regions {
		box := r.Bounds().Intersect(base.Bounds())
		if box.Empty() {
			continue
		}
		draw.Draw(base, box, image.NewUniform(r.BgColor), image.Point{}, draw.Src)
		if r.Translation == "" {
			continue
		}
		fg := r.FgColor
		if fg.A == 0 {
			fg = color.RGBA{A: 0xff}
		}
		if r.Direction == DirectionVertical {
			drawLines(base, box, verticalLines(r.Translation), fg, face)
		} else {
			drawLines(base, box, wrapLines(r.Translation, box.Dx(), face), fg, face)
		}
	}
	return base
}

// wrapLines splits text into lines no wider than width pixels. Words
// longer than a line are kept whole and clipped by the box.
func wrapLines(text string, width int, face font.Face) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if font.MeasureString(face, candidate).Ceil() > width {
				lines = append(lines, line)
				line = w
				continue
			}
			line = candidate
		}
		lines = append(lines, line)
	}
	return lines
}

func verticalLines(text string) []string {
	var lines []string
	for _, r := range text {
		if r == ' ' || r == '\n' {
			continue
		}
		lines = append(lines, string(r))
	}
	return lines
}

// drawLines centers lines inside box.
func drawLines(dst *image.RGBA, box image.Rectangle, lines []string, fg color.RGBA, face font.Face) {
	if len(lines) == 0 {
		return
	}
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()
	ascent := metrics.Ascent.Ceil()

	clip := dst.SubImage(box).(*image.RGBA)
	d := &font.Drawer{Dst: clip, Src: image.NewUniform(fg), Face: face}

	y := box.Min.Y + (box.Dy()-lineHeight*len(lines))/2 + ascent
	for _, line := range lines {
		w := font.MeasureString(face, line).Ceil()
		x := box.Min.X + (box.Dx()-w)/2
		if x < box.Min.X {
			x = box.Min.X
		}
		d.Dot = fixed.P(x, y)
		d.DrawString(line)
		y += lineHeight
	}
}

// sampleColors estimates background and foreground colors of box from its
// border pixels. Foreground is black on light backgrounds and white on dark.
func sampleColors(img image.Image, box image.Rectangle) (bg, fg color.RGBA) {
	box = box.Intersect(img.Bounds())
	if box.Empty() {
		return color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}, color.RGBA{A: 0xff}
	}

	var r, g, b, n uint64
	add := func(x, y int) {
		cr, cg, cb, _ := img.At(x, y).RGBA()
		r += uint64(cr >> 8)
		g += uint64(cg >> 8)
		b += uint64(cb >> 8)
		n++
	}
	for x := box.Min.X; x < box.Max.X; x++ {
		add(x, box.Min.Y)
		add(x, box.Max.Y-1)
	}
	for y := box.Min.Y; y < box.Max.Y; y++ {
		add(box.Min.X, y)
		add(box.Max.X-1, y)
	}

	bg = color.RGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n), A: 0xff}
	luma := (299*uint64(bg.R) + 587*uint64(bg.G) + 114*uint64(bg.B)) / 1000
	if luma > 128 {
		fg = color.RGBA{A: 0xff}
	} else {
		fg = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	}
	return bg, fg
}
