package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"golang.org/x/image/font/basicfont"

	"github.com/aakaka525-design/manga-translator-ui-sub001/internal/providers"
)

func testPNG(t *testing.T, w, h int, fill color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestDecode_Invalid(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":   nil,
		"garbage": []byte("definitely not an image"),
		"trunc":   testPNG(t, 4, 4, color.White)[:20],
	} {
		t.Run(name, func(t *testing.T) {
			if _, _, err := Decode(data); !errors.Is(err, ErrInvalidImage) {
				t.Errorf("Decode() error = %v, want ErrInvalidImage", err)
			}
		})
	}
}

func TestMock_NotReadyUntilWarmup(t *testing.T) {
	m := NewMock("a")
	ctx := context.Background()
	if _, err := m.Detect(ctx, testPNG(t, 10, 10, color.White), Options{}); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Detect() before warmup error = %v, want ErrNotReady", err)
	}
	if err := m.Warmup(ctx); err != nil {
		t.Fatalf("Warmup() error = %v", err)
	}
	if !m.Ready() {
		t.Fatal("Ready() = false after warmup")
	}
}

func TestMock_DetectDenseIndices(t *testing.T) {
	m := NewMock("one", "two", "three")
	m.SetReady(true)

	c, err := m.Detect(context.Background(), testPNG(t, 60, 90, color.White), Options{SourceLang: "ja"})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(c.Regions) != 3 {
		t.Fatalf("len(Regions) = %d, want 3", len(c.Regions))
	}
	for i, r := range c.Regions {
		if r.Index != i {
			t.Errorf("Regions[%d].Index = %d", i, r.Index)
		}
		if r.Bounds().Dy() != 30 {
			t.Errorf("Regions[%d] height = %d, want 30", i, r.Bounds().Dy())
		}
	}
	if got := c.Texts(); got[0] != "one" || got[2] != "three" {
		t.Errorf("Texts() = %v", got)
	}
	if c.Format != "png" {
		t.Errorf("Format = %q, want png", c.Format)
	}
}

func TestMock_DetectZeroRegions(t *testing.T) {
	m := NewMock()
	m.SetReady(true)
	c, err := m.Detect(context.Background(), testPNG(t, 10, 10, color.White), Options{})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(c.Regions) != 0 {
		t.Errorf("len(Regions) = %d, want 0", len(c.Regions))
	}
}

func TestMock_RenderPaintsRegions(t *testing.T) {
	m := NewMock("text")
	m.SetReady(true)
	ctx := context.Background()

	red := color.RGBA{R: 0xff, A: 0xff}
	c, err := m.Detect(ctx, testPNG(t, 80, 40, red), Options{})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if err := c.SetTranslations(map[int]string{0: "hi"}); err != nil {
		t.Fatalf("SetTranslations() error = %v", err)
	}

	out, err := m.Render(ctx, c)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	img, _, err := Decode(out)
	if err != nil {
		t.Fatalf("rendered output does not decode: %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 80, 40) {
		t.Errorf("bounds = %v, want 80x40", img.Bounds())
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 != 0xff || g>>8 != 0xff || b>>8 != 0xff {
		t.Errorf("corner pixel = (%d,%d,%d), want white background fill", r>>8, g>>8, b>>8)
	}
	if m.RenderCalls() != 1 {
		t.Errorf("RenderCalls() = %d, want 1", m.RenderCalls())
	}
	// source image must not be modified
	sr, _, _, _ := c.Image.At(0, 0).RGBA()
	if sr>>8 != 0xff {
		t.Error("Render modified the source image")
	}
}

func TestContext_SetTranslationsOutOfRange(t *testing.T) {
	c := &Context{Regions: []TextRegion{{Index: 0}}}
	if err := c.SetTranslations(map[int]string{1: "x"}); err == nil {
		t.Error("expected error for index 1")
	}
	if err := c.SetTranslations(map[int]string{-1: "x"}); err == nil {
		t.Error("expected error for index -1")
	}
}

func TestWrapLines(t *testing.T) {
	face := basicfont.Face7x13
	lines := wrapLines("the quick brown fox", 7*9, face)
	if len(lines) != 2 {
		t.Fatalf("wrapLines() = %q, want 2 lines", lines)
	}
	for _, l := range lines {
		if len(l)*7 > 7*9 {
			t.Errorf("line %q wider than box", l)
		}
	}
	if got := verticalLines("a b"); len(got) != 2 {
		t.Errorf("verticalLines() = %q, want 2 runes", got)
	}
}

func TestSampleColors(t *testing.T) {
	dark := image.NewUniform(color.RGBA{R: 10, G: 10, B: 10, A: 0xff})
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, dark.C)
		}
	}
	bg, fg := sampleColors(img, image.Rect(2, 2, 8, 8))
	if bg.R != 10 {
		t.Errorf("bg = %v, want dark", bg)
	}
	if fg.R != 0xff {
		t.Errorf("fg = %v, want white on dark background", fg)
	}
}

func TestVision_DetectNormalizesRegions(t *testing.T) {
	client := providers.NewMockClient(`{"regions":[
		{"text":"  cafe\u0301 ","box":[0,0,20,10],"direction":"h","font_size":12},
		{"text":"   ","box":[0,10,20,20]},
		{"text":"off page","box":[500,500,600,600]},
		{"text":"縦","box":[0,20,20,40],"direction":"v"}
	]}`)
	v := NewVision(VisionConfig{Client: client, Model: "vision-test"})
	ctx := context.Background()

	if _, err := v.Detect(ctx, testPNG(t, 40, 40, color.White), Options{}); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Detect() before warmup error = %v, want ErrNotReady", err)
	}
	if err := v.Warmup(ctx); err != nil {
		t.Fatalf("Warmup() error = %v", err)
	}

	c, err := v.Detect(ctx, testPNG(t, 40, 40, color.White), Options{SourceLang: "fr"})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(c.Regions) != 2 {
		t.Fatalf("len(Regions) = %d, want 2: %+v", len(c.Regions), c.Regions)
	}
	if c.Regions[0].Text != "caf\u00e9" {
		t.Errorf("Regions[0].Text = %q, want NFC café", c.Regions[0].Text)
	}
	if c.Regions[1].Index != 1 || c.Regions[1].Direction != DirectionVertical {
		t.Errorf("Regions[1] = %+v", c.Regions[1])
	}
	if reqs := client.Requests(); len(reqs) != 1 || reqs[0].Model != "vision-test" {
		t.Errorf("unexpected requests: %+v", reqs)
	}

	c.SetTranslations(map[int]string{0: "coffee", 1: "V"})
	if _, err := v.Render(ctx, c); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
}

func TestVision_DetectRejectsBadOutput(t *testing.T) {
	v := NewVision(VisionConfig{Client: providers.NewMockClient(`{"regions":[{"text":"x","box":[1,2]}]}`)})
	v.Warmup(context.Background())

	_, err := v.Detect(context.Background(), testPNG(t, 10, 10, color.White), Options{})
	if !errors.Is(err, providers.ErrStructuredOutput) {
		t.Fatalf("Detect() error = %v, want ErrStructuredOutput", err)
	}
}
