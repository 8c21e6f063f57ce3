package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/observer"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/optimizer"
	"github.com/indpriyanshuraj/talvaar-image-optimizer/internal/storage"
)

func writeTestPNG(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func writeImagePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func decodeOutput(t *testing.T, path string) image.Image {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return img
}

func newTestProcessor(t *testing.T, opts Options) (*Processor, string) {
	t.Helper()
	out := t.TempDir()
	return NewProcessor(storage.NewLocalSink(out), nil, opts), out
}

func TestProcess_AutoNeverGrowsPNG(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "stone.png")
	writeTestPNG(t, src, 16, 16, color.NRGBA{R: 120, G: 120, B: 120, A: 255})

	proc, out := newTestProcessor(t, DefaultOptions())
	result, err := proc.Process(context.Background(), Job{SourcePath: src})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.Success {
		t.Fatalf("result not successful: %+v", result)
	}
	if result.NewSize <= 0 || result.NewSize > result.OriginalSize {
		t.Errorf("NewSize = %d, OriginalSize = %d; PNG-to-PNG auto must never grow",
			result.NewSize, result.OriginalSize)
	}
	if result.Mode == "" {
		t.Error("result.Mode is empty")
	}
	if _, err := os.Stat(filepath.Join(out, "stone.png")); err != nil {
		t.Errorf("output missing: %v", err)
	}
}

func TestProcess_ManualRGBDropsAlpha(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "glass.png")
	writeTestPNG(t, src, 8, 8, color.NRGBA{R: 50, G: 80, B: 200, A: 128})

	opts := DefaultOptions().WithMode(ModeRGB)
	proc, out := newTestProcessor(t, opts)
	result, err := proc.Process(context.Background(), Job{SourcePath: src})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Mode != "RGB" {
		t.Errorf("Mode = %q, want RGB", result.Mode)
	}

	img := decodeOutput(t, filepath.Join(out, "glass.png"))
	_, _, _, a := img.At(0, 0).RGBA()
	if a != 0xffff {
		t.Errorf("alpha = %d, want fully opaque", a)
	}
}

func TestProcess_AutoIgnoreTransparencyFlattens(t *testing.T) {
	t.Parallel()

	// Opaque gradient left half, fully transparent right half: the
	// palette candidate is a likely winner, and it must not smuggle the
	// discarded transparency back into the stored file.
	src := filepath.Join(t.TempDir(), "leaves.png")
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			if x < 8 {
				img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 16), G: 120, B: 40, A: 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{})
			}
		}
	}
	writeImagePNG(t, src, img)

	opts := DefaultOptions()
	opts.IgnoreTransparency = true
	proc, out := newTestProcessor(t, opts)
	if _, err := proc.Process(context.Background(), Job{SourcePath: src}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	stored := decodeOutput(t, filepath.Join(out, "leaves.png"))
	b := stored.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := stored.At(x, y).RGBA(); a != 0xffff {
				t.Fatalf("pixel (%d,%d) alpha = %d, want fully opaque output", x, y, a)
			}
		}
	}
}

func TestProcess_ManualPaletteIgnoreTransparencyForcesRGB(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "glass.png")
	writeTestPNG(t, src, 8, 8, color.NRGBA{R: 60, G: 140, B: 220, A: 128})

	opts := DefaultOptions().WithMode(ModePalette)
	opts.IgnoreTransparency = true
	proc, out := newTestProcessor(t, opts)
	result, err := proc.Process(context.Background(), Job{SourcePath: src})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Mode != "RGB" {
		t.Errorf("Mode = %q, want RGB when transparency is ignored", result.Mode)
	}

	img := decodeOutput(t, filepath.Join(out, "glass.png"))
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0xffff {
		t.Errorf("alpha = %d, want fully opaque", a)
	}
}

func TestProcess_ManualPaletteLabel(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "dirt.png")
	writeTestPNG(t, src, 8, 8, color.NRGBA{R: 134, G: 96, B: 67, A: 255})

	opts := DefaultOptions().WithMode(ModePalette)
	proc, _ := newTestProcessor(t, opts)
	result, err := proc.Process(context.Background(), Job{SourcePath: src})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Mode != "P-256" {
		t.Errorf("Mode = %q, want P-256", result.Mode)
	}
}

func TestProcess_PrefixSuffixAndFormatExt(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "icon.png")
	writeTestPNG(t, src, 8, 8, color.NRGBA{G: 200, A: 255})

	opts := DefaultOptions()
	opts.Prefix = "opt_"
	opts.Suffix = "_v2"
	opts.Format = optimizer.FormatJPEG
	proc, out := newTestProcessor(t, opts)

	if _, err := proc.Process(context.Background(), Job{SourcePath: src}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "opt_icon_v2.jpg")); err != nil {
		t.Errorf("renamed output missing: %v", err)
	}
}

func TestProcess_MirrorsRelativeDirs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	src := filepath.Join(root, "blocks", "ore", "gold.png")
	writeTestPNG(t, src, 8, 8, color.NRGBA{R: 240, G: 200, A: 255})

	proc, out := newTestProcessor(t, DefaultOptions())
	if _, err := proc.Process(context.Background(), Job{SourcePath: src, Root: root}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "blocks", "ore", "gold.png")); err != nil {
		t.Errorf("mirrored output missing: %v", err)
	}
}

func TestProcess_KeepBothNumbersSiblings(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "leaf.png")
	writeTestPNG(t, src, 8, 8, color.NRGBA{G: 160, A: 255})

	opts := DefaultOptions()
	opts.Conflict = KeepBoth
	proc, out := newTestProcessor(t, opts)
	ctx := context.Background()

	if _, err := proc.Process(ctx, Job{SourcePath: src}); err != nil {
		t.Fatalf("first Process: %v", err)
	}
	if _, err := proc.Process(ctx, Job{SourcePath: src}); err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "leaf.png")); err != nil {
		t.Errorf("first output missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "leaf_1.png")); err != nil {
		t.Errorf("numbered sibling missing: %v", err)
	}
}

func TestProcess_ResizePercentage(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "big.png")
	writeTestPNG(t, src, 32, 16, color.NRGBA{B: 90, A: 255})

	spec, err := ParseResizeSpec("50%")
	if err != nil {
		t.Fatalf("ParseResizeSpec: %v", err)
	}
	opts := DefaultOptions().WithResize(spec)
	proc, out := newTestProcessor(t, opts)

	if _, err := proc.Process(context.Background(), Job{SourcePath: src}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	img := decodeOutput(t, filepath.Join(out, "big.png"))
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 8 {
		t.Errorf("resized dims = %v, want 16x8", img.Bounds())
	}
}

func TestProcess_DecodeFailure(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "broken.png")
	if err := os.WriteFile(src, []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}

	proc, _ := newTestProcessor(t, DefaultOptions())
	result, err := proc.Process(context.Background(), Job{SourcePath: src})
	if err == nil {
		t.Fatal("Process(broken) = nil error, want decode failure")
	}
	if result.Success || result.Error == "" {
		t.Errorf("result = %+v, want failure with message", result)
	}
}

func TestProcess_PublishesEvents(t *testing.T) {
	t.Parallel()

	src := filepath.Join(t.TempDir(), "ev.png")
	writeTestPNG(t, src, 8, 8, color.NRGBA{R: 10, A: 255})

	pub := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	pub.Subscribe(metrics)

	proc := NewProcessor(storage.NewLocalSink(t.TempDir()), pub, DefaultOptions())
	if _, err := proc.Process(context.Background(), Job{SourcePath: src}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	m := metrics.GetMetrics()
	if m["total_images"].(int64) != 1 || m["successful_images"].(int64) != 1 {
		t.Errorf("metrics = %v, want one started and one completed", m)
	}
}

func TestParseResizeSpec(t *testing.T) {
	t.Parallel()

	spec, err := ParseResizeSpec("128x64")
	if err != nil || spec.Width != 128 || spec.Height != 64 {
		t.Errorf("ParseResizeSpec(128x64) = (%+v, %v)", spec, err)
	}

	spec, err = ParseResizeSpec("25%")
	if err != nil || spec.Percentage != 25 {
		t.Errorf("ParseResizeSpec(25%%) = (%+v, %v)", spec, err)
	}

	spec, err = ParseResizeSpec("")
	if err != nil || spec != nil {
		t.Errorf("ParseResizeSpec(empty) = (%+v, %v), want nil,nil", spec, err)
	}

	spec, err = ParseResizeSpec("100x0")
	if err != nil || spec.Width != 100 || spec.Height != 0 {
		t.Errorf("ParseResizeSpec(100x0) = (%+v, %v), want aspect-preserving spec", spec, err)
	}

	for _, bad := range []string{"0x10", "abc", "10", "0%"} {
		if _, err := ParseResizeSpec(bad); err == nil {
			t.Errorf("ParseResizeSpec(%q) = nil error, want failure", bad)
		}
	}
}

func TestTargetDims(t *testing.T) {
	t.Parallel()

	w, h := targetDims(&ResizeSpec{Width: 100, Height: 50}, 640, 480)
	if w != 100 || h != 50 {
		t.Errorf("pixel dims = %dx%d, want 100x50", w, h)
	}

	w, h = targetDims(&ResizeSpec{Percentage: 50}, 33, 1)
	if w != 17 || h != 1 {
		t.Errorf("percentage dims = %dx%d, want 17x1 (rounded, floored at 1)", w, h)
	}

	w, h = targetDims(&ResizeSpec{Width: 100}, 200, 100)
	if w != 100 || h != 50 {
		t.Errorf("aspect dims = %dx%d, want 100x50", w, h)
	}
}
