package optimizer

import (
	"bytes"
	"image"
	"image/color"
	"strings"
	"testing"
)

func redOpaque() color.NRGBA {
	return color.NRGBA{R: 255, A: 255}
}

func TestRaceBest_PicksGlobalMinimum(t *testing.T) {
	t.Parallel()

	img := solidNRGBA(10, 10, redOpaque())
	const path = "textures/blocks/red.png"

	res, err := RaceBest(img, path, UnboundedBaseline, 9, FormatPNG, false)
	if err != nil {
		t.Fatalf("RaceBest: %v", err)
	}
	if len(res.Data) == 0 || res.Size != int64(len(res.Data)) {
		t.Fatalf("inconsistent result: size=%d len=%d", res.Size, len(res.Data))
	}

	// Replay every candidate by hand; the champion must be the global
	// minimum among successful encodes.
	a := Analyze(img, path)
	for _, c := range GenerateCandidates(a, false) {
		data, err := EncodeCandidate(img, c.Mode, c.Colors, 9, FormatPNG)
		if err != nil {
			continue
		}
		if int64(len(data)) < res.Size {
			t.Errorf("candidate %s produced %d bytes, smaller than champion %s (%d bytes)",
				c.Label(), len(data), res.Label, res.Size)
		}
	}
}

func TestRaceBest_OpaqueCandidateLabels(t *testing.T) {
	t.Parallel()

	img := solidNRGBA(10, 10, redOpaque())
	res, err := RaceBest(img, "textures/blocks/red.png", UnboundedBaseline, 9, FormatPNG, false)
	if err != nil {
		t.Fatalf("RaceBest: %v", err)
	}
	switch res.Label {
	case "RGB", "P-256", "P-128":
	default:
		t.Errorf("Label = %q, want one of the opaque candidate labels", res.Label)
	}
}

func TestRaceBest_FallbackWhenBaselineUnbeatable(t *testing.T) {
	t.Parallel()

	img := solidNRGBA(10, 10, redOpaque())
	// Baseline of 1 byte cannot be beaten by any real encoding.
	res, err := RaceBest(img, "x.png", 1, 9, FormatPNG, false)
	if err != nil {
		t.Fatalf("RaceBest: %v", err)
	}
	if !strings.Contains(res.Label, "(Fallback)") {
		t.Errorf("Label = %q, want fallback label", res.Label)
	}
	if !strings.HasPrefix(res.Label, "RGB ") {
		t.Errorf("Label = %q, want RGB fallback for an opaque source", res.Label)
	}
	if len(res.Data) == 0 {
		t.Error("fallback returned no encoded data")
	}
}

func TestRaceBest_FallbackModeRespectsFidelity(t *testing.T) {
	t.Parallel()

	partial := solidNRGBA(6, 6, redOpaque())
	partial.Pix[3] = 120 // one translucent pixel

	res, err := RaceBest(partial, "glass.png", 1, 9, FormatPNG, false)
	if err != nil {
		t.Fatalf("RaceBest: %v", err)
	}
	if !strings.HasPrefix(res.Label, "RGBA ") {
		t.Errorf("Label = %q, want RGBA fallback for partial alpha", res.Label)
	}

	// Ignoring transparency forces the opaque safe mode.
	res, err = RaceBest(partial, "glass.png", 1, 9, FormatPNG, true)
	if err != nil {
		t.Fatalf("RaceBest(ignore): %v", err)
	}
	if !strings.HasPrefix(res.Label, "RGB ") {
		t.Errorf("Label = %q, want RGB fallback with transparency ignored", res.Label)
	}
}

func TestRaceBest_IgnoreTransparencyFlattensWinner(t *testing.T) {
	t.Parallel()

	// Multi-color opaque left half, fully transparent right half. A
	// palette winner would otherwise reserve a transparent slot and keep
	// the right half invisible even though transparency is ignored.
	img := image.NewNRGBA(image.Rect(0, 0, 128, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			if x < 64 {
				img.SetNRGBA(x, y, color.NRGBA{R: uint8((x / 2) * 8), G: 40, B: 90, A: 255})
			} else {
				img.SetNRGBA(x, y, color.NRGBA{})
			}
		}
	}

	res, err := RaceBest(img, "textures/foliage/leaves.png", UnboundedBaseline, 6, FormatPNG, true)
	if err != nil {
		t.Fatalf("RaceBest: %v", err)
	}

	decoded, _, err := image.Decode(bytes.NewReader(res.Data))
	if err != nil {
		t.Fatalf("decode winner (%s): %v", res.Label, err)
	}
	b := decoded.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := decoded.At(x, y).RGBA(); a != 0xffff {
				t.Fatalf("pixel (%d,%d) alpha = %d in %s output, want fully opaque", x, y, a, res.Label)
			}
		}
	}
}

func TestRaceBest_PartialAlphaSkipsPalette(t *testing.T) {
	t.Parallel()

	img := solidNRGBA(10, 10, redOpaque())
	img.Pix[3] = 99

	res, err := RaceBest(img, "glass.png", UnboundedBaseline, 9, FormatPNG, false)
	if err != nil {
		t.Fatalf("RaceBest: %v", err)
	}
	if strings.HasPrefix(res.Label, "P-") {
		t.Errorf("Label = %q: palette must never win for partial alpha", res.Label)
	}
}
