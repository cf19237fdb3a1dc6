package colormap

import (
	"image/color"
	"testing"
)

func TestGraysEndpoints(t *testing.T) {
	t.Parallel()

	c0, ok := Grays.At(0).(color.RGBA)
	if !ok || c0 != (color.RGBA{0, 0, 0, 255}) {
		t.Fatalf("unexpected Grays.At(0): %#v", c0)
	}

	c1, ok := Grays.At(1).(color.RGBA)
	if !ok || c1 != (color.RGBA{255, 255, 255, 255}) {
		t.Fatalf("unexpected Grays.At(1): %#v", c1)
	}
}

func TestViridisEndpoints(t *testing.T) {
	t.Parallel()

	c0, ok := Viridis.At(0).(color.RGBA)
	if !ok || c0 != (color.RGBA{68, 1, 84, 255}) {
		t.Fatalf("unexpected Viridis.At(0): %#v", c0)
	}
}

func TestCategoricalWraps(t *testing.T) {
	t.Parallel()

	n := len(Categorical.colors)
	if Categorical.AtIndex(0) != Categorical.AtIndex(n) {
		t.Fatalf("expected AtIndex to wrap around palette length %d", n)
	}
}

func TestChannelColorWraps(t *testing.T) {
	t.Parallel()

	n := len(channelPalette)
	if ChannelColor(0) != ChannelColor(n) {
		t.Fatalf("expected ChannelColor to wrap around palette length %d", n)
	}
}

func TestScaleChannelClamps(t *testing.T) {
	t.Parallel()

	base := color.RGBA{R: 200, G: 0, B: 0, A: 255}
	if got := ScaleChannel(base, -1); got != (color.RGBA{0, 0, 0, 255}) {
		t.Fatalf("expected clamp to 0, got %#v", got)
	}
	if got := ScaleChannel(base, 2); got != base {
		t.Fatalf("expected clamp to 1 (base unchanged), got %#v", got)
	}
}
