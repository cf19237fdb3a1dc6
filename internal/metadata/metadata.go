// Package metadata implements the external metadata emission contract
// (spec §4.7): the set of facts derived from a loaded capture.Group and
// published toward the downstream metadata store. That store itself is
// an opaque collaborator (spec §1 Non-goals) — this package stops at
// producing the Go values it would receive, exposed through the Sink
// interface below.
package metadata

import (
	"strings"

	"github.com/nicolapapp/bioformats/internal/capture"
)

// Shape is one emitted ROI geometry (spec §4.7 table).
type Shape struct {
	Kind string // "point", "line", "rectangle", "polyline", "ellipse"
	X, Y float64
	W, H float64 // rectangle / ellipse radii (Rx=W, Ry=H)
	X2, Y2 float64 // line endpoint
	Points []capture.Vertex // polyline vertices
}

// EmitROIShape maps one annotation's mGraphicType70 to an emitted shape
// per spec §4.7's table. Types 4-7 are explicitly skipped (ok=false).
func EmitROIShape(ann capture.BaseAnnotation) (shape Shape, ok bool) {
	switch ann.GraphicType {
	case 0: // Point
		if len(ann.Vertices) < 1 {
			return Shape{}, false
		}
		v := ann.Vertices[0]
		return Shape{Kind: "point", X: v.X, Y: v.Y}, true

	case 1: // Line
		if len(ann.Vertices) < 2 {
			return Shape{}, false
		}
		return Shape{Kind: "line", X: ann.Vertices[0].X, Y: ann.Vertices[0].Y, X2: ann.Vertices[1].X, Y2: ann.Vertices[1].Y}, true

	case 2: // Rectangle: (left,top)=v[0], (w,h)=v[1]-v[0]
		if len(ann.Vertices) < 2 {
			return Shape{}, false
		}
		v0, v1 := ann.Vertices[0], ann.Vertices[1]
		return Shape{Kind: "rectangle", X: v0.X, Y: v0.Y, W: v1.X - v0.X, H: v1.Y - v0.Y}, true

	case 3: // Polygon: polyline over all vertices
		if len(ann.Vertices) == 0 {
			return Shape{}, false
		}
		return Shape{Kind: "polyline", Points: ann.Vertices}, true

	case 4, 5, 6, 7:
		return Shape{}, false

	case 8: // Ellipse: centre=(v0+v1)/2, radii=(v1-v0)/2
		if len(ann.Vertices) < 2 {
			return Shape{}, false
		}
		v0, v1 := ann.Vertices[0], ann.Vertices[1]
		return Shape{
			Kind: "ellipse",
			X:    (v0.X + v1.X) / 2,
			Y:    (v0.Y + v1.Y) / 2,
			W:    (v1.X - v0.X) / 2,
			H:    (v1.Y - v0.Y) / 2,
		}, true

	default:
		return Shape{}, false
	}
}

// PixelLayout is the inferred channel-splitting/pixel-type facts for a
// group's plane byte layout (spec §4.7 "RGB inference... pixel type").
type PixelLayout struct {
	IsRGB         bool
	EffectiveChannels int
	BytesPerPixel int
	Signed        bool
}

// InferPixelLayout infers RGB packing: bytesPerPixel divisible by 3 splits
// the channel count by 3 and marks the group RGB.
func InferPixelLayout(declaredChannels, bytesPerPixel int, signed bool) PixelLayout {
	pl := PixelLayout{BytesPerPixel: bytesPerPixel, Signed: signed, EffectiveChannels: declaredChannels}
	if bytesPerPixel > 0 && bytesPerPixel%3 == 0 {
		pl.IsRGB = true
		pl.EffectiveChannels = declaredChannels * 3
	}
	return pl
}

// VoxelSizeMicrons computes the physical pixel size per spec §4.7's
// formula, only when every divisor/multiplier is > 0.
func VoxelSizeMicrons(g *capture.Group) (float64, bool) {
	if len(g.Channels) == 0 {
		return 0, false
	}
	lens := g.Image.Lens.MicronPerPixel
	mag := g.Image.Optovar.Magnification
	xFactor := g.Channels[0].Exposure.XFactor
	if lens <= 0 || mag <= 0 || xFactor <= 0 {
		return 0, false
	}
	return lens / mag * xFactor, true
}

// StageXYZ returns the stage position for (t,z): X,Y,Z come from the
// stored (t-th within-position) stage triple; Z additionally adds
// interplane spacing * z (spec §4.7). Per spec §9's open question, Z
// differences do not affect #positions counting, but the Z value itself
// is still emitted here.
func StageXYZ(g *capture.Group, t, z int) (x, y, zMicron float64, ok bool) {
	idx := t * g.NumPositions
	if idx < 0 || idx >= len(g.Stage) {
		return 0, 0, 0, false
	}
	pos := g.Stage[idx]
	zMicron = pos.Z
	if len(g.Channels) > 0 {
		zMicron += g.Channels[0].Exposure.InterplaneSpacingMicron * float64(z)
	}
	return pos.X, pos.Y, zMicron, true
}

// DeltaTMs returns the elapsed time in milliseconds for timepoint t, or
// false if out of range (spec §8 invariant 1: len(elapsed) >= numTimepoints).
func DeltaTMs(g *capture.Group, t int) (int64, bool) {
	if t < 0 || t >= len(g.Elapsed) {
		return 0, false
	}
	return g.Elapsed[t], true
}

// ExposureMs returns channel c's exposure time.
func ExposureMs(g *capture.Group, c int) (float64, bool) {
	if c < 0 || c >= len(g.Channels) {
		return 0, false
	}
	return g.Channels[c].Exposure.ExposureTimeMs, true
}

// ChannelName returns channel c's trimmed display name.
func ChannelName(g *capture.Group, c int) (string, bool) {
	if c < 0 || c >= len(g.Channels) {
		return "", false
	}
	return strings.TrimSpace(g.Channels[c].Def.Name), true
}

// CaptureFacts bundles everything §4.7 says is published for one capture.
type CaptureFacts struct {
	Title          string
	Dimensions     capture.Dimensions
	Layout         PixelLayout
	VoxelSizeUm    float64
	HasVoxelSize   bool
	ChannelNames   []string
	ROIShapes      []Shape
	Objective      string
}

// BuildCaptureFacts assembles CaptureFacts for g. One objective per
// capture is published, derived from the lens name (spec §4.7).
func BuildCaptureFacts(g *capture.Group) CaptureFacts {
	facts := CaptureFacts{
		Title:      g.Title,
		Dimensions: g.Dimensions(),
		Objective:  g.Image.Lens.Name,
	}
	facts.VoxelSizeUm, facts.HasVoxelSize = VoxelSizeMicrons(g)
	facts.Layout = InferPixelLayout(int(g.Image.NumChannels), facts.Dimensions.BytesPerPixel, false)

	for c := range g.Channels {
		if name, ok := ChannelName(g, c); ok {
			facts.ChannelNames = append(facts.ChannelNames, name)
		}
	}

	for _, tp := range g.Annotations.Timepoints {
		for _, list := range [][]capture.BaseAnnotation{tp.Cube, tp.Base, tp.FRAP, tp.Unknown} {
			for _, ann := range list {
				if shape, ok := EmitROIShape(ann); ok {
					facts.ROIShapes = append(facts.ROIShapes, shape)
				}
			}
		}
	}

	return facts
}

// Sink is the opaque downstream microscopy metadata store (spec §1
// Non-goals: "treated as an opaque sink"). This reader never implements
// one; callers wire in their own.
type Sink interface {
	EmitCapture(CaptureFacts) error
}
