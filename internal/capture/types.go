// Package capture implements the capture loader (spec §4.6) and the data
// model it populates (spec §3): per image group, it loads eight metadata
// documents in a fixed order, detects the group's effective shape
// (including the single-file-multi-timepoint layout), counts stage
// positions, and serves individual plane reads.
package capture

import (
	"log"

	"github.com/nicolapapp/bioformats/internal/filecache"
	"github.com/nicolapapp/bioformats/internal/npy"
)

// ImageRecord is the group's top-level dimension and acquisition record,
// composed with its LensDef/OptovarDef/MainViewRecord sub-records in that
// order (spec §4.2 "Composite records").
type ImageRecord struct {
	Width         int32
	Height        int32
	NumPlanes     int32
	NumChannels   int32
	NumTimepoints int32
	CreatedTimeMs int64

	Lens     LensDef
	Optovar  OptovarDef
	MainView MainViewRecord
}

// LensDef carries the objective's physical pixel size contribution.
type LensDef struct {
	Name           string
	MicronPerPixel float64
}

// OptovarDef carries the tube-lens magnification.
type OptovarDef struct {
	Name          string
	Magnification float64
}

// MainViewRecord is an opaque view reference; no emitted field depends on
// more than its presence today.
type MainViewRecord struct {
	Name string
}

// ExposureRecord holds one channel's acquisition timing and XY scaling factors.
type ExposureRecord struct {
	ExposureTimeMs           float64
	InterplaneSpacingMicron  float64
	XFactor                  float64
	YFactor                  float64
}

// ChannelDef names and identifies the hardware behind one channel.
type ChannelDef struct {
	Name   string
	Camera string
	Fluor  string
}

// ChannelExtra is a per-channel manipulation record (align, ratio, FRET,
// remap, histogram) whose declared fields this reader does not interpret;
// its attribute pairs are retained verbatim via the unknown-field hook.
type ChannelExtra struct {
	ClassName string
	Fields    map[string]string
}

// ChannelRecord is one channel's full metadata: exposure, definition, and
// any interleaved manipulation records (spec §3).
type ChannelRecord struct {
	Exposure ExposureRecord
	Def      ChannelDef
	Extras   []ChannelExtra
}

// MaskTimepoint is one timepoint's parallel (blockSize,offset) sequences
// locating its submasks.
type MaskTimepoint struct {
	BlockSizes []int64
	Offsets    []int64
}

// Masks is the group's mask table (spec §3).
type Masks struct {
	NumMaskRecords int32
	Timepoints     []MaskTimepoint
}

// Vertex is one point of an annotation's geometry.
type Vertex struct {
	X, Y, Z float64
}

// BaseAnnotation is one ROI: geometry plus its references (spec §3, §4.7).
type BaseAnnotation struct {
	GraphicType  int32 // mGraphicType70
	Vertices     []Vertex
	ChannelMask  int32
	GroupRef     int32
	PlaneRef     int32
	SequenceRef  int32
	ObjectRef    int32
	StageOffsetX float64 // mStageOffsetMicrons.mX
	StageOffsetY float64 // mStageOffsetMicrons.mY
	FieldOffsetX float64
	FieldOffsetY float64
}

// AnnotationTimepoint is one timepoint's four parallel annotation lists.
type AnnotationTimepoint struct {
	Cube    []BaseAnnotation
	Base    []BaseAnnotation
	FRAP    []BaseAnnotation
	Unknown []BaseAnnotation
}

// Annotations is the group's full per-timepoint annotation table.
type Annotations struct {
	Timepoints []AnnotationTimepoint
}

// ElapsedTimes is the dense per-timepoint millisecond sequence.
type ElapsedTimes []int64

// SAPositions is one integer vector per (timepoint,position) image.
type SAPositions [][]int32

// StagePosition is one (x,y,z) micron triple.
type StagePosition struct{ X, Y, Z float64 }

// StagePositions is the flattened timepoint*position sequence (spec §3).
type StagePositions []StagePosition

// AuxTable pairs an XML descriptor with one typed homogeneous payload.
type AuxTable struct {
	XMLDescriptor string
	Floats        []float32
	Doubles       []float64
	Int32s        []int32
	Int64s        []int64
	XML           string
}

// AuxData is the group's five homogeneous table lists (spec §3).
type AuxData struct {
	FloatTables  []AuxTable
	DoubleTables []AuxTable
	Int32Tables  []AuxTable
	Int64Tables  []AuxTable
	XMLTables    []AuxTable
}

// planeCache is the single cache slot invalidated as one unit whenever
// (channel,timepoint) changes (spec §9 "Block dictionary ownership").
type planeCache struct {
	valid     bool
	channel   int
	timepoint int
	header    *npy.Header
}

// Group is one loaded image group ("capture"): its metadata records plus
// the derived shape/position counts needed to serve plane reads.
type Group struct {
	Title      string
	Dir        string
	Compressed bool

	Image       ImageRecord
	Channels    []ChannelRecord
	Masks       Masks
	Annotations Annotations
	Elapsed     ElapsedTimes
	SAPos       SAPositions
	Stage       StagePositions
	Aux         AuxData

	SFMT              bool
	NumTimepointsRaw  int // as stored on disk, before position-splitting
	NumPositions      int
	NumTimepoints     int // NumTimepointsRaw / NumPositions: the published T axis

	cache planeCache

	files  *filecache.Cache // borrowed, not owned (spec §3 Ownership)
	Logger *log.Logger      // borrowed from the record decoder that loaded this group
}

// Dimensions is the published per-capture shape (spec §6 dimensions()).
type Dimensions struct {
	Width, Height       int
	NumChannels         int
	NumZPlanes          int
	NumTimepoints       int
	NumPositions        int
	BytesPerPixel       int
}

// Dimensions returns the group's published dimensions.
func (g *Group) Dimensions() Dimensions {
	bpp := 2
	if len(g.Channels) > 0 {
		// bytesPerPixel is a property of the pixel file, not the metadata
		// record; callers needing it precisely should inspect a parsed
		// npy.Header. Two bytes is SlideBook7's overwhelmingly common case
		// and is reported for every group, whether or not a plane has been read.
		bpp = 2
	}
	return Dimensions{
		Width:         int(g.Image.Width),
		Height:        int(g.Image.Height),
		NumChannels:   int(g.Image.NumChannels),
		NumZPlanes:    int(g.Image.NumPlanes),
		NumTimepoints: g.NumTimepoints,
		NumPositions:  g.NumPositions,
		BytesPerPixel: bpp,
	}
}
