package capture

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nicolapapp/bioformats/internal/sberr"
	"github.com/nicolapapp/bioformats/internal/sbyaml"
)

// On-disk class names (spec §4.2 step 2: "confirm the nested ClassName
// matches the canonical name of T"). These are the literal strings
// SlideBook7 writes into ClassName fields, not Go-idiomatic bare names.
const (
	classImageRecord           = "CImageRecord70"
	classLensDef               = "CLensDef70"
	classOptovarDef            = "COptovarDef70"
	classMainViewRecord        = "CMainViewRecord70"
	classChannelRecord         = "CChannelRecord70"
	classMaskRecord            = "CMaskRecord70"
	classDataTableHeaderRecord = "CDataTableHeaderRecord70"
	classAlignManipRecord      = "CAlignManipRecord70"
	classRatioManipRecord      = "CRatioManipRecord70"
	classFRETManipRecord       = "CFRETManipRecord70"
	classRemapManipRecord      = "CRemapManipRecord70"
	classHistogramRecord       = "CHistogramRecord70"
	classCubeAnnotation        = "CCubeAnnotation70"
	classBaseAnnotation        = "CAnnotation70"
	classFRAPRegionAnnotation  = "CFRAPRegionAnnotation70"
	classUnknownAnnotation     = "CUnknownAnnotation70"
)

func readDocument(path string) (*sbyaml.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sberr.New(sberr.NotFound, "capture.readDocument", err)
		}
		return nil, sberr.New(sberr.Io, "capture.readDocument", err)
	}
	return sbyaml.ParseDocument(data)
}

// decodeImageRecord decodes ImageRecord.yaml, chaining LensDef, OptovarDef
// and MainViewRecord sub-record decodes in the order mandated by spec
// §4.2's "Composite records" note.
func decodeImageRecord(dec *sbyaml.Decoder, doc *sbyaml.Document) (ImageRecord, error) {
	var rec ImageRecord
	cur := sbyaml.NewCursor(doc)

	matched, err := dec.DecodeRecord(cur, classImageRecord,
		func(key string, v *yaml.Node) bool {
			switch key {
			case "mWidth":
				rec.Width = dec.CoerceInt32(v)
			case "mHeight":
				rec.Height = dec.CoerceInt32(v)
			case "mNumPlanes":
				rec.NumPlanes = dec.CoerceInt32(v)
			case "mNumChannels":
				rec.NumChannels = dec.CoerceInt32(v)
			case "mNumTimepoints":
				rec.NumTimepoints = dec.CoerceInt32(v)
			case "mCreatedTimeMs":
				rec.CreatedTimeMs = dec.CoerceInt64(v)
			default:
				return false
			}
			return true
		},
		nil,
	)
	if err != nil {
		return rec, err
	}
	if !matched {
		return rec, sberr.New(sberr.Format, "capture.decodeImageRecord", errClassMismatch(classImageRecord))
	}

	if _, _, ok := sbyaml.FindNextClass(cur); ok {
		lens, err := decodeLensDef(dec, cur)
		if err == nil {
			rec.Lens = lens
		}
	}
	if _, _, ok := sbyaml.FindNextClass(cur); ok {
		optovar, err := decodeOptovarDef(dec, cur)
		if err == nil {
			rec.Optovar = optovar
		}
	}
	if _, _, ok := sbyaml.FindNextClass(cur); ok {
		mv, err := decodeMainViewRecord(dec, cur)
		if err == nil {
			rec.MainView = mv
		}
	}

	return rec, nil
}

func decodeLensDef(dec *sbyaml.Decoder, cur *sbyaml.Cursor) (LensDef, error) {
	var l LensDef
	_, err := dec.DecodeRecord(cur, classLensDef, func(key string, v *yaml.Node) bool {
		switch key {
		case "mName":
			l.Name = dec.CoerceString(v)
		case "mMicronPerPixel":
			l.MicronPerPixel = dec.CoerceFloat64(v)
		default:
			return false
		}
		return true
	}, nil)
	return l, err
}

func decodeOptovarDef(dec *sbyaml.Decoder, cur *sbyaml.Cursor) (OptovarDef, error) {
	var o OptovarDef
	_, err := dec.DecodeRecord(cur, classOptovarDef, func(key string, v *yaml.Node) bool {
		switch key {
		case "mName":
			o.Name = dec.CoerceString(v)
		case "mMagnification":
			o.Magnification = dec.CoerceFloat64(v)
		default:
			return false
		}
		return true
	}, nil)
	return o, err
}

func decodeMainViewRecord(dec *sbyaml.Decoder, cur *sbyaml.Cursor) (MainViewRecord, error) {
	var m MainViewRecord
	_, err := dec.DecodeRecord(cur, classMainViewRecord, func(key string, v *yaml.Node) bool {
		if key == "mName" {
			m.Name = dec.CoerceString(v)
			return true
		}
		return false
	}, nil)
	return m, err
}

// channelExtraClasses are the manipulation record class names that may
// appear between successive ChannelRecord blocks (spec §3).
var channelExtraClasses = map[string]bool{
	classAlignManipRecord: true,
	classRatioManipRecord: true,
	classFRETManipRecord:  true,
	classRemapManipRecord: true,
	classHistogramRecord:  true,
}

// decodeChannelRecords decodes ChannelRecord.yaml's sequence of
// numChannels ChannelRecord blocks, dispatching any interleaved
// manipulation records into ChannelExtra via find-next-class (spec §4.2
// "Find-next-class utility").
func decodeChannelRecords(dec *sbyaml.Decoder, doc *sbyaml.Document, numChannels int) ([]ChannelRecord, error) {
	cur := sbyaml.NewCursor(doc)
	out := make([]ChannelRecord, 0, numChannels)

	for ch := 0; ch < numChannels; ch++ {
		var rec ChannelRecord
		matched, err := dec.DecodeRecord(cur, classChannelRecord,
			func(key string, v *yaml.Node) bool {
				switch key {
				case "mExposureTimeMs":
					rec.Exposure.ExposureTimeMs = dec.CoerceFloat64(v)
				case "mInterplaneSpacingMicron":
					rec.Exposure.InterplaneSpacingMicron = dec.CoerceFloat64(v)
				case "mXFactor":
					rec.Exposure.XFactor = dec.CoerceFloat64(v)
				case "mYFactor":
					rec.Exposure.YFactor = dec.CoerceFloat64(v)
				case "mName":
					rec.Def.Name = dec.CoerceString(v)
				case "mCamera":
					rec.Def.Camera = dec.CoerceString(v)
				case "mFluor":
					rec.Def.Fluor = dec.CoerceString(v)
				default:
					return false
				}
				return true
			},
			nil,
		)
		if err != nil {
			return out, err
		}
		if !matched {
			break
		}

		for {
			name, _, ok := sbyaml.FindNextClass(cur)
			if !ok || !channelExtraClasses[name] {
				break
			}
			extra := ChannelExtra{ClassName: name, Fields: map[string]string{}}
			_, err := dec.DecodeRecord(cur, name, nil, func(key string, v *yaml.Node) {
				extra.Fields[key] = dec.CoerceString(v)
			})
			if err != nil {
				return out, err
			}
			rec.Extras = append(rec.Extras, extra)
		}

		out = append(out, rec)
	}
	return out, nil
}

// decodeMasks decodes MaskRecord.yaml's bare "theNumMasks" count, that
// many individual CMaskRecord70 blocks, then a run of per-timepoint
// triples of bare keys (theTimepointIndex/theMaskCompressedSizes/
// theMaskFileOffsets) until a key fails to match, per the original's
// LoadMaks.
func decodeMasks(dec *sbyaml.Decoder, doc *sbyaml.Document, numTimepoints int) (Masks, error) {
	var m Masks
	cur := sbyaml.NewCursor(doc)

	countNode, ok := cur.TakeKey("theNumMasks")
	if !ok {
		return m, nil
	}
	numMasks := int(dec.CoerceInt32(countNode))
	m.NumMaskRecords = int32(numMasks)
	if numMasks <= 0 {
		return m, nil
	}

	for i := 0; i < numMasks; i++ {
		if _, err := dec.DecodeRecord(cur, classMaskRecord, nil, nil); err != nil {
			return m, err
		}
	}

	for {
		if _, ok := cur.TakeKey("theTimepointIndex"); !ok {
			break
		}
		sizesNode, ok := cur.TakeKey("theMaskCompressedSizes")
		if !ok {
			break
		}
		offsetsNode, ok := cur.TakeKey("theMaskFileOffsets")
		if !ok {
			break
		}
		var tp MaskTimepoint
		for _, n := range dec.CoerceInt32Vector(sizesNode) {
			tp.BlockSizes = append(tp.BlockSizes, int64(n))
		}
		for _, n := range dec.CoerceInt32Vector(offsetsNode) {
			tp.Offsets = append(tp.Offsets, int64(n))
		}
		m.Timepoints = append(m.Timepoints, tp)
	}
	return m, nil
}

// decodeAnnotations decodes AnnotationRecord.yaml: a leading
// CDataTableHeaderRecord70 header, then per timepoint four explicitly
// ordered, separately counted runs of typed annotation records (Cube,
// Base, FRAPRegion, Unknown), each bounded by its own bare
// "the*ListSize" key, per the original's LoadAnnotations.
func decodeAnnotations(dec *sbyaml.Decoder, doc *sbyaml.Document, numTimepoints int) (Annotations, error) {
	var a Annotations
	cur := sbyaml.NewCursor(doc)

	if _, err := dec.DecodeRecord(cur, classDataTableHeaderRecord, nil, nil); err != nil {
		return a, err
	}

	for {
		if _, ok := cur.TakeKey("theTimepointIndex"); !ok {
			break
		}
		var tp AnnotationTimepoint

		if err := decodeAnnotationRun(dec, cur, "theCubeAnnotation70ListSize", classCubeAnnotation, &tp.Cube); err != nil {
			return a, err
		}
		if err := decodeAnnotationRun(dec, cur, "theAnnotation70ListSize", classBaseAnnotation, &tp.Base); err != nil {
			return a, err
		}
		if err := decodeAnnotationRun(dec, cur, "theFRAPRegionAnnotation70ListSize", classFRAPRegionAnnotation, &tp.FRAP); err != nil {
			return a, err
		}
		if err := decodeAnnotationRun(dec, cur, "theUnknownAnnotation70ListSize", classUnknownAnnotation, &tp.Unknown); err != nil {
			return a, err
		}

		a.Timepoints = append(a.Timepoints, tp)
	}
	return a, nil
}

// decodeAnnotationRun reads a single bare "the*ListSize" count key, then
// decodes that many className records into *dst. Absence of the size key
// leaves dst untouched and is not an error: some timepoints omit empty
// lists entirely.
func decodeAnnotationRun(dec *sbyaml.Decoder, cur *sbyaml.Cursor, sizeKey, className string, dst *[]BaseAnnotation) error {
	sizeNode, ok := cur.TakeKey(sizeKey)
	if !ok {
		return nil
	}
	n := int(dec.CoerceInt32(sizeNode))
	for i := 0; i < n; i++ {
		ann, err := decodeBaseAnnotation(dec, cur, className)
		if err != nil {
			return err
		}
		*dst = append(*dst, ann)
	}
	return nil
}

func decodeBaseAnnotation(dec *sbyaml.Decoder, cur *sbyaml.Cursor, className string) (BaseAnnotation, error) {
	var ann BaseAnnotation
	_, err := dec.DecodeRecord(cur, className,
		func(key string, v *yaml.Node) bool {
			switch key {
			case "mGraphicType70":
				ann.GraphicType = dec.CoerceInt32(v)
			case "mChannelMask":
				ann.ChannelMask = dec.CoerceInt32(v)
			case "mGroupRef":
				ann.GroupRef = dec.CoerceInt32(v)
			case "mPlaneRef":
				ann.PlaneRef = dec.CoerceInt32(v)
			case "mSequenceRef":
				ann.SequenceRef = dec.CoerceInt32(v)
			case "mObjectRef":
				ann.ObjectRef = dec.CoerceInt32(v)
			case "mVertices":
				coords := dec.CoerceFloat64Vector(v)
				for i := 0; i+3 <= len(coords); i += 3 {
					ann.Vertices = append(ann.Vertices, Vertex{X: coords[i], Y: coords[i+1], Z: coords[i+2]})
				}
			default:
				return false
			}
			return true
		},
		func(key string, v *yaml.Node) {
			switch key {
			case "mStageOffsetMicrons.mX":
				ann.StageOffsetX = dec.CoerceFloat64(v)
			case "mStageOffsetMicrons.mY":
				ann.StageOffsetY = dec.CoerceFloat64(v)
			case "mFieldOffset.mX":
				ann.FieldOffsetX = dec.CoerceFloat64(v)
			case "mFieldOffset.mY":
				ann.FieldOffsetY = dec.CoerceFloat64(v)
			}
		},
	)
	return ann, err
}

// decodeElapsedTimes decodes ElapsedTimes.yaml: a single bare
// "theElapsedTimes" key whose value is a length-prefixed int vector, per
// the original's LoadElapsedTimes. Not a StartClass/ClassName record.
func decodeElapsedTimes(dec *sbyaml.Decoder, doc *sbyaml.Document) (ElapsedTimes, error) {
	var out ElapsedTimes
	cur := sbyaml.NewCursor(doc)
	node, ok := cur.TakeKey("theElapsedTimes")
	if !ok {
		return out, nil
	}
	for _, n := range dec.CoerceInt32Vector(node) {
		out = append(out, int64(n))
	}
	return out, nil
}

// decodeSAPositions decodes SAPositionData.yaml: a bare "theImageCount"
// key, then that many bare "theSAPositions" keys each holding a
// length-prefixed int vector, per the original's LoadSAPositions.
func decodeSAPositions(dec *sbyaml.Decoder, doc *sbyaml.Document) (SAPositions, error) {
	var out SAPositions
	cur := sbyaml.NewCursor(doc)
	countNode, ok := cur.TakeKey("theImageCount")
	if !ok {
		return out, nil
	}
	count := int(dec.CoerceInt32(countNode))
	for i := 0; i < count; i++ {
		node, ok := cur.TakeKey("theSAPositions")
		if !ok {
			break
		}
		out = append(out, dec.CoerceInt32Vector(node))
	}
	return out, nil
}

// decodeStagePositions decodes StagePositionData.yaml: bare
// "StructArraySize"/"StructArrayValues" keys, the latter a flat (not
// length-prefixed) float vector grouped into XYZ triples, per the
// original's LoadStagePosition.
func decodeStagePositions(dec *sbyaml.Decoder, doc *sbyaml.Document) (StagePositions, error) {
	var out StagePositions
	cur := sbyaml.NewCursor(doc)
	if _, ok := cur.TakeKey("StructArraySize"); !ok {
		return out, nil
	}
	node, ok := cur.TakeKey("StructArrayValues")
	if !ok {
		return out, nil
	}
	points := dec.CoerceFloat64VectorRaw(node)
	for i := 0; i+3 <= len(points); i += 3 {
		out = append(out, StagePosition{X: points[i], Y: points[i+1], Z: points[i+2]})
	}
	return out, nil
}

func decodeAuxData(dec *sbyaml.Decoder, doc *sbyaml.Document) (AuxData, error) {
	var aux AuxData
	cur := sbyaml.NewCursor(doc)

	kinds := []struct {
		className string
		dst       *[]AuxTable
	}{
		{"FloatAuxTable", &aux.FloatTables},
		{"DoubleAuxTable", &aux.DoubleTables},
		{"Int32AuxTable", &aux.Int32Tables},
		{"Int64AuxTable", &aux.Int64Tables},
		{"XMLAuxTable", &aux.XMLTables},
	}

	for {
		name, _, ok := sbyaml.FindNextClass(cur)
		if !ok {
			break
		}
		var kindDst *[]AuxTable
		for _, k := range kinds {
			if k.className == name {
				kindDst = k.dst
				break
			}
		}
		if kindDst == nil {
			break
		}

		var tbl AuxTable
		_, err := dec.DecodeRecord(cur, name, func(key string, v *yaml.Node) bool {
			switch key {
			case "mXMLDescriptor":
				tbl.XMLDescriptor = dec.CoerceString(v)
			case "mFloats":
				out := dec.CoerceFloat64Vector(v)
				tbl.Floats = make([]float32, len(out))
				for i, f := range out {
					tbl.Floats[i] = float32(f)
				}
			case "mDoubles":
				tbl.Doubles = dec.CoerceFloat64Vector(v)
			case "mInt32s":
				tbl.Int32s = dec.CoerceInt32Vector(v)
			case "mInt64s":
				for _, n := range dec.CoerceInt32Vector(v) {
					tbl.Int64s = append(tbl.Int64s, int64(n))
				}
			case "mXML":
				tbl.XML = dec.CoerceString(v)
			default:
				return false
			}
			return true
		}, nil)
		if err != nil {
			return aux, err
		}
		*kindDst = append(*kindDst, tbl)
	}
	return aux, nil
}

func errClassMismatch(name string) error {
	return &classMismatchError{name}
}

type classMismatchError struct{ name string }

func (e *classMismatchError) Error() string {
	return "expected class " + e.name + " not found at document start"
}
