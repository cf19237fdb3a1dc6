package npy

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/nicolapapp/bioformats/internal/sberr"
)

// Decompress dispatches compressed on a's algorithm (spec §4.4). None and
// Zstd are implemented; the remaining recognised tags return an
// Unsupported error on actual use, matching the source's "recognised but
// not implemented" stance.
func Decompress(a Algorithm, compressed []byte, expectedLen int) ([]byte, error) {
	switch a {
	case AlgorithmNone:
		return compressed, nil
	case AlgorithmZstd:
		return decompressZstd(compressed, expectedLen)
	case AlgorithmZlib, AlgorithmLZ4, AlgorithmJetRaw, AlgorithmRLE:
		return nil, sberr.New(sberr.Unsupported, "npy.Decompress", fmt.Errorf("codec %s not implemented", a))
	default:
		return nil, sberr.New(sberr.Format, "npy.Decompress", fmt.Errorf("unknown compression algorithm tag %d", uint8(a)))
	}
}

var zstdDecoderOnce sync.Once
var zstdDecoder *zstd.Decoder

func getZstdDecoder() *zstd.Decoder {
	zstdDecoderOnce.Do(func() {
		// nil dictionary: block payloads carry no external dictionary (spec
		// makes no mention of one), mirroring zarr.readChunk's zstd.NewReader(nil).
		d, err := zstd.NewReader(nil)
		if err != nil {
			panic(err) // zstd.NewReader(nil) cannot fail
		}
		zstdDecoder = d
	})
	return zstdDecoder
}

func decompressZstd(compressed []byte, expectedLen int) ([]byte, error) {
	dec := getZstdDecoder()
	out, err := dec.DecodeAll(compressed, make([]byte, 0, expectedLen))
	if err != nil {
		return nil, sberr.New(sberr.Format, "npy.decompressZstd", err)
	}
	return out, nil
}
