// Package previewrender rasterizes one or more decoded microscopy planes
// into a PNG preview tile, adapted from the teacher's tile-drawing and
// pooled-buffer rendering pattern.
package previewrender

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"

	"github.com/fogleman/gg"

	"github.com/nicolapapp/bioformats/pkg/colormap"
)

// Config configures the renderer.
type Config struct {
	DefaultColormap string
}

// Channel is one decoded plane to composite into the tile, already read
// via Slide.ReadPlane as little-endian uint16 samples.
type Channel struct {
	Index int
	Raw   []byte // len == width*height*2
}

// Renderer rasterizes decoded planes into PNG tiles.
type Renderer struct {
	config     Config
	bufferPool sync.Pool
	colormaps  map[string]colormap.Colormap
}

// NewRenderer builds a Renderer from cfg.
func NewRenderer(cfg Config) *Renderer {
	r := &Renderer{
		config: cfg,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 32*1024))
			},
		},
		colormaps: map[string]colormap.Colormap{
			"grays":       colormap.Grays,
			"viridis":     colormap.Viridis,
			"categorical": colormap.Categorical,
		},
	}
	return r
}

// RenderSingleChannel renders one channel's plane at width x height using
// the named colormap (falling back to the configured default), stretching
// the plane's observed min/max to [0,1].
func (r *Renderer) RenderSingleChannel(raw []byte, width, height int, colormapName string) ([]byte, error) {
	cmap, ok := r.colormaps[colormapName]
	if !ok {
		cmap = r.colormaps[r.config.DefaultColormap]
	}

	samples, lo, hi := decodeU16(raw, width*height)
	dc := gg.NewContext(width, height)

	span := float64(hi) - float64(lo)
	if span <= 0 {
		span = 1
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := samples[y*width+x]
			t := (float64(v) - float64(lo)) / span
			dc.SetColor(cmap.At(t))
			dc.DrawRectangle(float64(x), float64(y), 1, 1)
			dc.Fill()
		}
	}
	return r.encode(dc)
}

// RenderComposite additively blends each channel's plane through its
// fixed pseudocolor hue (colormap.ChannelColor), producing a multi-channel
// fluorescence-style composite tile.
func (r *Renderer) RenderComposite(channels []Channel, width, height int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for _, ch := range channels {
		samples, lo, hi := decodeU16(ch.Raw, width*height)
		span := float64(hi) - float64(lo)
		if span <= 0 {
			span = 1
		}
		hue := colormap.ChannelColor(ch.Index)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				v := samples[y*width+x]
				t := (float64(v) - float64(lo)) / span
				scaled := colormap.ScaleChannel(hue, t)
				addBlend(img, x, y, scaled)
			}
		}
	}

	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("previewrender: encode composite: %w", err)
	}
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

func addBlend(img *image.RGBA, x, y int, c color.RGBA) {
	i := img.PixOffset(x, y)
	img.Pix[i] = clampAdd(img.Pix[i], c.R)
	img.Pix[i+1] = clampAdd(img.Pix[i+1], c.G)
	img.Pix[i+2] = clampAdd(img.Pix[i+2], c.B)
	img.Pix[i+3] = 255
}

func clampAdd(a, b uint8) uint8 {
	sum := int(a) + int(b)
	if sum > 255 {
		return 255
	}
	return uint8(sum)
}

func decodeU16(raw []byte, count int) (samples []uint16, lo, hi uint16) {
	samples = make([]uint16, count)
	lo = 0xFFFF
	for i := 0; i < count && i*2+1 < len(raw); i++ {
		v := binary.LittleEndian.Uint16(raw[i*2 : i*2+2])
		samples[i] = v
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return samples, lo, hi
}

func (r *Renderer) encode(dc *gg.Context) ([]byte, error) {
	buf := r.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		r.bufferPool.Put(buf)
	}()
	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("previewrender: encode: %w", err)
	}
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}
