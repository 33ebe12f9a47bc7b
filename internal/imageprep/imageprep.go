// Package imageprep derives preprocessed copies of label photographs that
// recognize better than the original: a contrast-equalized and sharpened
// copy, an adaptive-threshold binarization and a 1.5x upscale.
package imageprep

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg" // register decoder
	"image/png"
	"math"

	"github.com/rotisserie/eris"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

// Variant is one preprocessed copy of an image, PNG encoded.
type Variant struct {
	Name string
	Data []byte
}

// Generator produces preprocessed variants of encoded image bytes.
type Generator interface {
	Variants(ctx context.Context, data []byte) ([]Variant, error)
}

// None is a Generator that produces no variants.
type None struct{}

// Variants returns nil.
func (None) Variants(context.Context, []byte) ([]Variant, error) { return nil, nil }

// Options tunes the Preprocessor. Zero values take the defaults.
type Options struct {
	// ClipLimit caps each histogram bin at ClipLimit times the mean bin count
	// before equalization. Default 2.
	ClipLimit float64
	// BlockSize is the side of the adaptive-threshold window. Default 31.
	BlockSize int
	// Offset is subtracted from the local mean before thresholding. Default 15.
	Offset int
	// Scale is the upscale factor. Default 1.5.
	Scale float64
}

// Preprocessor is the default Generator.
type Preprocessor struct {
	opts Options
}

// New creates a Preprocessor.
func New(opts Options) *Preprocessor {
	if opts.ClipLimit <= 0 {
		opts.ClipLimit = 2
	}
	if opts.BlockSize <= 1 {
		opts.BlockSize = 31
	}
	if opts.Offset == 0 {
		opts.Offset = 15
	}
	if opts.Scale <= 1 {
		opts.Scale = 1.5
	}
	return &Preprocessor{opts: opts}
}

// Variants decodes data and returns the sharpened, threshold and upscaled
// variants in that order.
func (p *Preprocessor) Variants(ctx context.Context, data []byte) ([]Variant, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrap(err, "imageprep: decode")
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, eris.New("imageprep: empty image")
	}

	eq := Equalize(ToGray(src), p.opts.ClipLimit)
	sharp := Sharpen(eq)
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "imageprep: sharpen")
	}
	thr := AdaptiveThreshold(eq, p.opts.BlockSize, p.opts.Offset)
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "imageprep: threshold")
	}
	up := Upscale(sharp, p.opts.Scale)

	out := make([]Variant, 0, 3)
	for _, v := range []struct {
		name string
		img  *image.Gray
	}{{"sharpened", sharp}, {"threshold", thr}, {"upscaled", up}} {
		var buf bytes.Buffer
		if err := png.Encode(&buf, v.img); err != nil {
			return nil, eris.Wrapf(err, "imageprep: encode %s", v.name)
		}
		out = append(out, Variant{Name: v.name, Data: buf.Bytes()})
	}
	return out, nil
}

// ToGray converts img to an 8-bit grayscale image anchored at the origin.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(g, g.Bounds(), img, b.Min, draw.Src)
	return g
}

// Equalize applies histogram equalization with each bin clipped at
// clip times the mean bin count; the clipped excess is spread evenly.
func Equalize(g *image.Gray, clip float64) *image.Gray {
	var hist [256]float64
	for _, v := range g.Pix {
		hist[v]++
	}
	total := float64(len(g.Pix))
	limit := clip * total / 256
	var excess float64
	for i, h := range hist {
		if h > limit {
			excess += h - limit
			hist[i] = limit
		}
	}
	bonus := excess / 256

	var lut [256]uint8
	cdf, cdfMin := 0.0, -1.0
	for i, h := range hist {
		cdf += h + bonus
		if cdfMin < 0 && cdf > 0 {
			cdfMin = cdf
		}
		if cdfMin >= 0 && total > cdfMin {
			lut[i] = clamp((cdf - cdfMin) / (total - cdfMin) * 255)
		} else {
			lut[i] = uint8(i)
		}
	}

	out := image.NewGray(g.Rect)
	for i, v := range g.Pix {
		out.Pix[i] = lut[v]
	}
	return out
}

// Sharpen applies an unsharp mask: 1.6*img - 0.6*blur(img).
func Sharpen(g *image.Gray) *image.Gray {
	blur := BoxBlur(g, 2)
	out := image.NewGray(g.Rect)
	for i := range g.Pix {
		out.Pix[i] = clamp(1.6*float64(g.Pix[i]) - 0.6*float64(blur.Pix[i]))
	}
	return out
}

// BoxBlur replaces each pixel with the mean of its (2r+1)² neighbourhood,
// clipped at the image border.
func BoxBlur(g *image.Gray, r int) *image.Gray {
	sum := newIntegral(g)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(g.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Pix[y*out.Stride+x] = uint8(sum.mean(x-r, y-r, x+r, y+r))
		}
	}
	return out
}

// AdaptiveThreshold binarizes g: a pixel becomes white when it is brighter
// than the mean of its block×block window minus offset.
func AdaptiveThreshold(g *image.Gray, block, offset int) *image.Gray {
	sum := newIntegral(g)
	r := block / 2
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(g.Rect)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := float64(g.Pix[y*g.Stride+x])
			if v > sum.mean(x-r, y-r, x+r, y+r)-float64(offset) {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// Upscale resizes g by factor with Catmull-Rom interpolation.
func Upscale(g *image.Gray, factor float64) *image.Gray {
	w := int(float64(g.Rect.Dx()) * factor)
	h := int(float64(g.Rect.Dy()) * factor)
	out := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(out, out.Bounds(), g, g.Bounds(), draw.Src, nil)
	return out
}

// integral is a summed-area table with a zero row and column prepended.
type integral struct {
	w, h int
	sums []int64
}

func newIntegral(g *image.Gray) integral {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	it := integral{w: w, h: h, sums: make([]int64, (w+1)*(h+1))}
	for y := 1; y <= h; y++ {
		var row int64
		for x := 1; x <= w; x++ {
			row += int64(g.Pix[(y-1)*g.Stride+x-1])
			it.sums[y*(w+1)+x] = it.sums[(y-1)*(w+1)+x] + row
		}
	}
	return it
}

// mean averages the inclusive rectangle (x0,y0)-(x1,y1) clipped to the image.
func (it integral) mean(x0, y0, x1, y1 int) float64 {
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, it.w-1), min(y1, it.h-1)
	stride := it.w + 1
	s := it.sums[(y1+1)*stride+x1+1] - it.sums[y0*stride+x1+1] - it.sums[(y1+1)*stride+x0] + it.sums[y0*stride+x0]
	n := (x1 - x0 + 1) * (y1 - y0 + 1)
	return float64(s) / float64(n)
}

func clamp(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}
