package core

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/width"
)

var (
	ErrAtlasTooLarge = errors.New("glyph atlas exceeds max texture dimension")
	ErrEmptyAlphabet = errors.New("glyph alphabet is empty")
)

type AtlasOptions struct {
	Alphabet []string
	// FontData is a TTF/OTF blob; nil uses the embedded Go Mono face.
	FontData      []byte
	FontSize      float64
	Padding       int
	MinPadding    int
	MaxTextureDim int
}

// Atlas is the packed glyph texture plus its UV table, indexed like Glyphs.
type Atlas struct {
	Image      *image.RGBA
	Glyphs     []rune
	UVs        []mgl32.Vec4
	CellWidth  int
	CellHeight int
	Columns    int
	Rows       int
	Padding    int
	// Missing lists glyphs the face cannot render; they occupy empty cells.
	Missing []rune
}

// NormalizeAlphabet folds every entry to its narrow form, keeps the first
// rune of each entry and drops duplicates, preserving order.
func NormalizeAlphabet(alphabet []string) []rune {
	seen := make(map[rune]bool, len(alphabet))
	out := make([]rune, 0, len(alphabet))
	for _, g := range alphabet {
		for _, r := range width.Narrow.String(g) {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
			break
		}
	}
	return out
}

func BuildAtlas(opts AtlasOptions) (*Atlas, error) {
	glyphs := NormalizeAlphabet(opts.Alphabet)
	if len(glyphs) == 0 {
		return nil, ErrEmptyAlphabet
	}

	data := opts.FontData
	if data == nil {
		data = gomono.TTF
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    opts.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create face: %w", err)
	}
	defer face.Close()

	a := &Atlas{Glyphs: glyphs}

	contentW := 0
	advances := make([]int, len(glyphs))
	var buf sfnt.Buffer
	for i, r := range glyphs {
		if gi, err := f.GlyphIndex(&buf, r); err != nil || gi == 0 {
			a.Missing = append(a.Missing, r)
			continue
		}
		adv, ok := face.GlyphAdvance(r)
		if !ok {
			a.Missing = append(a.Missing, r)
			continue
		}
		advances[i] = adv.Ceil()
		contentW = max(contentW, advances[i])
	}
	if contentW == 0 {
		return nil, fmt.Errorf("font renders none of the %d glyphs", len(glyphs))
	}
	metrics := face.Metrics()
	ascent := metrics.Ascent.Ceil()
	contentH := ascent + metrics.Descent.Ceil()

	a.Columns = int(math.Ceil(math.Sqrt(float64(len(glyphs)))))
	a.Rows = (len(glyphs) + a.Columns - 1) / a.Columns

	pad := opts.Padding
	for {
		a.CellWidth = contentW + 2*pad
		a.CellHeight = contentH + 2*pad
		if opts.MaxTextureDim <= 0 || fits(a, opts.MaxTextureDim) {
			break
		}
		if pad <= opts.MinPadding {
			return nil, fmt.Errorf("%w: %dx%d > %d with %d glyphs at size %v",
				ErrAtlasTooLarge, a.Columns*a.CellWidth, a.Rows*a.CellHeight, opts.MaxTextureDim, len(glyphs), opts.FontSize)
		}
		pad--
	}
	a.Padding = pad

	w, h := a.Columns*a.CellWidth, a.Rows*a.CellHeight
	a.Image = image.NewRGBA(image.Rect(0, 0, w, h))
	a.UVs = make([]mgl32.Vec4, len(glyphs))

	d := &font.Drawer{Dst: a.Image, Src: image.White, Face: face}
	for i, r := range glyphs {
		x0 := (i % a.Columns) * a.CellWidth
		y0 := (i / a.Columns) * a.CellHeight
		a.UVs[i] = mgl32.Vec4{
			float32(x0) / float32(w),
			float32(y0) / float32(h),
			float32(x0+a.CellWidth) / float32(w),
			float32(y0+a.CellHeight) / float32(h),
		}
		if advances[i] == 0 {
			continue
		}
		d.Dot = fixed.P(x0+pad+(contentW-advances[i])/2, y0+pad+ascent)
		d.DrawString(string(r))
	}
	return a, nil
}

func fits(a *Atlas, limit int) bool {
	return a.Columns*a.CellWidth <= limit && a.Rows*a.CellHeight <= limit
}

// Size is the atlas texture size in pixels.
func (a *Atlas) Size() (int, int) {
	b := a.Image.Bounds()
	return b.Dx(), b.Dy()
}

// UVBytes packs the UV table for the storage buffer read by the compute stage.
func (a *Atlas) UVBytes() []byte {
	return pack(a.UVs)
}
