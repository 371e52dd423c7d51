package stages

import (
	"fmt"
	"image"
	_ "image/png"

	"github.com/fzipp/bmfont"
	"golang.org/x/image/draw"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/math"
)

// Glyph is the atlas rectangle and metrics of one codepoint, in pixels.
type Glyph struct {
	X, Y, Width, Height float32
	XOffset, YOffset    float32
	XAdvance            float32
}

// FontAtlas is what the overlay needs from a bitmap font: glyph
// rectangles, kerning, line metrics and the glyph sheet.
type FontAtlas struct {
	Face          string
	Size          float32
	LineHeight    float32
	Baseline      float32
	Width, Height float32
	// Page is the glyph sheet, Width x Height, premultiplied. Its red
	// channel is glyph coverage for alpha and greyscale sheets alike.
	Page *image.RGBA

	glyphs     map[rune]Glyph
	kerning    map[[2]rune]float32
	tabAdvance float32
}

// LoadFontAtlas reads an AngelCode .fnt descriptor.
func LoadFontAtlas(path string) (*FontAtlas, error) {
	font, err := bmfont.Load(path)
	if err != nil {
		return nil, fmt.Errorf("bitmap font %s: %w", path, err)
	}
	d := font.Descriptor
	sheet, ok := font.PageSheets[0]
	if !ok {
		return nil, fmt.Errorf("bitmap font %s: no page 0", path)
	}
	if len(d.Pages) > 1 {
		core.LogWarn("bitmap font %s: %d pages, glyphs outside page 0 sample the wrong sheet", path, len(d.Pages))
	}
	fa := &FontAtlas{
		Face:       d.Info.Face,
		Size:       float32(d.Info.Size),
		LineHeight: float32(d.Common.LineHeight),
		Baseline:   float32(d.Common.Base),
		Width:      float32(d.Common.ScaleW),
		Height:     float32(d.Common.ScaleH),
		glyphs:     make(map[rune]Glyph, len(d.Chars)),
		kerning:    make(map[[2]rune]float32, len(d.Kerning)),
		Page:       fitPage(sheet, d.Common.ScaleW, d.Common.ScaleH),
	}
	for _, c := range d.Chars {
		fa.glyphs[rune(c.ID)] = Glyph{
			X:        float32(c.X),
			Y:        float32(c.Y),
			Width:    float32(c.Width),
			Height:   float32(c.Height),
			XOffset:  float32(c.XOffset),
			YOffset:  float32(c.YOffset),
			XAdvance: float32(c.XAdvance),
		}
	}
	for pair, k := range d.Kerning {
		fa.kerning[[2]rune{rune(pair.First), rune(pair.Second)}] = float32(k.Amount)
	}
	fa.setupTab()
	core.LogDebug("bitmap font %s loaded: %s %.0fpx, %d glyphs", path, fa.Face, fa.Size, len(fa.glyphs))
	return fa, nil
}

// FixedFontAtlas lays printable ASCII out on a 16 column grid of square
// cells. It is the overlay's font when none is configured.
func FixedFontAtlas(cell float32) *FontAtlas {
	const columns = 16
	fa := &FontAtlas{
		Face:       "fixed",
		Size:       cell,
		LineHeight: cell,
		Baseline:   cell,
		Width:      columns * cell,
		Height:     6 * cell,
		glyphs:     make(map[rune]Glyph, 95),
		kerning:    make(map[[2]rune]float32),
	}
	// Every cell is solid, so glyphs draw as blocks.
	fa.Page = image.NewRGBA(image.Rect(0, 0, int(fa.Width), int(fa.Height)))
	for i := range fa.Page.Pix {
		fa.Page.Pix[i] = 0xff
	}
	for r := rune(32); r < 127; r++ {
		i := float32(r - 32)
		col := float32(int(i) % columns)
		row := float32(int(i) / columns)
		fa.glyphs[r] = Glyph{X: col * cell, Y: row * cell, Width: cell, Height: cell, XAdvance: cell}
	}
	fa.setupTab()
	return fa
}

// fitPage converts a decoded sheet to RGBA at the size the descriptor
// declares, scaling when the file disagrees with it.
func fitPage(sheet image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	b := sheet.Bounds()
	if b.Dx() == width && b.Dy() == height {
		draw.Draw(dst, dst.Bounds(), sheet, b.Min, draw.Src)
		return dst
	}
	core.LogWarn("bitmap font sheet is %dx%d, descriptor says %dx%d; scaling", b.Dx(), b.Dy(), width, height)
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), sheet, b, draw.Src, nil)
	return dst
}

// Texels returns the page as tightly packed RGBA8 rows.
func (fa *FontAtlas) Texels() []byte {
	return fa.Page.Pix
}

func (fa *FontAtlas) setupTab() {
	if g, ok := fa.glyphs['\t']; ok {
		fa.tabAdvance = g.XAdvance
		return
	}
	if g, ok := fa.glyphs[' ']; ok {
		fa.tabAdvance = g.XAdvance * 4
		return
	}
	fa.tabAdvance = fa.Size * 4
}

func (fa *FontAtlas) Glyph(r rune) (Glyph, bool) {
	g, ok := fa.glyphs[r]
	return g, ok
}

func (fa *FontAtlas) Kerning(first, second rune) float32 {
	return fa.kerning[[2]rune{first, second}]
}

func (fa *FontAtlas) lookup(r rune) (Glyph, bool) {
	if g, ok := fa.glyphs[r]; ok {
		return g, true
	}
	if g, ok := fa.glyphs[-1]; ok {
		return g, true
	}
	g, ok := fa.glyphs['?']
	return g, ok
}

// Layout appends two triangles per visible glyph of text to out, top left
// at origin, and returns the extended slice and the glyph count.
func (fa *FontAtlas) Layout(text string, origin math.Vec2, scale float32, colour math.Vec4, out []math.Vertex2D) ([]math.Vertex2D, int) {
	if scale == 0 {
		scale = 1
	}
	runes := []rune(text)
	x, y := float32(0), float32(0)
	n := 0
	for i, r := range runes {
		switch r {
		case '\n':
			x = 0
			y += fa.LineHeight
			continue
		case '\t':
			x += fa.tabAdvance
			continue
		}
		g, ok := fa.lookup(r)
		if !ok {
			continue
		}
		if g.Width > 0 && g.Height > 0 {
			minx := origin.X + (x+g.XOffset)*scale
			miny := origin.Y + (y+g.YOffset)*scale
			maxx := minx + g.Width*scale
			maxy := miny + g.Height*scale
			tminx := g.X / fa.Width
			tmaxx := (g.X + g.Width) / fa.Width
			tminy := g.Y / fa.Height
			tmaxy := (g.Y + g.Height) / fa.Height

			p0 := math.Vertex2D{Position: math.NewVec2(minx, miny), Texcoord: math.NewVec2(tminx, tminy), Colour: colour}
			p1 := math.Vertex2D{Position: math.NewVec2(maxx, miny), Texcoord: math.NewVec2(tmaxx, tminy), Colour: colour}
			p2 := math.Vertex2D{Position: math.NewVec2(maxx, maxy), Texcoord: math.NewVec2(tmaxx, tmaxy), Colour: colour}
			p3 := math.Vertex2D{Position: math.NewVec2(minx, maxy), Texcoord: math.NewVec2(tminx, tmaxy), Colour: colour}
			out = append(out, p3, p2, p0, p1, p0, p2)
			n++
		}
		kerning := float32(0)
		if i+1 < len(runes) {
			kerning = fa.Kerning(r, runes[i+1])
		}
		x += g.XAdvance + kerning
	}
	return out, n
}
