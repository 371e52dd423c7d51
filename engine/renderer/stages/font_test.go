package stages

import (
	"image"
	_ "image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/prism/engine/math"
)

func TestLoadFontAtlas(t *testing.T) {
	fa, err := LoadFontAtlas("testdata/mono.fnt")
	require.NoError(t, err)
	assert.Equal(t, "Mono", fa.Face)
	assert.Equal(t, float32(16), fa.Size)
	assert.Equal(t, float32(18), fa.LineHeight)
	assert.Equal(t, float32(64), fa.Width)
	assert.Equal(t, float32(32), fa.Height)

	g, ok := fa.Glyph('V')
	require.True(t, ok)
	assert.Equal(t, Glyph{X: 8, Width: 8, Height: 12, XOffset: 1, YOffset: 2, XAdvance: 9}, g)
	assert.Equal(t, float32(-2), fa.Kerning('A', 'V'))
	assert.Zero(t, fa.Kerning('V', 'A'))

	require.NotNil(t, fa.Page)
	assert.Equal(t, 64, fa.Page.Bounds().Dx())
	assert.Equal(t, 32, fa.Page.Bounds().Dy())
	assert.Len(t, fa.Texels(), 64*32*4)
}

func TestFixedFontPageIsSolid(t *testing.T) {
	fa := FixedFontAtlas(8)
	texels := fa.Texels()
	require.Len(t, texels, 128*48*4)
	for i, v := range texels {
		if v != 0xff {
			t.Fatalf("texel byte %d is %#x", i, v)
		}
	}
}

func TestFitPageScalesToDescriptorSize(t *testing.T) {
	sheet := image.NewGray(image.Rect(0, 0, 4, 2))
	for i := range sheet.Pix {
		sheet.Pix[i] = 0x80
	}
	page := fitPage(sheet, 8, 4)
	assert.Equal(t, image.Rect(0, 0, 8, 4), page.Bounds())
	assert.Equal(t, uint8(0x80), page.RGBAAt(7, 3).R)
	assert.Equal(t, uint8(0xff), page.RGBAAt(7, 3).A)
}

func TestLayoutAppliesKerning(t *testing.T) {
	fa, err := LoadFontAtlas("testdata/mono.fnt")
	require.NoError(t, err)

	white := math.NewVec4One()
	verts, n := fa.Layout("AV", math.NewVec2(0, 0), 1, white, nil)
	require.Equal(t, 2, n)
	require.Len(t, verts, 12)
	// third vertex of each quad is its top left corner
	assert.Equal(t, math.NewVec2(0, 2), verts[2].Position)
	assert.Equal(t, math.NewVec2(8, 2), verts[8].Position)
	assert.Equal(t, math.NewVec2(0.125, 0), verts[8].Texcoord)
	assert.Equal(t, white, verts[8].Colour)
}

func TestLayoutFallsBackToQuestionMark(t *testing.T) {
	fa, err := LoadFontAtlas("testdata/mono.fnt")
	require.NoError(t, err)
	verts, n := fa.Layout("AZ", math.NewVec2(0, 0), 1, math.NewVec4One(), nil)
	assert.Equal(t, 2, n)
	assert.Equal(t, float32(24)/64, verts[8].Texcoord.X)
}

func TestFixedFontLayout(t *testing.T) {
	fa := FixedFontAtlas(16)
	verts, n := fa.Layout("ab\n c", math.NewVec2(10, 20), 2, math.NewVec4One(), nil)
	// the space has a glyph but is still drawn as a cell
	assert.Equal(t, 4, n)
	assert.Len(t, verts, 24)
	assert.Equal(t, math.NewVec2(10, 20), verts[2].Position)
	assert.Equal(t, math.NewVec2(42, 20), verts[8].Position)
	// "c" after the newline and the space
	assert.Equal(t, math.NewVec2(42, 52), verts[20].Position)
}
