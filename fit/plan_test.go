package fit

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name   string
		src    Size
		canvas Size
		mode   Mode
		scaled Size
		crop   image.Rectangle
		offset image.Point
	}{
		{
			name:   "landscape contain letterboxes horizontally",
			src:    Size{4000, 3000},
			canvas: Size{800, 480},
			mode:   Contain,
			scaled: Size{640, 480},
			crop:   image.Rect(0, 0, 640, 480),
			offset: image.Pt(80, 0),
		},
		{
			name:   "landscape cover crops top and bottom",
			src:    Size{4000, 3000},
			canvas: Size{800, 480},
			mode:   Cover,
			scaled: Size{800, 600},
			crop:   image.Rect(0, 60, 800, 540),
			offset: image.Pt(0, 0),
		},
		{
			name:   "exact match contain",
			src:    Size{800, 480},
			canvas: Size{800, 480},
			mode:   Contain,
			scaled: Size{800, 480},
			crop:   image.Rect(0, 0, 800, 480),
		},
		{
			name:   "exact match cover",
			src:    Size{800, 480},
			canvas: Size{800, 480},
			mode:   Cover,
			scaled: Size{800, 480},
			crop:   image.Rect(0, 0, 800, 480),
		},
		{
			name:   "near degenerate tall image keeps one pixel of width",
			src:    Size{1, 5000},
			canvas: Size{800, 480},
			mode:   Contain,
			scaled: Size{1, 480},
			crop:   image.Rect(0, 0, 1, 480),
			offset: image.Pt(399, 0),
		},
		{
			name:   "near degenerate wide image keeps one pixel of height",
			src:    Size{5000, 1},
			canvas: Size{800, 480},
			mode:   Contain,
			scaled: Size{800, 1},
			crop:   image.Rect(0, 0, 800, 1),
			offset: image.Pt(0, 239),
		},
		{
			name:   "near degenerate tall image cover",
			src:    Size{1, 5000},
			canvas: Size{800, 480},
			mode:   Cover,
			scaled: Size{800, 4000000},
			crop:   image.Rect(0, 1999760, 800, 2000240),
		},
		{
			name:   "portrait contain",
			src:    Size{3000, 4000},
			canvas: Size{800, 480},
			mode:   Contain,
			scaled: Size{360, 480},
			crop:   image.Rect(0, 0, 360, 480),
			offset: image.Pt(220, 0),
		},
		{
			name:   "upscale small image in contain",
			src:    Size{100, 50},
			canvas: Size{800, 480},
			mode:   Contain,
			scaled: Size{800, 400},
			crop:   image.Rect(0, 0, 800, 400),
			offset: image.Pt(0, 40),
		},
		{
			name:   "odd overflow floors the crop origin",
			src:    Size{803, 480},
			canvas: Size{800, 480},
			mode:   Cover,
			scaled: Size{803, 480},
			crop:   image.Rect(1, 0, 801, 480),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := Plan(tt.src, tt.canvas, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.scaled, l.Scaled)
			assert.Equal(t, tt.crop, l.Crop)
			assert.Equal(t, tt.offset, l.Offset)
		})
	}
}

func TestPlan_Errors(t *testing.T) {
	_, err := Plan(Size{100, 100}, Size{0, 480}, Contain)
	assert.ErrorIs(t, err, ErrInvalidCanvas)

	_, err = Plan(Size{100, 100}, Size{800, -1}, Cover)
	assert.ErrorIs(t, err, ErrInvalidCanvas)

	_, err = Plan(Size{0, 100}, Size{800, 480}, Contain)
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = Plan(Size{100, 100}, Size{800, 480}, Mode(7))
	assert.ErrorIs(t, err, ErrUnsupportedMode)
}

func TestPlan_Properties(t *testing.T) {
	dims := []int{1, 2, 3, 7, 16, 99, 480, 481, 640, 800, 1024, 3000, 4000, 5000}
	canvases := []Size{{800, 480}, {480, 800}, {1, 1}, {1920, 1080}, {7, 3}}

	for _, c := range canvases {
		for _, w := range dims {
			for _, h := range dims {
				src := Size{w, h}

				contain, err := Plan(src, c, Contain)
				require.NoError(t, err)
				r := contain.Raster()
				assert.LessOrEqual(t, r.Width, c.Width, "contain %v on %v", src, c)
				assert.LessOrEqual(t, r.Height, c.Height, "contain %v on %v", src, c)
				assert.GreaterOrEqual(t, r.Width, 1)
				assert.GreaterOrEqual(t, r.Height, 1)
				assert.True(t, contain.Scaled.Width == c.Width || contain.Scaled.Height == c.Height,
					"contain %v on %v touches no edge: %v", src, c, contain.Scaled)

				cover, err := Plan(src, c, Cover)
				require.NoError(t, err)
				assert.Equal(t, c, cover.Raster(), "cover %v on %v", src, c)
				assert.Equal(t, image.Point{}, cover.Offset)
				assert.True(t, cover.Crop.In(image.Rect(0, 0, cover.Scaled.Width, cover.Scaled.Height)))

				if int64(w)*int64(c.Height) == int64(h)*int64(c.Width) {
					assert.Equal(t, contain, cover, "equal ratio %v on %v", src, c)
					assert.Equal(t, c, contain.Scaled)
				}
			}
		}
	}
}

func TestPlan_RotationSwapsDimensions(t *testing.T) {
	canvas := Size{800, 480}
	for _, mode := range []Mode{Contain, Cover} {
		a, err := Plan(Rotate90.Apply(Size{4000, 3000}), canvas, mode)
		require.NoError(t, err)
		b, err := Plan(Size{3000, 4000}, canvas, mode)
		require.NoError(t, err)
		assert.Equal(t, b, a)
	}
	assert.Equal(t, Size{4000, 3000}, Rotate180.Apply(Size{4000, 3000}))
	assert.Equal(t, Size{3000, 4000}, Rotate270.Apply(Size{4000, 3000}))
}
