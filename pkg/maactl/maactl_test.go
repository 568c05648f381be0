package maactl

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
)

func TestUnboundBinding(t *testing.T) {
	var b Binding
	assert.ErrorIs(t, b.Press("a"), ErrUnbound)
	assert.ErrorIs(t, b.Release("a"), ErrUnbound)
	_, err := b.Capture(geom.Rect{0, 0, 10, 10})
	assert.ErrorIs(t, err, ErrUnbound)
	assert.ErrorIs(t, b.Activate(), ErrUnbound)
	assert.False(t, b.Focused())

	b.BindContext(nil)
	assert.False(t, b.Focused())
}

func TestCrop(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1280, 720))
	out, err := crop(img, geom.Rect{1100, 20, 160, 120})
	require.NoError(t, err)
	assert.Equal(t, 160, out.Bounds().Dx())
	assert.Equal(t, 120, out.Bounds().Dy())
	assert.Equal(t, image.Pt(1100, 20), out.Bounds().Min)

	_, err = crop(img, geom.Rect{1200, 20, 160, 120})
	assert.ErrorIs(t, err, ErrRegionOutside)
}

func TestCropOffsetBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(100, 100, 200, 200))
	out, err := crop(img, geom.Rect{10, 10, 20, 20})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(110, 110, 130, 130), out.Bounds())
}

type opaque struct{ image.Image }

func TestCropNeedsSubImage(t *testing.T) {
	_, err := crop(opaque{image.NewGray(image.Rect(0, 0, 50, 50))}, geom.Rect{0, 0, 10, 10})
	assert.ErrorIs(t, err, errNotCroppable)
}
