package display

import (
	"image"
	"image/color"
)

// prepareCursor rewrites the captured pointer shape in place: pixels
// matching the engine's mask color become fully transparent, and pure
// yellow pixels become black (the I-beam pointer renders yellow on the
// engine surface and would be invisible over text otherwise). Returns
// false when the shape has no transparent pixels or no visible pixels;
// such captures are rendering artifacts and must not replace the
// browser cursor.
func prepareCursor(img *image.RGBA, mask [3]uint8) bool {
	var transparent, visible int

	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			if c.R == mask[0] && c.G == mask[1] && c.B == mask[2] {
				img.SetRGBA(x, y, color.RGBA{})
				transparent++
				continue
			}
			if c.R == 0xff && c.G == 0xff && c.B == 0x00 {
				img.SetRGBA(x, y, color.RGBA{A: 0xff})
			}
			visible++
		}
	}

	return transparent > 0 && visible > 0
}
