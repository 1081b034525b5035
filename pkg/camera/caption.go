package camera

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const jpegQuality = 85

var (
	shadow = image.NewUniform(color.Black)
	ink    = image.NewUniform(color.White)
)

// AddInfo writes the mission identity, message, time and data lines over
// the picture at path, in place. The identity line is drawn at double
// width.
func (c *Camera) AddInfo(path, id, subid, msg, data string) error {
	src, err := readJPEG(path)
	if err != nil {
		return err
	}

	img := image.NewRGBA(src.Bounds())
	draw.Draw(img, img.Bounds(), src, src.Bounds().Min, draw.Src)

	title := id + subid
	drawWide(img, title, image.Pt(10, 20), shadow)
	drawWide(img, title, image.Pt(12, 22), ink)

	lines := []struct {
		text string
		y    int
	}{
		{msg, 45},
		{c.now().UTC().Format(time.RFC3339), 65},
		{data, 80},
	}
	for _, l := range lines {
		drawText(img, l.text, image.Pt(10, l.y), shadow)
		drawText(img, l.text, image.Pt(11, l.y+1), ink)
	}

	return writeJPEG(path, img)
}

// drawText draws s with its top left corner at pt.
func drawText(dst draw.Image, s string, pt image.Point, col image.Image) {
	face := basicfont.Face7x13
	d := font.Drawer{
		Dst:  dst,
		Src:  col,
		Face: face,
		Dot:  fixed.P(pt.X, pt.Y+face.Ascent),
	}
	d.DrawString(s)
}

// drawWide renders s on a scratch image and scales it onto dst at twice
// the width, keeping only the glyph pixels.
func drawWide(dst draw.Image, s string, pt image.Point, col image.Image) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, s).Ceil()
	if w == 0 {
		return
	}
	h := face.Height

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(s)

	wide := image.NewAlpha(image.Rect(0, 0, 2*w, h))
	draw.NearestNeighbor.Scale(wide, wide.Bounds(), mask, mask.Bounds(), draw.Src, nil)

	r := image.Rect(pt.X, pt.Y, pt.X+2*w, pt.Y+h)
	draw.DrawMask(dst, r, col, image.Point{}, wide, image.Point{}, draw.Over)
}

func readJPEG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrIO, path, err)
	}
	return img, nil
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		return fmt.Errorf("%w: encode %s: %v", ErrIO, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}
