// Package pdf lays a story out as a print-style PDF: a title page followed
// by one landscape page per story page, illustration full-bleed with the
// text on a darkened band at the bottom.
package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/go-pdf/fpdf"

	"storybook/internal/domain"
	"storybook/internal/infra"
)

// Page geometry in points, matching the video frame aspect.
const (
	pageWidth  = 1920.0
	pageHeight = 1080.0

	// Raster resolution for the gg-painted layers.
	rasterWidth  = 1920
	rasterHeight = 1080
	bandHeight   = 300
)

type Options struct {
	FontPath string
	Logger   infra.Logger
}

type Exporter struct {
	opts Options
}

func NewExporter(opts Options) *Exporter {
	return &Exporter{opts: opts}
}

// Export renders the story to PDF bytes. Pages with a missing or
// undecodable illustration still get their page: flat background, text
// intact. An empty story is an error.
func (e *Exporter) Export(story *domain.Story) ([]byte, error) {
	if len(story.Pages) == 0 {
		return nil, domain.ErrExportEmpty
	}

	doc := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)

	if err := e.addTitlePage(doc, story); err != nil {
		return nil, err
	}
	for _, p := range story.Pages {
		if err := e.addStoryPage(doc, p); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf output: %w", err)
	}
	e.opts.Logger.Info().
		Str("story_id", story.ID).
		Int("pages", len(story.Pages)+1).
		Msg("pdf exported")
	return buf.Bytes(), nil
}

// addTitlePage rasterizes the cover with gg so the title typesets the same
// way the in-page text does, then places it full-bleed.
func (e *Exporter) addTitlePage(doc *fpdf.Fpdf, story *domain.Story) error {
	doc.AddPage()
	return e.placeRaster(doc, e.renderCover(story), "cover", 0, 0, pageWidth, pageHeight)
}

// renderCover paints the title page: title, theme label and lesson stacked
// and centered.
func (e *Exporter) renderCover(story *domain.Story) image.Image {
	dc := gg.NewContext(rasterWidth, rasterHeight)
	dc.SetRGB(0.10, 0.12, 0.22)
	dc.Clear()

	e.loadFace(dc, 96)
	dc.SetRGB(1, 1, 1)
	dc.DrawStringWrapped(story.Title, rasterWidth/2, rasterHeight*0.40, 0.5, 0.5, rasterWidth*0.8, 1.3, gg.AlignCenter)

	if story.Theme != "" {
		e.loadFace(dc, 40)
		dc.SetRGBA(1, 1, 1, 0.6)
		dc.DrawStringWrapped(story.Theme, rasterWidth/2, rasterHeight*0.54, 0.5, 0.5, rasterWidth*0.7, 1.3, gg.AlignCenter)
	}
	if story.Lesson != "" {
		e.loadFace(dc, 44)
		dc.SetRGBA(1, 1, 1, 0.75)
		dc.DrawStringWrapped(story.Lesson, rasterWidth/2, rasterHeight*0.66, 0.5, 0.5, rasterWidth*0.7, 1.4, gg.AlignCenter)
	}
	return dc.Image()
}

func (e *Exporter) addStoryPage(doc *fpdf.Fpdf, p domain.Page) error {
	doc.AddPage()

	img := e.decodeIllustration(p)
	if img != nil {
		name := fmt.Sprintf("page-%d", p.Number)
		if err := e.placeCover(doc, img, name); err != nil {
			return err
		}
	} else {
		doc.SetFillColor(24, 28, 46)
		doc.Rect(0, 0, pageWidth, pageHeight, "F")
	}

	if p.Text != "" {
		band, err := e.renderBand(p.Text)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("band-%d", p.Number)
		if err := e.registerAndPlace(doc, band, name, 0, pageHeight-bandHeight, pageWidth, bandHeight); err != nil {
			return err
		}
	}
	return e.stampPageNumber(doc, p.Number)
}

// stampPageNumber prints the page number in the lower right corner, over
// the band when one is present. The built-in Helvetica face keeps the stamp
// independent of any configured font file.
func (e *Exporter) stampPageNumber(doc *fpdf.Fpdf, number int) error {
	doc.SetFont("Helvetica", "", 30)
	doc.SetTextColor(255, 255, 255)
	label := strconv.Itoa(number)
	doc.Text(pageWidth-48-doc.GetStringWidth(label), pageHeight-32, label)
	if doc.Err() {
		return fmt.Errorf("stamp page number: %w", doc.Error())
	}
	return nil
}

// decodeIllustration returns nil for missing or corrupt image payloads; the
// page still renders without it.
func (e *Exporter) decodeIllustration(p domain.Page) image.Image {
	if !p.Image.Ready() {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(p.Image.Payload))
	if err != nil {
		e.opts.Logger.Warn().Int("page", p.Number).Err(err).Msg("page image undecodable, laying out without it")
		return nil
	}
	return img
}

// renderBand paints the bottom text band as a PNG raster: gradient backdrop
// plus shadowed wrapped text.
func (e *Exporter) renderBand(text string) ([]byte, error) {
	dc := gg.NewContext(rasterWidth, bandHeight)

	grad := gg.NewLinearGradient(0, 0, 0, bandHeight)
	grad.AddColorStop(0, bandColor(0))
	grad.AddColorStop(1, bandColor(210))
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, rasterWidth, bandHeight)
	dc.Fill()

	e.loadFace(dc, 52)
	maxWidth := float64(rasterWidth) * 0.84
	dc.SetRGBA(0, 0, 0, 0.8)
	dc.DrawStringWrapped(text, rasterWidth/2+2, bandHeight/2+2, 0.5, 0.5, maxWidth, 1.4, gg.AlignCenter)
	dc.SetRGB(1, 1, 1)
	dc.DrawStringWrapped(text, rasterWidth/2, bandHeight/2, 0.5, 0.5, maxWidth, 1.4, gg.AlignCenter)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("encode band: %w", err)
	}
	return buf.Bytes(), nil
}

// placeCover scales the illustration to cover the page, cropping overflow by
// letting fpdf clip at the page bounds.
func (e *Exporter) placeCover(doc *fpdf.Fpdf, img image.Image, name string) error {
	b := img.Bounds()
	scale := pageWidth / float64(b.Dx())
	if s := pageHeight / float64(b.Dy()); s > scale {
		scale = s
	}
	w := float64(b.Dx()) * scale
	h := float64(b.Dy()) * scale
	return e.placeRaster(doc, img, name, (pageWidth-w)/2, (pageHeight-h)/2, w, h)
}

// placeRaster re-encodes img as PNG and registers it under name. Going
// through PNG keeps fpdf away from exotic source encodings.
func (e *Exporter) placeRaster(doc *fpdf.Fpdf, img image.Image, name string, x, y, w, h float64) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return e.registerAndPlace(doc, buf.Bytes(), name, x, y, w, h)
}

func (e *Exporter) registerAndPlace(doc *fpdf.Fpdf, pngData []byte, name string, x, y, w, h float64) error {
	opts := fpdf.ImageOptions{ImageType: "png"}
	doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(pngData))
	doc.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	if doc.Err() {
		return fmt.Errorf("place %s: %w", name, doc.Error())
	}
	return nil
}

func (e *Exporter) loadFace(dc *gg.Context, size float64) {
	if e.opts.FontPath == "" {
		return
	}
	if err := dc.LoadFontFace(e.opts.FontPath, size); err != nil {
		e.opts.Logger.Warn().Err(err).Msg("font load failed, using default face")
	}
}

func bandColor(alpha uint8) color.Color {
	return color.NRGBA{A: alpha}
}
