package visual

import (
	"image"
	"image/color"
	"math"
	"sync"
)

// Rendering constants, tuned against the same frame the analyzer sees.
const (
	maxBars      = 128 // Bars drawn across the canvas width
	barBoost     = 3.0 // Height boost applied to raw bin values
	bassBinEnd   = 8   // Bins that drive the radial glow
	energyBinEnd = 32  // Bins averaged for the ambient glow
	fadeAlpha    = 77  // ~0.3 alpha fade for the trail effect
	glowMinBass  = 0.03
)

// Background is the static fill used when playback is stopped.
var Background = color.RGBA{R: 10, G: 25, B: 41, A: 255}

// glowColor is the bass glow tint (magenta).
var glowColor = color.RGBA{R: 255, G: 16, B: 240, A: 255}

// Renderer paints beat-reactive frames from raw frequency bins. It retains
// the previous frame so each new one can fade it instead of clearing,
// producing the trail effect. All methods are safe for concurrent use; the
// analyzer's frame callback feeds SetFrame while the UI thread calls Render.
type Renderer struct {
	mu      sync.Mutex
	bins    []byte
	playing bool
	prev    *image.RGBA
}

// NewRenderer creates an empty renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// SetFrame stores a copy of the latest frequency bins.
func (r *Renderer) SetFrame(bins []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cap(r.bins) < len(bins) {
		r.bins = make([]byte, len(bins))
	}
	r.bins = r.bins[:len(bins)]
	copy(r.bins, bins)
}

// SetPlaying flips the renderer between reactive and static mode. Leaving
// playing mode also drops the retained trail frame.
func (r *Renderer) SetPlaying(playing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.playing = playing
	if !playing {
		r.prev = nil
		r.bins = r.bins[:0]
	}
}

// Render paints a w by h frame. When playback is stopped or no frequency
// data has arrived it returns a static background fill.
func (r *Renderer) Render(w, h int) image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()

	if w <= 0 || h <= 0 {
		return image.NewRGBA(image.Rect(0, 0, max(w, 0), max(h, 0)))
	}

	if !r.playing || len(r.bins) == 0 {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		fill(img, Background)
		return img
	}

	img := r.prev
	if img == nil || img.Bounds().Dx() != w || img.Bounds().Dy() != h {
		img = image.NewRGBA(image.Rect(0, 0, w, h))
		fill(img, Background)
	}

	// Translucent fade toward the background keeps a trail of the last
	// few frames visible.
	blendFill(img, Background, fadeAlpha)

	r.drawBars(img, w, h)
	r.drawBassGlow(img, w, h)
	r.drawAmbientGlow(img, w, h)

	r.prev = img
	return img
}

// drawBars paints one vertical bar per bin, low frequencies on the left,
// hue sweeping from violet toward cyan with height.
func (r *Renderer) drawBars(img *image.RGBA, w, h int) {
	barCount := min(len(r.bins), maxBars)
	if barCount == 0 {
		return
	}
	barWidth := float64(w) / float64(barCount)

	for i := range barCount {
		value := float64(r.bins[i]) / 255
		boosted := min(value*barBoost, 1.0)
		barHeight := int(boosted * float64(h))
		if barHeight < 2 {
			continue
		}

		hue := 240 + float64(i)/float64(barCount)*120
		lightness := 0.5 + boosted*0.3
		col := hslToRGB(hue, 0.9, lightness)

		x0 := int(float64(i) * barWidth)
		x1 := max(x0+int(barWidth)-1, x0+1)
		for y := h - barHeight; y < h; y++ {
			// Bars brighten toward the top of the column.
			frac := float64(y-(h-barHeight)) / float64(barHeight)
			rowAlpha := uint8(250 - frac*72)
			for x := x0; x < x1 && x < w; x++ {
				blendPixel(img, x, y, col, rowAlpha)
			}
		}
	}
}

// drawBassGlow paints a radial glow centered on the canvas, scaled by the
// peak of the sub-bass bins.
func (r *Renderer) drawBassGlow(img *image.RGBA, w, h int) {
	var bass float64
	for _, b := range r.bins[:min(bassBinEnd, len(r.bins))] {
		if v := float64(b) / 255; v > bass {
			bass = v
		}
	}
	if bass <= glowMinBass {
		return
	}

	radius := 0.1*float64(min(w, h)) + bass*0.4*float64(min(w, h))
	drawRadialGlow(img, w/2, h/2, radius, glowColor, min(bass*0.8, 0.6))
}

// drawAmbientGlow washes the whole frame with low-alpha glow scaled by the
// average energy of the lower spectrum.
func (r *Renderer) drawAmbientGlow(img *image.RGBA, w, h int) {
	end := min(energyBinEnd, len(r.bins))
	if end == 0 {
		return
	}
	var sum float64
	for _, b := range r.bins[:end] {
		sum += float64(b) / 255
	}
	energy := sum / float64(end)
	if energy <= 0.1 {
		return
	}

	drawRadialGlow(img, w/2, h/2, float64(max(w, h))*0.8, glowColor, energy*0.1)
}

// drawRadialGlow blends a circular falloff of col onto the image.
// peakAlpha is the center opacity in [0,1].
func drawRadialGlow(img *image.RGBA, cx, cy int, radius float64, col color.RGBA, peakAlpha float64) {
	if radius <= 0 || peakAlpha <= 0 {
		return
	}
	bounds := img.Bounds()

	x0 := max(bounds.Min.X, cx-int(radius))
	x1 := min(bounds.Max.X, cx+int(radius)+1)
	y0 := max(bounds.Min.Y, cy-int(radius))
	y1 := min(bounds.Max.Y, cy+int(radius)+1)

	for y := y0; y < y1; y++ {
		dy := float64(y - cy)
		for x := x0; x < x1; x++ {
			dx := float64(x - cx)
			dist := math.Sqrt(dx*dx + dy*dy)
			if dist >= radius {
				continue
			}
			falloff := 1.0 - dist/radius
			alpha := uint8(peakAlpha * falloff * falloff * 255)
			blendPixel(img, x, y, col, alpha)
		}
	}
}

// fill paints the whole image with a solid color.
func fill(img *image.RGBA, col color.RGBA) {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

// blendFill alpha-blends a solid color over the whole image.
func blendFill(img *image.RGBA, col color.RGBA, alpha uint8) {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			blendPixel(img, x, y, col, alpha)
		}
	}
}

// blendPixel composites col at the given opacity over the existing pixel.
func blendPixel(img *image.RGBA, x, y int, col color.RGBA, alpha uint8) {
	if alpha == 0 {
		return
	}
	existing := img.RGBAAt(x, y)

	a := float64(alpha) / 255
	inv := 1 - a

	img.SetRGBA(x, y, color.RGBA{
		R: uint8(math.Round(float64(col.R)*a + float64(existing.R)*inv)),
		G: uint8(math.Round(float64(col.G)*a + float64(existing.G)*inv)),
		B: uint8(math.Round(float64(col.B)*a + float64(existing.B)*inv)),
		A: 255,
	})
}

// hslToRGB converts hue (degrees), saturation and lightness in [0,1] to an
// opaque RGBA color.
func hslToRGB(hue, sat, light float64) color.RGBA {
	hue = math.Mod(hue, 360) / 360

	var r, g, b float64
	if sat == 0 {
		r, g, b = light, light, light
	} else {
		var q float64
		if light < 0.5 {
			q = light * (1 + sat)
		} else {
			q = light + sat - light*sat
		}
		p := 2*light - q
		r = hueToChannel(p, q, hue+1.0/3)
		g = hueToChannel(p, q, hue)
		b = hueToChannel(p, q, hue-1.0/3)
	}

	return color.RGBA{
		R: uint8(math.Round(r * 255)),
		G: uint8(math.Round(g * 255)),
		B: uint8(math.Round(b * 255)),
		A: 255,
	}
}

func hueToChannel(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	default:
		return p
	}
}
