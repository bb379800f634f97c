package visual

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

// ReactorWidget is the full-screen beat-reactive canvas. It wraps a
// Renderer in a raster so the fyne driver pulls frames on demand, and
// exposes the two callbacks the analyzer drives.
type ReactorWidget struct {
	widget.BaseWidget

	renderer *Renderer
	raster   *canvas.Raster
}

// NewReactorWidget creates the canvas widget around an existing renderer.
func NewReactorWidget(renderer *Renderer) *ReactorWidget {
	w := &ReactorWidget{
		renderer: renderer,
	}
	w.raster = canvas.NewRaster(renderer.Render)
	w.ExtendBaseWidget(w)
	return w
}

// CreateRenderer implements fyne.Widget.
func (w *ReactorWidget) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(w.raster)
}

// MinSize returns the minimum size of the widget.
func (w *ReactorWidget) MinSize() fyne.Size {
	return fyne.NewSize(0, 0)
}

// OnFrame feeds a frame of frequency bins and repaints. Register it as the
// analyzer's frame callback.
func (w *ReactorWidget) OnFrame(bins []byte) {
	w.renderer.SetFrame(bins)
	fyne.Do(w.raster.Refresh)
}

// SetPlaying switches between reactive and static rendering.
func (w *ReactorWidget) SetPlaying(playing bool) {
	w.renderer.SetPlaying(playing)
	fyne.Do(w.raster.Refresh)
}
