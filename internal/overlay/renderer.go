// Package overlay draws hand skeletons and status text onto the preview
// canvas.
package overlay

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/gesturecall/internal/recognizer"
)

// Style controls how a hand is drawn.
type Style struct {
	LineColor  color.RGBA
	PointColor color.RGBA
	LineWidth  int
	Radius     int
}

// DefaultStyle draws white connections of width 2 and red points of radius 4.
func DefaultStyle() Style {
	return Style{
		LineColor:  color.RGBA{R: 255, G: 255, B: 255, A: 255},
		PointColor: color.RGBA{R: 255, A: 255},
		LineWidth:  2,
		Radius:     4,
	}
}

// Renderer draws one hand onto a canvas.
type Renderer interface {
	DrawHand(canvas *gocv.Mat, hand recognizer.HandLandmarks, style Style)
}

// SkeletonRenderer draws the hand connections first, then the landmark
// points on top.
type SkeletonRenderer struct{}

// DrawHand implements Renderer. Landmark coordinates are normalized, so
// they are scaled to the canvas size.
func (SkeletonRenderer) DrawHand(canvas *gocv.Mat, hand recognizer.HandLandmarks, style Style) {
	if canvas == nil || canvas.Empty() {
		return
	}
	w, h := canvas.Cols(), canvas.Rows()

	var pts [recognizer.NumLandmarks]image.Point
	for i, p := range hand.Points {
		pts[i] = toPixel(p, w, h)
	}

	for _, c := range recognizer.HandConnections {
		gocv.Line(canvas, pts[c[0]], pts[c[1]], style.LineColor, style.LineWidth)
	}
	for _, p := range pts {
		gocv.Circle(canvas, p, style.Radius, style.PointColor, -1)
	}
}

func toPixel(p recognizer.Point3D, w, h int) image.Point {
	return image.Pt(int(p.X*float64(w)), int(p.Y*float64(h)))
}
