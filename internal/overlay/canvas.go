package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/gesturecall/internal/recognizer"
)

// ErrEmptyCanvas is returned by JPEG before any frame was presented.
var ErrEmptyCanvas = errors.New("canvas has no frame")

// Canvas is the render target shared by the detection loop and the
// preview stream. It is safe for concurrent use.
type Canvas struct {
	mu       sync.Mutex
	mat      gocv.Mat
	width    int
	height   int
	renderer Renderer
	style    Style
	frames   uint64
}

// NewCanvas creates a canvas of the given size.
func NewCanvas(width, height int, renderer Renderer, style Style) *Canvas {
	if renderer == nil {
		renderer = SkeletonRenderer{}
	}
	return &Canvas{
		mat:      gocv.NewMat(),
		width:    width,
		height:   height,
		renderer: renderer,
		style:    style,
	}
}

// Size returns the canvas dimensions.
func (c *Canvas) Size() (int, int) {
	return c.width, c.height
}

// Present replaces the canvas content with frame, resized to the canvas.
func (c *Canvas) Present(frame *gocv.Mat) {
	if frame == nil || frame.Empty() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if frame.Cols() == c.width && frame.Rows() == c.height {
		frame.CopyTo(&c.mat)
	} else {
		gocv.Resize(*frame, &c.mat, image.Pt(c.width, c.height), 0, 0, gocv.InterpolationLinear)
	}
	c.frames++
}

// DrawHands draws each hand in the order given.
func (c *Canvas) DrawHands(hands []recognizer.HandLandmarks) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mat.Empty() {
		return
	}
	for _, hand := range hands {
		c.renderer.DrawHand(&c.mat, hand, c.style)
	}
}

// Caption writes text along the bottom edge of the canvas.
func (c *Canvas) Caption(text string) {
	if text == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mat.Empty() {
		return
	}
	origin := image.Pt(8, c.height-10)
	gocv.PutText(&c.mat, text, origin, gocv.FontHersheySimplex, 0.4, color.RGBA{A: 255}, 3)
	gocv.PutText(&c.mat, text, origin, gocv.FontHersheySimplex, 0.4, color.RGBA{R: 255, G: 255, B: 255, A: 255}, 1)
}

// Frames returns how many frames have been presented.
func (c *Canvas) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}

// JPEG encodes the current canvas image.
func (c *Canvas) JPEG() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mat.Empty() {
		return nil, ErrEmptyCanvas
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, c.mat)
	if err != nil {
		return nil, fmt.Errorf("encode canvas: %w", err)
	}
	defer buf.Close()

	// The buffer is freed on Close, so copy it out.
	return append([]byte(nil), buf.GetBytes()...), nil
}

// Close releases the canvas image.
func (c *Canvas) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mat.Close()
}
