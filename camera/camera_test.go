package camera

import (
	"math"
	"testing"
)

func newTestCamera() *Camera {
	// 1000x1000 µm domain in an 800x800 window: fit zoom 0.8 px/µm
	return New(800, 800, -500, -500, 500, 500)
}

func TestNew(t *testing.T) {
	cam := newTestCamera()

	if cam.X != 0 || cam.Y != 0 {
		t.Errorf("expected camera at domain center (0, 0), got (%f, %f)", cam.X, cam.Y)
	}
	if math.Abs(cam.Zoom-0.8) > 1e-12 {
		t.Errorf("expected fit zoom 0.8, got %f", cam.Zoom)
	}
}

func TestWorldToScreenCorners(t *testing.T) {
	cam := newTestCamera()

	tests := []struct {
		wx, wy, sx, sy float64
	}{
		{0, 0, 400, 400},
		{-500, 500, 0, 0},     // top-left
		{500, -500, 800, 800}, // bottom-right
	}
	for _, tt := range tests {
		sx, sy := cam.WorldToScreen(tt.wx, tt.wy)
		if math.Abs(sx-tt.sx) > 1e-9 || math.Abs(sy-tt.sy) > 1e-9 {
			t.Errorf("WorldToScreen(%v,%v) = (%v,%v), want (%v,%v)", tt.wx, tt.wy, sx, sy, tt.sx, tt.sy)
		}
	}
}

func TestScreenToWorldRoundtrip(t *testing.T) {
	cam := newTestCamera()
	cam.ZoomBy(1.7)
	cam.Pan(30, -12)

	testCases := []struct{ sx, sy float64 }{
		{400, 400},
		{100, 100},
		{750, 600},
	}

	for _, tc := range testCases {
		wx, wy := cam.ScreenToWorld(tc.sx, tc.sy)
		sx, sy := cam.WorldToScreen(wx, wy)
		if math.Abs(sx-tc.sx) > 1e-9 || math.Abs(sy-tc.sy) > 1e-9 {
			t.Errorf("roundtrip failed: (%f,%f) -> (%f,%f) -> (%f,%f)",
				tc.sx, tc.sy, wx, wy, sx, sy)
		}
	}
}

func TestPanClampedToDomain(t *testing.T) {
	cam := newTestCamera()

	cam.Pan(1e6, 1e6)
	if cam.X != 500 || cam.Y != -500 {
		t.Errorf("expected camera clamped to (500, -500), got (%f, %f)", cam.X, cam.Y)
	}
}

func TestZoomClamping(t *testing.T) {
	cam := newTestCamera()

	cam.SetZoom(1000)
	if cam.Zoom != cam.MaxZoom {
		t.Errorf("expected zoom clamped to %f, got %f", cam.MaxZoom, cam.Zoom)
	}
	cam.SetZoom(0)
	if cam.Zoom != cam.MinZoom {
		t.Errorf("expected zoom clamped to %f, got %f", cam.MinZoom, cam.Zoom)
	}
}

func TestIsVisible(t *testing.T) {
	cam := newTestCamera()
	cam.SetZoom(1.6) // 250 µm half-extent

	if !cam.IsVisible(0, 0, 5) {
		t.Error("center should be visible")
	}
	if cam.IsVisible(400, 0, 5) {
		t.Error("point outside the zoomed view reported visible")
	}
	if !cam.IsVisible(252, 0, 5) {
		t.Error("circle overlapping the view edge should be visible")
	}
}

func TestResize(t *testing.T) {
	cam := newTestCamera()
	cam.Resize(400, 400)

	if math.Abs(cam.MinZoom-0.2) > 1e-12 {
		t.Errorf("MinZoom after resize = %f, want 0.2", cam.MinZoom)
	}
	minX, _, maxX, _ := cam.VisibleWorldBounds()
	if math.Abs((maxX-minX)-400/cam.Zoom) > 1e-9 {
		t.Errorf("visible width = %f, want %f", maxX-minX, 400/cam.Zoom)
	}
}
