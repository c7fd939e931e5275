// Package camera provides a 2D camera for viewing the tissue domain.
package camera

// Camera maps the tissue bounding box (µm) onto the window.
// Pan is clamped so the camera center stays inside the domain.
type Camera struct {
	// Position is the camera center in domain coordinates
	X, Y float64

	// Zoom in pixels per µm
	Zoom float64

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float64

	// Domain bounds
	MinX, MinY, MaxX, MaxY float64

	// Zoom constraints
	MinZoom, MaxZoom float64
}

// New creates a camera centered on the domain, zoomed so the whole domain
// fits the viewport.
func New(viewportW, viewportH, minX, minY, maxX, maxY float64) *Camera {
	c := &Camera{
		ViewportW: viewportW,
		ViewportH: viewportH,
		MinX:      minX,
		MinY:      minY,
		MaxX:      maxX,
		MaxY:      maxY,
	}
	c.fit()
	c.Reset()
	return c
}

// fit recomputes the zoom limits from the viewport and domain size.
func (c *Camera) fit() {
	fitX := c.ViewportW / (c.MaxX - c.MinX)
	fitY := c.ViewportH / (c.MaxY - c.MinY)
	fitZoom := fitX
	if fitY < fitZoom {
		fitZoom = fitY
	}
	c.MinZoom = fitZoom * 0.5
	c.MaxZoom = fitZoom * 16
}

// WorldToScreen converts domain coordinates to screen coordinates.
// Screen y grows downward, domain y upward.
func (c *Camera) WorldToScreen(wx, wy float64) (sx, sy float64) {
	sx = c.ViewportW/2 + (wx-c.X)*c.Zoom
	sy = c.ViewportH/2 - (wy-c.Y)*c.Zoom
	return sx, sy
}

// ScreenToWorld converts screen coordinates to domain coordinates.
func (c *Camera) ScreenToWorld(sx, sy float64) (wx, wy float64) {
	wx = c.X + (sx-c.ViewportW/2)/c.Zoom
	wy = c.Y - (sy-c.ViewportH/2)/c.Zoom
	return wx, wy
}

// Scale converts a length in µm to pixels.
func (c *Camera) Scale(length float64) float64 {
	return length * c.Zoom
}

// IsVisible returns true if a circle at (wx, wy) with given radius
// could be visible on screen (conservative check for culling).
func (c *Camera) IsVisible(wx, wy, radius float64) bool {
	halfW := c.ViewportW/(2*c.Zoom) + radius
	halfH := c.ViewportH/(2*c.Zoom) + radius
	return abs(wx-c.X) <= halfW && abs(wy-c.Y) <= halfH
}

// Resize updates viewport dimensions and recalculates zoom constraints.
func (c *Camera) Resize(viewportW, viewportH float64) {
	if viewportW == c.ViewportW && viewportH == c.ViewportH {
		return
	}
	c.ViewportW = viewportW
	c.ViewportH = viewportH
	c.fit()
	c.SetZoom(c.Zoom)
}

// Pan moves the camera by the given delta in screen pixels.
func (c *Camera) Pan(dx, dy float64) {
	c.X = clamp(c.X+dx/c.Zoom, c.MinX, c.MaxX)
	c.Y = clamp(c.Y-dy/c.Zoom, c.MinY, c.MaxY)
}

// SetZoom sets the zoom level, clamped to min/max.
func (c *Camera) SetZoom(zoom float64) {
	c.Zoom = clamp(zoom, c.MinZoom, c.MaxZoom)
}

// ZoomBy multiplies the current zoom by the given factor.
func (c *Camera) ZoomBy(factor float64) {
	c.SetZoom(c.Zoom * factor)
}

// Reset centers the camera on the domain at the fit-to-window zoom.
func (c *Camera) Reset() {
	c.X = (c.MinX + c.MaxX) / 2
	c.Y = (c.MinY + c.MaxY) / 2
	c.Zoom = c.MinZoom * 2
}

// VisibleWorldBounds returns the domain-coordinate bounds of the visible area.
func (c *Camera) VisibleWorldBounds() (minX, minY, maxX, maxY float64) {
	halfW := c.ViewportW / (2 * c.Zoom)
	halfH := c.ViewportH / (2 * c.Zoom)
	return c.X - halfW, c.Y - halfH, c.X + halfW, c.Y + halfH
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// clamp restricts a value to a range.
func clamp(x, min, max float64) float64 {
	if x < min {
		return min
	}
	if x > max {
		return max
	}
	return x
}
