// Package renderer draws the tissue: a substrate heatmap under the cells.
package renderer

import (
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/camera"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/field"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/phenotype"
)

// FieldRenderer renders one substrate density as a heatmap texture
// stretched over the domain.
type FieldRenderer struct {
	tex        rl.Texture2D
	texW, texH int
	pixels     []color.RGBA

	// Color scale of the last update
	Lo, Hi float64

	initialized bool
}

// NewFieldRenderer creates a field renderer. Init runs lazily on the first
// update, after the raylib window exists.
func NewFieldRenderer() *FieldRenderer {
	return &FieldRenderer{}
}

// Init allocates the texture (must be called after raylib window is created).
func (r *FieldRenderer) Init(gridW, gridH int) {
	if r.initialized {
		return
	}

	r.texW = gridW
	r.texH = gridH
	r.pixels = make([]color.RGBA, gridW*gridH)

	img := rl.GenImageColor(gridW, gridH, rl.Black)
	r.tex = rl.LoadTextureFromImage(img)
	rl.SetTextureFilter(r.tex, rl.FilterBilinear)
	rl.UnloadImage(img)

	r.initialized = true
}

// Update uploads the middle z layer of a density, scaled to its own range.
func (r *FieldRenderer) Update(env *field.Microenvironment, density int) {
	mesh := env.Mesh()
	if !r.initialized {
		r.Init(mesh.NX, mesh.NY)
	}

	data := env.Density(density)
	base := (mesh.NZ / 2) * mesh.NX * mesh.NY
	layer := data[base : base+mesh.NX*mesh.NY]

	r.Lo, r.Hi = layer[0], layer[0]
	for _, v := range layer {
		r.Lo = min(r.Lo, v)
		r.Hi = max(r.Hi, v)
	}
	span := r.Hi - r.Lo
	if span <= 0 {
		span = 1
	}

	// Texture row 0 is the top of the screen, mesh row 0 the bottom of the domain
	for j := 0; j < mesh.NY; j++ {
		row := (mesh.NY - 1 - j) * mesh.NX
		for i := 0; i < mesh.NX; i++ {
			r.pixels[row+i] = phenotype.Heat((layer[j*mesh.NX+i] - r.Lo) / span)
		}
	}
	rl.UpdateTexture(r.tex, r.pixels)
}

// Draw stretches the heatmap over the domain as seen by the camera.
func (r *FieldRenderer) Draw(cam *camera.Camera, mesh field.Mesh) {
	if !r.initialized {
		return
	}

	x0, y0 := cam.WorldToScreen(mesh.XMin, mesh.YMax)
	x1, y1 := cam.WorldToScreen(mesh.XMin+float64(mesh.NX)*mesh.DX, mesh.YMax-float64(mesh.NY)*mesh.DX)

	srcRect := rl.Rectangle{X: 0, Y: 0, Width: float32(r.texW), Height: float32(r.texH)}
	dstRect := rl.Rectangle{X: float32(x0), Y: float32(y0), Width: float32(x1 - x0), Height: float32(y1 - y0)}
	rl.DrawTexturePro(r.tex, srcRect, dstRect, rl.Vector2{}, 0, rl.White)
}

// Unload frees GPU resources.
func (r *FieldRenderer) Unload() {
	if !r.initialized {
		return
	}
	rl.UnloadTexture(r.tex)
	r.initialized = false
}
