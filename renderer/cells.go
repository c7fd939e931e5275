package renderer

import (
	"image/color"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/camera"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/phenotype"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/sim"
)

// DrawCells draws every cell as a cytoplasm disc with a nucleus, colored by
// phenotype.Color from the mirrored energy. Out-of-domain cells are not drawn.
func DrawCells(cells []sim.CellState, cam *camera.Camera, threshold float64) {
	for _, c := range cells {
		if c.Status.OutOfDomain {
			continue
		}
		radius := c.Radius()
		if !cam.IsVisible(c.Position.X, c.Position.Y, radius) {
			continue
		}

		colors := phenotype.Color(c.Status, c.TypeID, c.Energy, threshold)
		sx, sy := cam.WorldToScreen(c.Position.X, c.Position.Y)
		center := rl.Vector2{X: float32(sx), Y: float32(sy)}
		r := float32(cam.Scale(radius))

		rl.DrawCircleV(center, r, rlColor(colors.Cytoplasm))
		rl.DrawCircleLinesV(center, r, rlColor(colors.CytoplasmOutline))
		rl.DrawCircleV(center, r*0.5, rlColor(colors.Nucleus))
		rl.DrawCircleLinesV(center, r*0.5, rlColor(colors.NucleusOutline))
	}
}

func rlColor(c color.RGBA) rl.Color {
	return rl.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}
