package game

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/ui"
)

// handleSelection selects the cell under a left click, or clears the
// selection when the click hits empty space. Right click always clears.
func (g *Game) handleSelection() {
	if rl.IsMouseButtonPressed(rl.MouseButtonRight) {
		g.hasSelection = false
		return
	}
	if !rl.IsMouseButtonPressed(rl.MouseButtonLeft) {
		return
	}

	mouse := rl.GetMousePosition()
	// Clicks on the control panel are not selections
	if float64(mouse.X) > g.screenW-190 {
		return
	}
	wx, wy := g.camera.ScreenToWorld(float64(mouse.X), float64(mouse.Y))
	g.selected, g.hasSelection = g.world.CellAt(wx, wy)
}

// drawSelection highlights the selected cell and draws the inspector.
func (g *Game) drawSelection() {
	if !g.hasSelection {
		return
	}
	cell, ok := g.world.Cell(g.selected)
	if !ok {
		g.hasSelection = false
		return
	}

	sx, sy := g.camera.WorldToScreen(cell.Position.X, cell.Position.Y)
	radius := float32(g.camera.Scale(cell.Radius())) + 3
	rl.DrawCircleLinesV(rl.Vector2{X: float32(sx), Y: float32(sy)}, radius, rl.White)

	typeName, custom, _ := g.world.CellType(cell.TypeID)
	_, disabled := g.world.Scheduler().Disabled(cell.ID)

	data := ui.InspectorData{
		Cell:       cell,
		TypeName:   typeName,
		CustomData: custom,
		Substrates: g.world.Microenvironment().Names(),
		Threshold:  g.cfg.Phenotype.EnergyThreshold,
		Disabled:   disabled,
	}
	if local, err := g.world.Extracellular(cell.ID); err == nil {
		data.Local = local
	}
	if net, ok := g.world.Network(cell.ID); ok {
		data.Variables = net.Names()
		data.Values = make([]float64, len(data.Variables))
		for i := range data.Values {
			data.Values[i] = net.OutputAt(i)
		}
	}

	g.inspector.SetPosition(int32(g.screenW)-290, int32(g.screenH)-420)
	g.inspector.Draw(data)
}
