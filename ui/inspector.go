package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/components"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/phenotype"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/sim"
)

// InspectorData holds everything the inspector shows for one cell.
type InspectorData struct {
	Cell       sim.CellState
	TypeName   string
	CustomData []string  // custom data names in slot order
	Substrates []string  // substrate names in density order
	Local      []float64 // field values at the cell, nil if unavailable
	Threshold  float64   // energy threshold of the phenotype rule
	Disabled   error     // non-nil when the cell's network is disabled

	// Network variables and their current values, in slot order
	Variables []string
	Values    []float64
}

// Inspector renders the selected-cell panel.
type Inspector struct {
	renderer *Renderer
	x, y     int32
	width    int32
}

// NewInspector creates a new inspector panel.
func NewInspector(x, y, width int32) *Inspector {
	return &Inspector{
		renderer: NewRenderer(),
		x:        x,
		y:        y,
		width:    width,
	}
}

// SetPosition updates the inspector position.
func (ins *Inspector) SetPosition(x, y int32) {
	ins.x = x
	ins.y = y
}

// Draw renders the inspector panel for the given data.
func (ins *Inspector) Draw(data InspectorData) {
	r := ins.renderer
	padding := r.Theme.Padding
	lines := int32(10 + len(data.CustomData) + len(data.Substrates) + len(data.Variables))
	r.DrawPanel(ins.x, ins.y, ins.width, lines*r.Theme.LineHeight+padding*4)

	x := ins.x + padding
	y := ins.y + padding
	contentWidth := ins.width - padding*2
	c := data.Cell

	y = r.DrawSectionHeader(x, y, fmt.Sprintf("Cell %d (%s)", c.ID, data.TypeName))
	y = r.DrawLabelValue(x, y, "Position", fmt.Sprintf("%.1f, %.1f, %.1f", c.Position.X, c.Position.Y, c.Position.Z))
	y = r.DrawLabelValue(x, y, "Status", statusText(c.Status, data.Disabled))

	colors := phenotype.Color(c.Status, c.TypeID, c.Energy, data.Threshold)
	y = r.DrawColorSwatch(x, y, "Color", rl.Color(colors.Cytoplasm))
	y = r.DrawThresholdBar(x, y, "Energy", c.Energy, 2*data.Threshold, data.Threshold, contentWidth)
	y = r.DrawLabelValue(x, y, "Cycle", fmt.Sprintf("%s  %.2e/min", c.Phenotype.State, c.Phenotype.CycleRate))
	y = r.DrawLabelValue(x, y, "Death", fmt.Sprintf("%.2e/min", c.Phenotype.DeathRate))
	y = r.DrawSpacer(y, 4)

	y = r.DrawSectionHeader(x, y, "Custom data")
	for i, name := range data.CustomData {
		if i < len(c.Custom) {
			y = r.DrawLabelValue(x, y, name, fmt.Sprintf("%.4g", c.Custom[i]))
		}
	}
	y = r.DrawSpacer(y, 4)

	// Internalized total, intracellular and local field concentrations
	y = r.DrawSectionHeader(x, y, "Substrates")
	for d, name := range data.Substrates {
		if d >= len(c.Internalized) {
			continue
		}
		value := fmt.Sprintf("%.3g  in %.3g", c.Internalized[d], c.Internalized[d]/c.Volume)
		if d < len(data.Local) {
			value += fmt.Sprintf("  out %.3g", data.Local[d])
		}
		y = r.DrawLabelValue(x, y, name, value)
	}

	if len(data.Variables) == 0 {
		return
	}
	y = r.DrawSpacer(y, 4)
	y = r.DrawSectionHeader(x, y, "Network")
	for i, name := range data.Variables {
		y = r.DrawLabelValue(x, y, name, fmt.Sprintf("%.4g", data.Values[i]))
	}
}

func statusText(s components.Status, disabled error) string {
	switch {
	case s.Dead:
		return "dead"
	case s.OutOfDomain:
		return "out of domain"
	case disabled != nil:
		return "network disabled"
	default:
		return "live"
	}
}
