package phenotype

import (
	"image/color"
	"math"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/components"
)

// Colors holds the display colors of one cell.
type Colors struct {
	Cytoplasm        color.RGBA
	CytoplasmOutline color.RGBA
	Nucleus          color.RGBA
	NucleusOutline   color.RGBA
}

// Base palette for cells not covered by the energy rule.
var (
	liveColors = Colors{
		Cytoplasm:        color.RGBA{R: 0, G: 200, B: 255, A: 255},
		CytoplasmOutline: color.RGBA{R: 0, G: 0, B: 0, A: 255},
		Nucleus:          color.RGBA{R: 0, G: 80, B: 180, A: 255},
		NucleusOutline:   color.RGBA{R: 0, G: 0, B: 0, A: 255},
	}
	deadOtherColors = Colors{
		Cytoplasm:        color.RGBA{R: 120, G: 120, B: 120, A: 255},
		CytoplasmOutline: color.RGBA{R: 0, G: 0, B: 0, A: 255},
		Nucleus:          color.RGBA{R: 60, G: 60, B: 60, A: 255},
		NucleusOutline:   color.RGBA{R: 0, G: 0, B: 0, A: 255},
	}
)

// Color picks display colors for a cell of the given type. Type-0 cells are
// yellow when their energy exceeds the threshold (proliferative), red
// otherwise (arrested), and near-black once dead.
func Color(status components.Status, typeID uint8, energy, threshold float64) Colors {
	out := liveColors
	if status.Dead {
		out = deadOtherColors
	}
	if typeID != 0 {
		return out
	}

	switch {
	case status.Dead:
		out.Cytoplasm = color.RGBA{R: 20, G: 20, B: 20, A: 255}
		out.Nucleus = color.RGBA{R: 10, G: 10, B: 10, A: 255}
	case energy > threshold:
		out.Cytoplasm = color.RGBA{R: 255, G: 255, B: 0, A: 255}
		out.Nucleus = color.RGBA{R: 125, G: 125, B: 0, A: 255}
	default:
		out.Cytoplasm = color.RGBA{R: 255, G: 0, B: 0, A: 255}
		out.Nucleus = color.RGBA{R: 125, G: 0, B: 0, A: 255}
	}
	return out
}

// Heat maps a normalized value in [0, 1] to a dark blue, cyan, yellow, white
// gradient for substrate heatmaps. Values outside the range are clamped.
func Heat(v float64) color.RGBA {
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	var r, g, b float64
	switch {
	case v < 0.25:
		t := v / 0.25
		r, g, b = 10+t*30, 20+t*60, 60+t*100
	case v < 0.5:
		t := (v - 0.25) / 0.25
		r, g, b = 40+t*20, 80+t*120, 160+t*40
	case v < 0.75:
		t := (v - 0.5) / 0.25
		r, g, b = 60+t*140, 200-t*40, 200-t*150
	default:
		t := (v - 0.75) / 0.25
		r, g, b = 200+t*55, 160+t*95, 50+t*205
	}
	return color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 255}
}
