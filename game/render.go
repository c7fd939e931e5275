package game

import (
	"fmt"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/renderer"
)

// Draw renders the field, the cells and the HUD.
func (g *Game) Draw() {
	g.world.Perf().RecordFrame()

	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)

	env := g.world.Microenvironment()
	if g.showField {
		if g.fieldDirty {
			g.field.Update(env, g.substrate)
			g.fieldDirty = false
		}
		g.field.Draw(g.camera, env.Mesh())
	}

	cells := g.world.Cells()
	renderer.DrawCells(cells, g.camera, g.cfg.Phenotype.EnergyThreshold)

	g.drawSelection()
	g.drawHUD(len(cells))
	g.drawControls()

	rl.EndDrawing()
}

// drawHUD draws tick, time and population counts in the top-left corner.
func (g *Game) drawHUD(total int) {
	report := g.world.LastReport()

	rl.DrawText(fmt.Sprintf("Tick: %d  Time: %.0f min", g.world.Tick(), g.world.Time()), 10, 10, 20, rl.White)
	rl.DrawText(fmt.Sprintf("Cells: %d  Updated: %d  Skipped: %d  Failures: %d",
		total, report.Updated, report.Skipped, report.Failures), 10, 35, 20, rl.White)
	rl.DrawText(fmt.Sprintf("Speed: %dx  [</>]  FPS: %.0f  Seed: %d",
		g.speed, g.world.Perf().Stats().FPS, g.world.Seed()), 10, 60, 20, rl.White)
	if g.paused {
		rl.DrawText("PAUSED", 10, 85, 20, rl.Yellow)
	}
	if g.lastErr != nil {
		rl.DrawText(g.lastErr.Error(), 10, 110, 16, rl.Red)
	}

	if g.showField {
		name := g.world.Microenvironment().Names()[g.substrate]
		rl.DrawText(fmt.Sprintf("%s: %.3g .. %.3g", name, g.field.Lo, g.field.Hi),
			10, int32(g.screenH)-30, 16, rl.LightGray)
	}
}

// drawControls draws the right-hand button panel.
func (g *Game) drawControls() {
	panelX := float32(g.screenW) - 180
	panelY := float32(10)

	if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 170, Height: 30}, toggleText(g.paused, "Resume", "Pause")) {
		g.paused = !g.paused
	}
	panelY += 40

	if g.paused {
		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 170, Height: 30}, "Step") {
			if err := g.world.Step(); err != nil {
				g.lastErr = err
			}
			g.fieldDirty = true
		}
		panelY += 40
	}

	name := g.world.Microenvironment().Names()[g.substrate]
	if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 170, Height: 30}, "Substrate: "+name) {
		g.nextSubstrate()
	}
	panelY += 40

	if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 170, Height: 30}, toggleText(g.showField, "Hide field", "Show field")) {
		g.showField = !g.showField
	}
	panelY += 45

	rl.DrawText("Steps per frame", int32(panelX), int32(panelY), 14, rl.Gray)
	panelY += 18
	speed := gui.SliderBar(
		rl.Rectangle{X: panelX, Y: panelY, Width: 130, Height: 20},
		"", "10",
		float32(g.speed), 1, 10,
	)
	g.speed = max(1, int(speed+0.5))
}

func toggleText(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
