package field

import (
	"github.com/ojrac/opensimplex-go"
)

// Step advances every density by dt using locally one-dimensional implicit
// sweeps (x, y, then z in 3D) with no-flux boundaries. Decay is split evenly
// between the sweeps. Dirichlet boundary voxels are re-imposed around each
// sweep. Unconditionally stable.
func (me *Microenvironment) Step(dt float64) {
	m := me.mesh
	dims := 2.0
	if m.NZ > 1 {
		dims = 3.0
	}

	for s := range me.substrates {
		sub := &me.substrates[s]
		c := sub.diffusion * dt / (m.DX * m.DX)
		decay := sub.decay * dt / dims
		d := me.density[s]

		me.applyDirichletTo(s)

		// x sweeps
		for k := 0; k < m.NZ; k++ {
			for j := 0; j < m.NY; j++ {
				base := (k*m.NY + j) * m.NX
				me.solveLine(d, base, 1, m.NX, c, decay)
			}
		}
		me.applyDirichletTo(s)

		// y sweeps
		for k := 0; k < m.NZ; k++ {
			for i := 0; i < m.NX; i++ {
				base := k*m.NY*m.NX + i
				me.solveLine(d, base, m.NX, m.NY, c, decay)
			}
		}
		me.applyDirichletTo(s)

		if m.NZ > 1 {
			for j := 0; j < m.NY; j++ {
				for i := 0; i < m.NX; i++ {
					base := j*m.NX + i
					me.solveLine(d, base, m.NX*m.NY, m.NZ, c, decay)
				}
			}
			me.applyDirichletTo(s)
		}
	}
}

// solveLine solves the tridiagonal system for one line of n voxels starting
// at base with the given stride, in place (Thomas algorithm).
func (me *Microenvironment) solveLine(d []float64, base, stride, n int, c, decay float64) {
	if n == 1 {
		d[base] /= 1 + decay
		return
	}

	line := me.line[:n]
	cp := me.cprime[:n]
	dp := me.dprime[:n]
	for i := 0; i < n; i++ {
		line[i] = d[base+i*stride]
	}

	// Diagonal: 1 + 2c + decay inside, 1 + c + decay on the no-flux ends
	diag := func(i int) float64 {
		if i == 0 || i == n-1 {
			return 1 + c + decay
		}
		return 1 + 2*c + decay
	}

	b0 := diag(0)
	cp[0] = -c / b0
	dp[0] = line[0] / b0
	for i := 1; i < n; i++ {
		denom := diag(i) + c*cp[i-1]
		cp[i] = -c / denom
		dp[i] = (line[i] + c*dp[i-1]) / denom
	}

	line[n-1] = dp[n-1]
	for i := n - 2; i >= 0; i-- {
		line[i] = dp[i] - cp[i]*line[i+1]
	}

	for i := 0; i < n; i++ {
		d[base+i*stride] = line[i]
	}
}

// applyDirichlet imposes boundary values on every density that has them.
func (me *Microenvironment) applyDirichlet() {
	for s := range me.substrates {
		me.applyDirichletTo(s)
	}
}

// applyDirichletTo sets the outer voxel faces of one density to its
// Dirichlet value. The z faces count only in 3D.
func (me *Microenvironment) applyDirichletTo(s int) {
	sub := &me.substrates[s]
	if !sub.dirichletOn {
		return
	}
	m := me.mesh
	d := me.density[s]
	for k := 0; k < m.NZ; k++ {
		for j := 0; j < m.NY; j++ {
			for i := 0; i < m.NX; i++ {
				onFace := i == 0 || i == m.NX-1 || j == 0 || j == m.NY-1
				if m.NZ > 1 && (k == 0 || k == m.NZ-1) {
					onFace = true
				}
				if onFace {
					d[(k*m.NY+j)*m.NX+i] = sub.dirichletVal
				}
			}
		}
	}
}

// SeedNoise perturbs a density with coherent simplex noise of the given
// amplitude and feature scale (µm), clamping at zero.
func (me *Microenvironment) SeedNoise(density int, amplitude, scale float64, seed int64) {
	if scale <= 0 {
		scale = 10 * me.mesh.DX
	}
	noise := opensimplex.New(seed)
	m := me.mesh
	d := me.density[density]
	for k := 0; k < m.NZ; k++ {
		for j := 0; j < m.NY; j++ {
			for i := 0; i < m.NX; i++ {
				x, y, z := m.VoxelCenter(i, j, k)
				var n float64
				if m.NZ > 1 {
					n = noise.Eval3(x/scale, y/scale, z/scale)
				} else {
					n = noise.Eval2(x/scale, y/scale)
				}
				idx := (k*m.NY+j)*m.NX + i
				d[idx] += amplitude * n
				if d[idx] < 0 {
					d[idx] = 0
				}
			}
		}
	}
}
