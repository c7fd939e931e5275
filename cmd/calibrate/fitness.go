package main

import (
	"io"
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/config"
	"github.com/jonaspleyer/PhysiCell-Addon-OdeSolver/sim"
)

// failedRunPenalty is the fitness of a run that could not be simulated.
const failedRunPenalty = 1e6

// FitnessEvaluator runs headless simulations and scores how far the final
// mean cell energy lands from a target.
type FitnessEvaluator struct {
	params     *ParamVector
	configPath string
	ticks      int
	seeds      []int64
	target     float64

	mu       sync.Mutex
	lastMean float64 // mean energy from the most recent Evaluate call
	lastFail float64 // failure rate from the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, configPath string, ticks int, seeds []int64, target float64) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		configPath: configPath,
		ticks:      ticks,
		seeds:      seeds,
		target:     target,
	}
}

// LastResult returns the mean energy and failure rate of the most recent evaluation.
func (fe *FitnessEvaluator) LastResult() (meanEnergy, failureRate float64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastMean, fe.lastFail
}

// runResult holds the outcome of a single simulation run.
type runResult struct {
	meanEnergy  float64
	failureRate float64 // failed coupling updates per attempted update
	err         error
}

// Evaluate computes fitness for raw parameter values (lower = better):
// squared relative error of the final mean energy, plus the failure rate.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	// Run all seeds in parallel
	results := make([]runResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(x, s)
		}(i, seed)
	}
	wg.Wait()

	means := make([]float64, 0, len(results))
	var failSum float64
	for _, r := range results {
		if r.err != nil {
			slog.Debug("calibration run failed", "error", r.err)
			return failedRunPenalty
		}
		means = append(means, r.meanEnergy)
		failSum += r.failureRate
	}

	mean := stat.Mean(means, nil)
	failRate := failSum / float64(len(results))

	fe.mu.Lock()
	fe.lastMean = mean
	fe.lastFail = failRate
	fe.mu.Unlock()

	return fitness(mean, fe.target, failRate)
}

// fitness scores a run: squared relative error plus the failure rate.
func fitness(mean, target, failRate float64) float64 {
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return failedRunPenalty
	}
	rel := (mean - target) / target
	return rel*rel + failRate
}

// runSimulation runs one seed for the configured number of ticks.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) runResult {
	cfg, err := config.Load(fe.configPath)
	if err != nil {
		return runResult{err: err}
	}
	if err := fe.params.ApplyToConfig(cfg, x); err != nil {
		return runResult{err: err}
	}

	world, err := sim.New(cfg, sim.Options{
		Seed:    seed,
		Workers: 1, // seeds already run in parallel
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		return runResult{err: err}
	}
	defer world.Close()

	var attempted, failures int
	for i := 0; i < fe.ticks; i++ {
		if err := world.Step(); err != nil {
			return runResult{err: err}
		}
		report := world.LastReport()
		attempted += report.Attempted()
		failures += report.Failures
	}

	var energies []float64
	for _, c := range world.Cells() {
		if c.Status.Dead || c.Status.OutOfDomain {
			continue
		}
		energies = append(energies, c.Phenotype.Energy)
	}
	if len(energies) == 0 {
		return runResult{meanEnergy: math.NaN()}
	}

	var failRate float64
	if attempted > 0 {
		failRate = float64(failures) / float64(attempted)
	}
	return runResult{meanEnergy: stat.Mean(energies, nil), failureRate: failRate}
}
