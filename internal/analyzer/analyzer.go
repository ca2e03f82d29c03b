// Package analyzer implements the intelligence-analysis stubs. Every
// operation returns a fixed-shape record; analysis produces a confidence
// value and nothing else. The upstream corpus was inconsistent between a
// fixed literal and an unseeded random draw, so the source is injected
// explicitly instead of reading ambient global state.
package analyzer

import (
	"math/rand"
	"sync"
	"time"

	"waved/internal/model"
)

// ConfidenceSource produces the confidence value for each analysis.
type ConfidenceSource interface {
	Confidence() float64
}

// Fixed always reports the same confidence.
type Fixed float64

func (f Fixed) Confidence() float64 { return float64(f) }

// Uniform draws uniformly from [0,1) using an explicit rand.Rand. rand.Rand
// is not safe for concurrent use and the daemon serves one goroutine per
// connection, so draws are serialized through a mutex.
type Uniform struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewUniform(seed int64) *Uniform {
	return &Uniform{rng: rand.New(rand.NewSource(seed))}
}

func (u *Uniform) Confidence() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.rng.Float64()
}

// Analyzer runs no-op analysis over arbitrary context values.
type Analyzer struct {
	source ConfidenceSource
}

// New creates an Analyzer. A nil source falls back to the default fixed
// confidence; analysis has no error path.
func New(source ConfidenceSource) *Analyzer {
	if source == nil {
		source = Fixed(model.DefaultConfidence)
	}
	return &Analyzer{source: source}
}

// FromConfig builds the confidence source selected by cfg. A zero seed in
// random mode seeds from the clock.
func FromConfig(cfg model.AnalyzerConfig) *Analyzer {
	if cfg.Mode == model.AnalyzerModeRandom {
		seed := cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return New(NewUniform(seed))
	}
	return New(Fixed(cfg.Confidence))
}

// Analyze inspects nothing and reports a confidence with empty pattern and
// recommendation lists.
func (a *Analyzer) Analyze(context any) model.Analysis {
	_ = context
	return model.Analysis{
		Confidence:      a.source.Confidence(),
		Patterns:        []string{},
		Recommendations: []string{},
	}
}

// ExecuteAnalysis is the historical alias for Analyze.
func (a *Analyzer) ExecuteAnalysis(context any) model.Analysis {
	return a.Analyze(context)
}

// Process runs Analyze and discards its result, reporting "processed".
func (a *Analyzer) Process(data any) model.Processed {
	_ = a.Analyze(data)
	return model.Processed{
		Status:  model.StatusProcessed,
		Results: []model.Result{},
	}
}

// Synthesize is the historical alias for Process.
func (a *Analyzer) Synthesize(data any) model.Processed {
	return a.Process(data)
}
