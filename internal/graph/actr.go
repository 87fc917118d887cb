package graph

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// ActivationConfig parameterizes the ACT-R stochastic retrieval model:
// logistic noise added to a base activation, then passed through a sigmoid
// against a retrieval threshold.
//
// Defaults (retrieval_threshold=0.0, noise_scale=0.4) are not pinned by any
// pack file: noise.rs's own ActivationConfig::default() is never defined in
// the kept Rust sources (its defining module was filtered out of the
// retrieval pack). 0.4 matches the scale noise.rs's own tests use as a
// representative value; 0.0 centers the sigmoid at zero activation, the
// natural default for a threshold with no other evidence.
type ActivationConfig struct {
	RetrievalThreshold float64
	NoiseScale         float64
}

// DefaultActivationConfig returns the package defaults.
func DefaultActivationConfig() ActivationConfig {
	return ActivationConfig{RetrievalThreshold: 0.0, NoiseScale: 0.4}
}

// ActivationNoise draws one sample from a zero-mean logistic distribution
// scaled by cfg.NoiseScale, via inverse CDF: s * ln(u/(1-u)), u ~ U(eps, 1-eps).
func ActivationNoise(cfg ActivationConfig) float64 {
	u := 0.001 + rand.Float64()*0.998
	return cfg.NoiseScale * math.Log(u/(1-u))
}

// RetrievalProbability computes the deterministic (noise-free) ACT-R
// retrieval probability for activation:
//
//	P(recall) = 1 / (1 + exp((tau - A) / s))
//
// which is exactly the CDF of a logistic distribution located at tau with
// scale s evaluated at A; gonum's distuv.Logistic.CDF computes it directly
// rather than hand-rolling the sigmoid.
func RetrievalProbability(activation float64, cfg ActivationConfig) float64 {
	dist := distuv.Logistic{Mu: cfg.RetrievalThreshold, S: cfg.NoiseScale}
	return dist.CDF(activation)
}

// RetrievalProbabilityWithNoise adds one logistic noise sample to activation
// before computing retrieval probability, modeling trial-to-trial
// variability in human memory recall.
func RetrievalProbabilityWithNoise(activation float64, cfg ActivationConfig) float64 {
	noisy := activation + ActivationNoise(cfg)
	return RetrievalProbability(noisy, cfg)
}

// AttemptRetrieval rolls a single stochastic retrieval attempt and reports
// whether it succeeds.
func AttemptRetrieval(activation float64, cfg ActivationConfig) bool {
	noisy := activation + ActivationNoise(cfg)
	prob := RetrievalProbability(noisy, cfg)
	return rand.Float64() < prob
}

// RetrievalLatency models expected retrieval time in seconds: higher
// activation retrieves faster. F and f are scaling parameters; the result is
// clamped to [0.01s, 30s].
func RetrievalLatency(activation, latencyFactor, latencyExponent float64) float64 {
	latency := latencyFactor * math.Exp(-latencyExponent*activation)
	if latency < 0.01 {
		return 0.01
	}
	if latency > 30 {
		return 30
	}
	return latency
}

// LogisticVariance returns the variance of a logistic distribution with the
// given scale: (s*pi)^2 / 3.
func LogisticVariance(scale float64) float64 {
	return math.Pow(scale*math.Pi, 2) / 3.0
}

// LogisticStdDev returns the standard deviation of a logistic distribution
// with the given scale.
func LogisticStdDev(scale float64) float64 {
	return math.Sqrt(LogisticVariance(scale))
}
