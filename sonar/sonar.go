// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package sonar implements the mock mine/rock classifier used by the sonar
// demo when no trained model is deployed.
package sonar

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// FeatureCount is the number of sonar band energies per sample.
const FeatureCount = 60

const (
	LabelMine = "M"
	LabelRock = "R"

	bias          = -0.2
	minConfidence = 0.6
	maxConfidence = 0.95
)

// Prediction is the classifier output.
type Prediction struct {
	Label       string  `json:"prediction"`
	Confidence  float64 `json:"confidence"`
	Probability float64 `json:"probability"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
}

// Classifier is a logistic model with random weights. It stands in for the
// trained model and is only as good as a coin with a confidence bar.
type Classifier struct {
	weights [FeatureCount]float64
	bias    float64
}

// NewClassifier draws weights uniformly from [-1, 1).
func NewClassifier(rng *rand.Rand) *Classifier {
	c := &Classifier{bias: bias}
	for i := range c.weights {
		c.weights[i] = rng.Float64()*2 - 1
	}
	return c
}

// NewSeeded returns a classifier whose weights are fixed by seed.
func NewSeeded(seed uint64) *Classifier {
	return NewClassifier(rand.New(rand.NewPCG(seed, seed^0x5eed)))
}

// Predict classifies one sample.
func (c *Classifier) Predict(x []float64) (Prediction, error) {
	if len(x) != FeatureCount {
		return Prediction{}, fmt.Errorf("input data must contain exactly %d features, got %d", FeatureCount, len(x))
	}

	logit := c.bias
	for i, v := range x {
		logit += v * c.weights[i]
	}
	p := 1 / (1 + math.Exp(-logit))

	label := LabelRock
	if p > 0.5 {
		label = LabelMine
	}
	confidence := math.Abs(p-0.5) * 2

	pred := Prediction{
		Label:       label,
		Confidence:  math.Min(maxConfidence, math.Max(minConfidence, confidence)),
		Probability: p,
	}
	pred.Title, pred.Description = describe(label)
	return pred, nil
}

func describe(label string) (string, string) {
	if label == LabelMine {
		return "Mine Detected", "The object appears to be a mine. Exercise extreme caution!"
	}
	return "Rock Detected", "The object appears to be a rock. Likely safe to approach."
}
