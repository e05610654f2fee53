package vectorstore

import (
	"fmt"
	"math"
)

// Metric selects how similarity between vectors is scored.
type Metric int

const (
	MetricCosine Metric = iota
	MetricL2
)

// ParseMetric maps a config string to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "cosine":
		return MetricCosine, nil
	case "l2":
		return MetricL2, nil
	default:
		return 0, fmt.Errorf("vectorstore: unknown distance metric %q", s)
	}
}

// CosineSimilarity computes the cosine similarity between two vectors. It
// returns an error on dimension mismatch or zero-magnitude input.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectorstore: cosine similarity dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("vectorstore: cosine similarity on empty vectors")
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0, fmt.Errorf("vectorstore: cosine similarity with zero-magnitude vector")
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2)), nil
}

// L2Distance computes the Euclidean distance between two vectors.
func L2Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectorstore: L2 distance dimension mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// score converts a metric value into a similarity where higher is better.
// For L2 the negated distance preserves ranking order.
func (m Metric) score(query, candidate []float32) (float64, error) {
	switch m {
	case MetricCosine:
		return CosineSimilarity(query, candidate)
	case MetricL2:
		d, err := L2Distance(query, candidate)
		if err != nil {
			return 0, err
		}
		return -d, nil
	default:
		return 0, fmt.Errorf("vectorstore: unknown metric %d", m)
	}
}
