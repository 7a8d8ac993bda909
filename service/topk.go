package service

import (
	"sort"

	"github.com/chewxy/math32"
)

// Softmax converts logits into a probability distribution.
func Softmax(logits []float32) []float32 {
	out := make([]float32, len(logits))
	if len(logits) == 0 {
		return out
	}
	m := logits[0]
	for _, v := range logits[1:] {
		if v > m {
			m = v
		}
	}
	var sum float32
	for i, v := range logits {
		out[i] = math32.Exp(v - m)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Rank returns class indexes ordered by descending score. Equal scores keep
// ascending index order so the result is deterministic. NaN ranks last.
func Rank(scores []float32) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return orderKey(scores[idx[a]]) > orderKey(scores[idx[b]])
	})
	return idx
}

// orderKey sorts NaN below every real score.
func orderKey(v float32) float32 {
	if math32.IsNaN(v) {
		return math32.Inf(-1)
	}
	return v
}

func clamp01(v float32) float32 {
	if math32.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
