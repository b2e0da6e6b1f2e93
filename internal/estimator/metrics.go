package estimator

// Mean is a streaming weighted mean, accumulated across eval batches.
// Weighted by batch size it also aggregates per-batch accuracy
// fractions exactly: the weighted sum recovers the correct count.
type Mean struct {
	sum    float64
	weight float64
}

// Update folds in a batch value with the given weight (batch size).
func (m *Mean) Update(value float32, weight int) {
	m.sum += float64(value) * float64(weight)
	m.weight += float64(weight)
}

// Result returns the mean over everything seen since the last Reset.
// Returns 0 before any update.
func (m *Mean) Result() float32 {
	if m.weight == 0 {
		return 0
	}
	return float32(m.sum / m.weight)
}

// Reset clears the accumulator.
func (m *Mean) Reset() {
	m.sum, m.weight = 0, 0
}
