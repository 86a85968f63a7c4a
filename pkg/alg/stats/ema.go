package stats

// EMA is an exponential moving average with a fixed smoothing factor.
type EMA struct {
	alpha       float64
	value       float64
	initialized bool
}

// NewEMA creates an EMA. alpha outside (0, 1] is clamped into it.
func NewEMA(alpha float64) *EMA {
	if alpha <= 0 {
		alpha = smallestAlpha
	}

	return &EMA{alpha: min(alpha, 1)}
}

const smallestAlpha = 1e-3

// Update feeds an observation and returns the new average. The first
// observation seeds the average.
func (e *EMA) Update(v float64) float64 {
	if !e.initialized {
		e.value, e.initialized = v, true

		return e.value
	}

	e.value = e.alpha*v + (1-e.alpha)*e.value

	return e.value
}

// Value returns the current average, 0 before any Update.
func (e *EMA) Value() float64 {
	return e.value
}

// Smooth returns the running EMA over values, oldest first.
func Smooth(values []float64, alpha float64) []float64 {
	ema := NewEMA(alpha)
	out := make([]float64, len(values))

	for idx, v := range values {
		out[idx] = ema.Update(v)
	}

	return out
}
