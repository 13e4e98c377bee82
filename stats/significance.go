package stats

import "math"

// Sample is the conversion count of one variant
type Sample struct {
	Conversions int64
	Trials      int64
}

// Rate returns the conversion ratio in [0, 1], or 0 without trials
func (s Sample) Rate() float64 {
	if s.Trials <= 0 {
		return 0
	}
	return float64(s.capped().Conversions) / float64(s.Trials)
}

// capped bounds conversions by trials so every ratio stays a probability
func (s Sample) capped() Sample {
	s.Conversions = clampCount(s.Conversions, s.Trials)
	return s
}

// Comparison is the head-to-head result of two variants
type Comparison struct {
	// Leader is 0 for the first sample and 1 for the second. Ties favor the first.
	Leader          int
	ConfidenceLevel float64
	Confident       bool
}

// SignificanceTest performs a two-proportion z-test and returns the
// confidence (0..1) that a converts better than b.
func SignificanceTest(a, b Sample) float64 {
	if a.Trials <= 0 || b.Trials <= 0 {
		return 0.5
	}
	a, b = a.capped(), b.capped()

	pA := a.Rate()
	pB := b.Rate()
	pooled := float64(a.Conversions+b.Conversions) / float64(a.Trials+b.Trials)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(a.Trials) + 1/float64(b.Trials)))

	if se == 0 {
		switch {
		case pA > pB:
			return 1
		case pA < pB:
			return 0
		default:
			return 0.5
		}
	}

	return normalCDF((pA - pB) / se)
}

// Compare picks the leading sample and the confidence that it beats the other
func Compare(a, b Sample) Comparison {
	leader := 0
	confidence := SignificanceTest(a, b)
	if b.Rate() > a.Rate() {
		leader = 1
		confidence = SignificanceTest(b, a)
	}
	return Comparison{
		Leader:          leader,
		ConfidenceLevel: confidence,
		Confident:       confidence >= 0.95,
	}
}

// normalCDF uses Abramowitz and Stegun formula 7.1.26
func normalCDF(x float64) float64 {
	const (
		a1 = 0.254829592
		a2 = -0.284496736
		a3 = 1.421413741
		a4 = -1.453152027
		a5 = 1.061405429
		p  = 0.3275911
	)

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x) / math.Sqrt2

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return 0.5 * (1.0 + sign*y)
}
