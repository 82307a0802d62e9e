package physics

import (
	"math"
	"math/rand"
)

// NormalSource produces standard normal deviates.
type NormalSource interface {
	NormFloat64() float64
}

// Uniform produces deviates in [0, 1). *rand.Rand satisfies it.
type Uniform interface {
	Float64() float64
}

// BoxMuller draws two uniforms per deviate and uses only the cosine branch,
// so the sequence matches a reference that discards the sine half.
type BoxMuller struct {
	src Uniform
}

func NewBoxMuller(src Uniform) *BoxMuller {
	return &BoxMuller{src: src}
}

func NewBoxMullerSeeded(seed int64) *BoxMuller {
	return NewBoxMuller(rand.New(rand.NewSource(seed)))
}

func (b *BoxMuller) NormFloat64() float64 {
	u, v := 0.0, 0.0
	// reject zero so log(u) stays finite
	for u == 0 {
		u = b.src.Float64()
	}
	for v == 0 {
		v = b.src.Float64()
	}
	return math.Sqrt(-2.0*math.Log(u)) * math.Cos(2.0*math.Pi*v)
}

// Gaussian scales a standard deviate to the given mean and deviation.
func Gaussian(src NormalSource, mean, stdDev float64) float64 {
	return mean + stdDev*src.NormFloat64()
}

// ZeroNoise always returns 0, making observations a plain quantization of the
// true position.
type ZeroNoise struct{}

func (ZeroNoise) NormFloat64() float64 { return 0 }
