package metrics

import (
	"github.com/san-kum/hoversim/internal/dynamo"
)

// InBounds is the fraction of ticks that ended with the particle inside the
// box. Since a run stops on the first exit it is 1 for a full run and
// slightly below 1 for a terminated one.
type InBounds struct {
	name       string
	violations int
	samples    int
}

func NewInBounds() *InBounds {
	return &InBounds{
		name: "in_bounds",
	}
}

func (b *InBounds) Name() string {
	return b.name
}

func (b *InBounds) Observe(s dynamo.Sample) {
	b.samples++
	if s.Done {
		b.violations++
	}
}

func (b *InBounds) Value() float64 {
	if b.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(b.violations)/float64(b.samples)
}

func (b *InBounds) Reset() {
	b.violations = 0
	b.samples = 0
}
