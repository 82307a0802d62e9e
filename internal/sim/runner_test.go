package sim_test

import (
	"context"
	"errors"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/hoversim/internal/control"
	"github.com/san-kum/hoversim/internal/dynamo"
	"github.com/san-kum/hoversim/internal/physics"
	"github.com/san-kum/hoversim/internal/sim"
)

type recordingController struct {
	output  float64
	resets  [][2]float64
	updates [][2]float64
}

func (c *recordingController) Reset(m, s float64) { c.resets = append(c.resets, [2]float64{m, s}) }
func (c *recordingController) Update(m, s float64) float64 {
	c.updates = append(c.updates, [2]float64{m, s})
	return c.output
}

type countingObserver struct{ n int }

func (o *countingObserver) OnStep(dynamo.Sample) { o.n++ }

type countingMetric struct{ n int }

func (m *countingMetric) Name() string          { return "count" }
func (m *countingMetric) Observe(dynamo.Sample) { m.n++ }
func (m *countingMetric) Value() float64        { return float64(m.n) }
func (m *countingMetric) Reset()                { m.n = 0 }

// stuckClock never moves, so every dt is zero.
type stuckClock struct{ t time.Time }

func (c stuckClock) Now() time.Time          { return c.t }
func (c stuckClock) Advance(d time.Duration) {}

func tunedPID(clock dynamo.Clock) *control.PID {
	return control.NewPID(60, 100, 35, 0, 20, 0.8, 0.3).WithClock(clock)
}

func newRunner(ctrl func(dynamo.Clock) dynamo.Controller, noise physics.NormalSource, std float64, cfg sim.Config) (*sim.Runner, *physics.ParticleEnv) {
	clock := dynamo.NewManualClock(time.Unix(0, 0))
	env := physics.NewParticleEnv(std, clock, noise)
	return sim.New(env, ctrl(clock), clock, cfg), env
}

func hoverConfig() sim.Config {
	cfg := sim.DefaultConfig()
	cfg.Dt = 1.0 / 60
	cfg.Duration = 30
	cfg.Setpoint = 10
	return cfg
}

var _ = Describe("Runner", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("batch runs", func() {
		It("brings the particle to the setpoint with a tuned PID", func() {
			r, _ := newRunner(func(c dynamo.Clock) dynamo.Controller { return tunedPID(c) }, physics.ZeroNoise{}, 0, hoverConfig())

			result, err := r.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Terminated).To(BeFalse())
			Expect(result.Samples).To(HaveLen(1800))

			last := result.Samples[len(result.Samples)-1]
			Expect(last.Position.Y()).To(BeNumerically("~", 10, 0.15))
			Expect(last.Time).To(BeNumerically("~", 30, 1e-3))
		})

		It("holds the setpoint through sensor noise", func() {
			for seed := int64(1); seed <= 3; seed++ {
				r, _ := newRunner(func(c dynamo.Clock) dynamo.Controller { return tunedPID(c) },
					physics.NewBoxMullerSeeded(seed), 0.1, hoverConfig())

				result, err := r.Run(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Terminated).To(BeFalse())
				for _, s := range result.Samples[len(result.Samples)-300:] {
					Expect(s.Position.Y()).To(BeNumerically("~", 10, 0.5))
				}
			}
		})

		It("follows a setpoint schedule", func() {
			cfg := hoverConfig()
			cfg.Schedule = []sim.SetpointChange{{At: 10, Value: 5}}
			r, env := newRunner(func(c dynamo.Clock) dynamo.Controller { return tunedPID(c) }, physics.ZeroNoise{}, 0, cfg)

			result, err := r.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			for _, s := range result.Samples {
				if s.Time >= 10 {
					Expect(s.Setpoint).To(Equal(5.0))
				} else {
					Expect(s.Setpoint).To(Equal(10.0))
				}
			}
			Expect(env.Setpoint()).To(Equal(5.0))
			Expect(result.Samples[len(result.Samples)-1].Position.Y()).To(BeNumerically("~", 5, 0.15))
		})

		It("stops when the particle leaves the box", func() {
			cfg := hoverConfig()
			cfg.Setpoint = 25
			r, _ := newRunner(func(c dynamo.Clock) dynamo.Controller { return tunedPID(c) }, physics.ZeroNoise{}, 0, cfg)

			result, err := r.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Terminated).To(BeTrue())
			last := result.Samples[len(result.Samples)-1]
			Expect(last.Done).To(BeTrue())
			Expect(last.Position.Y()).To(BeNumerically(">=", 20))
			Expect(result.StepsTaken).To(BeNumerically("<", 1800))
		})

		It("leaves an uncontrolled particle bouncing on the floor", func() {
			r, _ := newRunner(func(dynamo.Clock) dynamo.Controller { return control.NewNone() }, physics.ZeroNoise{}, 0, hoverConfig())

			result, err := r.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Terminated).To(BeFalse())
			for _, s := range result.Samples {
				Expect(s.Position.Y()).To(BeNumerically(">", 0))
				Expect(s.Position.Y()).To(BeNumerically("<", 2.01))
				Expect(s.Action.Y()).To(Equal(physics.DefaultMinThrust))
			}
		})

		It("scales controller output into a vertical force", func() {
			rec := &recordingController{output: 100}
			cfg := hoverConfig()
			cfg.Duration = 0.1
			r, _ := newRunner(func(dynamo.Clock) dynamo.Controller { return rec }, physics.ZeroNoise{}, 0, cfg)

			result, err := r.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Samples).NotTo(BeEmpty())
			for _, s := range result.Samples {
				Expect(s.Output).To(Equal(100.0))
				Expect(s.Action).To(Equal(mgl64.Vec2{0, 10}))
			}
		})

		It("carries the plant energy on every sample", func() {
			cfg := hoverConfig()
			cfg.Duration = 1
			r, env := newRunner(func(c dynamo.Clock) dynamo.Controller { return tunedPID(c) }, physics.ZeroNoise{}, 0, cfg)

			result, err := r.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Samples).NotTo(BeEmpty())
			for _, s := range result.Samples {
				Expect(s.Energy).To(BeNumerically(">", 0))
			}
			last := result.Samples[len(result.Samples)-1]
			Expect(last.Energy).To(BeNumerically("~", env.Energy(), 1e-12))
		})

		It("feeds the previous observation and setpoint to the controller", func() {
			rec := &recordingController{}
			cfg := hoverConfig()
			cfg.Duration = 0.05
			r, _ := newRunner(func(dynamo.Clock) dynamo.Controller { return rec }, physics.ZeroNoise{}, 0, cfg)

			result, err := r.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.resets).To(Equal([][2]float64{{2, 10}}))
			Expect(rec.updates[0]).To(Equal([2]float64{2, 10}))
			for i := 1; i < len(rec.updates); i++ {
				Expect(rec.updates[i][0]).To(Equal(result.Samples[i-1].Observation.Y()))
			}
		})

		It("notifies metrics and observers once per tick", func() {
			cfg := hoverConfig()
			cfg.Duration = 1
			r, _ := newRunner(func(c dynamo.Clock) dynamo.Controller { return tunedPID(c) }, physics.ZeroNoise{}, 0, cfg)
			obs := &countingObserver{}
			r.AddObserver(obs)
			r.AddMetric(&countingMetric{})

			result, err := r.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(obs.n).To(Equal(60))
			Expect(result.Metrics).To(HaveKeyWithValue("count", 60.0))
		})

		It("rejects invalid configurations", func() {
			for _, cfg := range []sim.Config{
				{Dt: 0, Duration: 1},
				{Dt: -0.1, Duration: 1},
				{Dt: 0.1, Duration: 0},
			} {
				r, _ := newRunner(func(dynamo.Clock) dynamo.Controller { return control.NewNone() }, physics.ZeroNoise{}, 0, cfg)
				_, err := r.Run(ctx)
				Expect(err).To(HaveOccurred())
			}
		})

		It("needs a clock it can advance", func() {
			env := physics.NewParticleEnv(0, dynamo.WallClock{}, physics.ZeroNoise{})
			r := sim.New(env, control.NewNone(), dynamo.WallClock{}, hoverConfig())
			_, err := r.Run(ctx)
			Expect(err).To(MatchError(ContainSubstring("advancing clock")))
		})

		It("stops on a canceled context", func() {
			canceled, cancel := context.WithCancel(ctx)
			cancel()
			r, _ := newRunner(func(c dynamo.Clock) dynamo.Controller { return tunedPID(c) }, physics.ZeroNoise{}, 0, hoverConfig())

			result, err := r.Run(canceled)
			Expect(errors.Is(err, dynamo.ErrContextCanceled)).To(BeTrue())
			Expect(result.Samples).To(BeEmpty())
		})
	})

	Describe("strict mode", func() {
		It("runs cleanly when time advances", func() {
			cfg := hoverConfig()
			cfg.Strict = true
			cfg.Duration = 2
			r, _ := newRunner(func(c dynamo.Clock) dynamo.Controller { return tunedPID(c) }, physics.ZeroNoise{}, 0, cfg)

			result, err := r.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Errors).To(BeEmpty())
		})

		It("surfaces a stalled clock instead of propagating NaN", func() {
			clock := stuckClock{t: time.Unix(0, 0)}
			env := physics.NewParticleEnv(0, clock, physics.ZeroNoise{})
			cfg := hoverConfig()
			cfg.Strict = true
			r := sim.New(env, tunedPID(clock), clock, cfg)

			result, err := r.Run(ctx)
			var simErr *dynamo.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Step).To(Equal(0))
			Expect(errors.Is(err, dynamo.ErrNonPositiveTimeStep)).To(BeTrue())
			Expect(result.Errors).To(HaveLen(1))
		})

		It("lets a stalled clock through outside strict mode", func() {
			clock := stuckClock{t: time.Unix(0, 0)}
			env := physics.NewParticleEnv(0, clock, physics.ZeroNoise{})
			cfg := hoverConfig()
			cfg.Duration = 0.1
			r := sim.New(env, tunedPID(clock), clock, cfg)

			result, err := r.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Samples).NotTo(BeEmpty())
		})
	})

	Describe("interactive ticking", func() {
		It("re-seeds the controller on reset with the current setpoint", func() {
			rec := &recordingController{}
			r, _ := newRunner(func(dynamo.Clock) dynamo.Controller { return rec }, physics.ZeroNoise{}, 0, hoverConfig())

			r.Reset()
			r.SetSetpoint(7)
			obs := r.Reset()

			Expect(rec.resets).To(HaveLen(2))
			Expect(rec.resets[1]).To(Equal([2]float64{obs.Y(), 7}))
			Expect(r.Observation()).To(Equal(obs))
		})

		It("runs against the wall clock until told to stop", func() {
			clock := dynamo.WallClock{}
			env := physics.NewParticleEnv(0, clock, physics.ZeroNoise{})
			cfg := hoverConfig()
			cfg.Dt = 0.005
			r := sim.New(env, tunedPID(clock), clock, cfg)

			ticks := 0
			err := r.RunRealtime(ctx, func(s dynamo.Sample) bool {
				ticks++
				Expect(s.Dt).To(BeNumerically(">", 0))
				return ticks < 5
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(ticks).To(Equal(5))
		})
	})
})

var _ = Describe("Ensemble", func() {
	It("runs one episode per seed", func() {
		build := func(seed int64) (*sim.Runner, error) {
			cfg := hoverConfig()
			cfg.Duration = 2
			r, _ := newRunner(func(c dynamo.Clock) dynamo.Controller { return tunedPID(c) }, physics.NewBoxMullerSeeded(seed), 0.1, cfg)
			r.AddMetric(&countingMetric{})
			return r, nil
		}

		ens := sim.NewEnsemble(build, 4, 10)
		ens.SetWorkers(2)
		results, err := ens.Run(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))
		for _, res := range results {
			Expect(res).NotTo(BeNil())
			Expect(res.StepsTaken).To(Equal(120))
		}
		Expect(sim.MeanMetrics(results)).To(HaveKeyWithValue("count", 120.0))
	})

	It("reports factory errors", func() {
		boom := errors.New("boom")
		ens := sim.NewEnsemble(func(int64) (*sim.Runner, error) { return nil, boom }, 3, 0)
		_, err := ens.Run(context.Background())
		Expect(err).To(MatchError(boom))
	})
})
