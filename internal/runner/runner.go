// Package runner drives a complete simulation: it builds the core params
// from a problem and run configuration, transports events on one goroutine
// per stream, and persists the collected diagnostics.
package runner

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/celeritas-project/celer-engine/internal/action"
	"github.com/celeritas-project/celer-engine/internal/config"
	"github.com/celeritas-project/celer-engine/internal/core"
	"github.com/celeritas-project/celer-engine/internal/device"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/importer"
	"github.com/celeritas-project/celer-engine/internal/logger"
	"github.com/celeritas-project/celer-engine/internal/metrics"
	"github.com/celeritas-project/celer-engine/internal/optical"
	"github.com/celeritas-project/celer-engine/internal/stepping"
	"github.com/celeritas-project/celer-engine/internal/store"
)

// Options attaches optional collaborators to a Runner.
type Options struct {
	// DB persists run results when non-nil.
	DB *sql.DB
	// Metrics receives step counters and action times when non-nil.
	Metrics *metrics.Metrics
}

// Runner owns the shared params of a run and the streams transporting it.
type Runner struct {
	cfg     *config.Config
	problem *importer.Problem
	params  *core.Params
	launch  *optical.LaunchAction
	device  *device.Device
	primary domain.ParticleID
	opts    Options
	log     *zap.SugaredLogger

	runs         store.RunRepo
	counters     store.CounterRepo
	times        store.ActionTimeRepo
	digests      store.DigestRepo
	opticalStats store.OpticalRepo
}

// New builds the core params, and the optical params when optical transport
// is enabled, for the given problem.
func New(cfg *config.Config, problem *importer.Problem, opts Options) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pid, ok := problem.Particle.Find(cfg.Primary.Particle)
	if !ok {
		return nil, domain.Validationf(domain.ErrInvalidPrimary,
			"primary particle %q is not defined by problem %q", cfg.Primary.Particle, problem.Name)
	}

	r := &Runner{
		cfg:     cfg,
		problem: problem,
		primary: pid,
		opts:    opts,
		log:     logger.For(logger.ComponentRunner),
	}
	if cfg.Mem() == domain.MemSpaceDevice {
		r.device = device.New(cfg.MaxStreams, cfg.DeviceThreads)
	}

	physics := *problem.Physics
	physics.SecondaryCapacity = cfg.SecondaryCapacity
	in := core.Input{
		Geometry:   problem.Geometry,
		Material:   problem.Material,
		Particle:   problem.Particle,
		Physics:    &physics,
		Rng:        &core.RngParams{Seed: cfg.Seed},
		Sim:        &core.SimParams{MaxSteps: cfg.MaxSteps},
		Init:       &core.TrackInitParams{Capacity: cfg.InitializerCapacity, MaxEvents: cfg.MaxEvents},
		MaxStreams: cfg.MaxStreams,
		Device:     r.device,
	}

	stepOpts := stepping.Options{StatusChecker: cfg.StatusChecker}
	if cfg.Optical {
		register, err := r.setupOptical()
		if err != nil {
			r.Close()
			return nil, err
		}
		stepOpts.Register = register
	}

	params, _, err := stepping.BuildParams(in, stepOpts)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.params = params
	r.launch = optical.FindLaunchAction(params)
	return r, nil
}

// setupOptical builds the optical params and returns the hook registering
// the launch action with the core actions.
func (r *Runner) setupOptical() (func(*action.Registry) error, error) {
	po := r.problem.Optical
	if po == nil {
		return nil, domain.Validationf(domain.ErrOpticalInputMissing,
			"optical transport is enabled but problem %q has no optical section", r.problem.Name)
	}
	slots := r.cfg.OpticalTrackSlots
	capacity := optical.Capacity{
		Generators: orDefault(po.Generators, 8*slots),
		Tracks:     slots,
		Primaries:  orDefault(po.Primaries, slots),
	}
	params, err := optical.Setup(optical.SetupInput{
		Geometry:   r.problem.Geometry,
		Rng:        &core.RngParams{Seed: r.cfg.Seed},
		Data:       po.Data,
		UserModels: po.UserModels(),
		MaxSteps:   orDefault(po.MaxSteps, r.cfg.MaxSteps),
		MaxStreams: r.cfg.MaxStreams,
		Capacity:   capacity,
		Device:     r.device,
	})
	if err != nil {
		return nil, err
	}

	in := optical.LaunchInput{
		Optical:       params,
		Yield:         po.Scintillation.Yield,
		PhotonEnergy:  po.Scintillation.PhotonEnergy,
		NumTrackSlots: slots,
		ActionTimes:   r.cfg.ActionTimes,
		Observer:      r.observer(),
	}
	return func(reg *action.Registry) error {
		launch, err := optical.NewLaunchAction(reg.NextID(), in)
		if err != nil {
			return err
		}
		return reg.Insert(launch)
	}, nil
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// observer avoids storing a typed nil in the interface.
func (r *Runner) observer() action.Observer {
	if r.opts.Metrics == nil {
		return nil
	}
	return r.opts.Metrics
}

// Params returns the core params shared by every stream.
func (r *Runner) Params() *core.Params { return r.params }

// Close releases the device.
func (r *Runner) Close() {
	if r.device != nil {
		r.device.Close()
		r.device = nil
	}
}

// numStreams is the number of streams with at least one event.
func (r *Runner) numStreams() int {
	return min(r.cfg.MaxStreams, r.cfg.Events)
}

// primaries returns the particle gun output for one event.
func (r *Runner) primaries(event domain.EventID) []domain.Primary {
	p := r.cfg.Primary
	dir := p.Direction
	floats.Scale(1/floats.Norm(dir[:], 2), dir[:])
	out := make([]domain.Primary, r.cfg.PrimariesPerEvent)
	for i := range out {
		out[i] = domain.Primary{
			ParticleID: r.primary,
			Energy:     p.Energy,
			Position:   domain.Vec3(p.Position),
			Direction:  domain.Vec3(dir),
			EventID:    event,
			Weight:     1,
		}
	}
	return out
}

// Run transports every configured event and returns the run summary. The
// summary is returned even when a stream fails, with the first error.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	start := time.Now()
	log := r.log.With("run", runID)

	if err := r.begin(ctx, runID, start); err != nil {
		return nil, err
	}

	n := r.numStreams()
	log.Infow("Starting run", "problem", r.problem.Name, "streams", n,
		"events", r.cfg.Events, "mem_space", r.cfg.MemSpace, "optical", r.launch != nil)

	results := make([]streamResult, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		stream := domain.StreamID(i)
		g.Go(func() error {
			res, err := r.runStream(gctx, stream)
			results[stream] = res
			if err != nil {
				return fmt.Errorf("stream %d: %w", stream, err)
			}
			return nil
		})
	}
	runErr := g.Wait()

	summary := summarize(runID, results, time.Since(start))
	if err := r.finish(runID, results, summary, runErr); err != nil {
		log.Errorw("Failed to persist run", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		log.Errorw("Run failed", "error", runErr)
		return summary, runErr
	}
	log.Infow("Run complete", "steps", summary.Steps, "events", summary.Events,
		"killed", summary.Killed, "photons", summary.Photons, "elapsed", summary.Elapsed)
	return summary, nil
}

// sortedDigests orders digests by event.
func sortedDigests(results []streamResult) []store.StateDigest {
	var out []store.StateDigest
	for _, res := range results {
		out = append(out, res.digests...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	return out
}
