package runner

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celeritas-project/celer-engine/internal/config"
	"github.com/celeritas-project/celer-engine/internal/domain"
	"github.com/celeritas-project/celer-engine/internal/importer"
	"github.com/celeritas-project/celer-engine/internal/metrics"
	"github.com/celeritas-project/celer-engine/internal/store"
)

const slabsYAML = `
name: slabs
materials:
  - name: water
    energy_loss: 2.0
    optical: {refractive_index: 1.33}
  - name: scint
    energy_loss: 2.5
    optical: {refractive_index: 1.58}
geometry:
  bounds: [-20, 0, 20]
  volumes:
    - {name: tank, material: water}
    - {name: detector, material: scint}
particles:
  - {name: e-, mass: 0.511, charge: -1}
  - {name: gamma}
physics:
  energy_cutoff: 0.01
  models:
    - label: msc
      kind: scatter
      particle: e-
      xs:
        water: {energy: [0.01, 100], value: [0.5, 0.5]}
        scint: {energy: [0.01, 100], value: [0.5, 0.5]}
    - label: brems
      kind: split
      particle: e-
      secondary: gamma
      energy_fraction: 0.3
      xs:
        water: {energy: [0.01, 100], value: [0.1, 0.1]}
        scint: {energy: [0.01, 100], value: [0.1, 0.1]}
    - label: photoelectric
      kind: absorption
      particle: gamma
      xs:
        water: {energy: [0.01, 100], value: [0.2, 0.2]}
        scint: {energy: [0.01, 100], value: [0.2, 0.2]}
optical:
  max_steps: 500
  yield: 10
  photon_energy: 3.0
  surfaces:
    - {name: tank-detector, reflectivity: 0.05}
  models:
    - kind: absorption
      mfp:
        water: {energy: [1.5, 6.0], value: [40, 20]}
        scint: {energy: [1.5, 6.0], value: [15, 10]}
    - kind: rayleigh
      mfp:
        water: {energy: [1.5, 6.0], value: [60, 30]}
`

// longLivedYAML has a huge world and tiny stopping power so tracks survive
// many steps.
const longLivedYAML = `
name: long-lived
materials:
  - {name: gas, energy_loss: 0.001}
geometry:
  bounds: [-10000, 10000]
  volumes:
    - {name: world, material: gas}
particles:
  - {name: e-, mass: 0.511, charge: -1}
physics:
  energy_cutoff: 0.01
  models:
    - label: msc
      kind: scatter
      particle: e-
      xs:
        gas: {energy: [0.01, 100], value: [1, 1]}
`

func problem(t *testing.T, yaml string) *importer.Problem {
	t.Helper()
	p, err := importer.Parse([]byte(yaml))
	require.NoError(t, err)
	return p
}

func testConfig(mutate func(*config.Config)) *config.Config {
	cfg := config.Default("slabs.yaml")
	cfg.MaxStreams = 2
	cfg.TrackSlots = 16
	cfg.InitializerCapacity = 256
	cfg.Events = 3
	cfg.MaxEvents = 3
	cfg.PrimariesPerEvent = 2
	cfg.Primary.Energy = 5
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

func run(t *testing.T, cfg *config.Config, p *importer.Problem, opts Options) *Summary {
	t.Helper()
	r, err := New(cfg, p, opts)
	require.NoError(t, err)
	defer r.Close()
	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	return summary
}

func TestRun_PersistsResults(t *testing.T) {
	db, err := store.NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer db.Close()

	cfg := testConfig(func(c *config.Config) { c.ActionTimes = true })
	summary := run(t, cfg, problem(t, slabsYAML), Options{DB: db})

	assert.Equal(t, 2, summary.Streams)
	assert.Equal(t, 3, summary.Events)
	assert.Positive(t, summary.Steps)
	assert.Positive(t, summary.ActiveMean)
	assert.Zero(t, summary.Killed)
	require.Len(t, summary.Digests, 3)
	for i, d := range summary.Digests {
		assert.Equal(t, i, d.EventID)
		assert.Equal(t, i%2, d.StreamID)
	}
	assert.Contains(t, summary.ActionTimes, "along-step")

	ctx := context.Background()
	got, err := (&store.RunRepo{}).Get(ctx, db, summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.RunCompleted, got.Status)
	assert.Equal(t, int64(summary.Steps), got.TotalSteps)
	assert.Equal(t, "slabs", got.Problem)

	var stored int
	for stream := 0; stream < 2; stream++ {
		counters, err := (&store.CounterRepo{}).ListByStream(ctx, db, summary.RunID, stream, 0)
		require.NoError(t, err)
		stored += len(counters)
	}
	assert.Equal(t, summary.Steps, stored)

	times, err := (&store.ActionTimeRepo{}).ListByRun(ctx, db, summary.RunID)
	require.NoError(t, err)
	assert.NotEmpty(t, times)
}

func TestRun_HostAndDeviceDigestsMatch(t *testing.T) {
	db, err := store.NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer db.Close()

	p := problem(t, slabsYAML)
	host := run(t, testConfig(nil), p, Options{DB: db})
	dev := run(t, testConfig(func(c *config.Config) { c.MemSpace = "device" }), p, Options{DB: db})

	assert.Equal(t, host.Digests, dev.Digests)
	require.NoError(t, (&store.DigestRepo{}).Compare(context.Background(), db, host.RunID, dev.RunID))
}

func TestRun_SeedChangesDigests(t *testing.T) {
	p := problem(t, slabsYAML)
	a := run(t, testConfig(nil), p, Options{})
	b := run(t, testConfig(func(c *config.Config) { c.Seed = 7 }), p, Options{})
	assert.NotEqual(t, a.Digests, b.Digests)
}

func TestRun_StepLimitKillsTracks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	cfg := testConfig(func(c *config.Config) {
		c.StepLimit = 3
		c.Events = 1
		c.MaxEvents = 1
	})
	summary := run(t, cfg, problem(t, longLivedYAML), Options{Metrics: m})

	assert.Equal(t, 1, summary.Events)
	assert.Equal(t, 2, summary.Killed)
	assert.Equal(t, 2.0, gathered(t, reg, "celer_tracks_killed_total"))
}

// gathered sums every sample of a counter family.
func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var sum float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}

func TestRun_OpticalPhotons(t *testing.T) {
	db, err := store.NewDB(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer db.Close()

	cfg := testConfig(func(c *config.Config) {
		c.Optical = true
		c.OpticalTrackSlots = 32
	})
	summary := run(t, cfg, problem(t, slabsYAML), Options{DB: db})
	assert.Positive(t, summary.Photons)

	stats, err := (&store.OpticalRepo{}).ListByRun(context.Background(), db, summary.RunID)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, summary.Photons, stats[0].Photons+stats[1].Photons)
	assert.Zero(t, stats[0].Aborted+stats[1].Aborted)
}

func TestNew_Validates(t *testing.T) {
	p := problem(t, slabsYAML)

	_, err := New(testConfig(func(c *config.Config) { c.Primary.Particle = "mu-" }), p, Options{})
	require.ErrorIs(t, err, domain.ErrInvalidPrimary)

	_, err = New(testConfig(func(c *config.Config) { c.Optical = true }), problem(t, longLivedYAML), Options{})
	require.ErrorIs(t, err, domain.ErrOpticalInputMissing)

	_, err = New(testConfig(func(c *config.Config) { c.Events = 0 }), p, Options{})
	require.ErrorIs(t, err, domain.ErrConfigInvalid)
}

func TestRun_CanceledContext(t *testing.T) {
	r, err := New(testConfig(nil), problem(t, slabsYAML), Options{})
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
