package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kilianp07/hpcdemand/config"
	"github.com/kilianp07/hpcdemand/core/assign"
	"github.com/kilianp07/hpcdemand/core/audit"
	"github.com/kilianp07/hpcdemand/core/breaks"
	"github.com/kilianp07/hpcdemand/core/demand"
	"github.com/kilianp07/hpcdemand/core/geo"
	coremetrics "github.com/kilianp07/hpcdemand/core/metrics"
	"github.com/kilianp07/hpcdemand/core/model"
	"github.com/kilianp07/hpcdemand/core/pipeline"
	"github.com/kilianp07/hpcdemand/infra/dataset"
	"github.com/kilianp07/hpcdemand/infra/logger"
	_ "github.com/kilianp07/hpcdemand/infra/metrics" // registers sinks
	"github.com/kilianp07/hpcdemand/internal/eventbus"
	"github.com/kilianp07/hpcdemand/pkg/export"
)

// Service runs one demand estimation from the configured inputs.
type Service struct {
	cfg   *config.Config
	log   logger.Logger
	sink  coremetrics.MetricsSink
	store audit.Store
}

// Summary is written next to the output tables.
type Summary struct {
	RunID        string           `json:"run_id"`
	StartedAt    time.Time        `json:"started_at"`
	Duration     string           `json:"duration"`
	Trips        int              `json:"trips"`
	Skipped      int              `json:"skipped"`
	Reclassified int              `json:"reclassified"`
	Short        int              `json:"short_breaks"`
	Long         int              `json:"long_breaks"`
	Assigned     int              `json:"assigned"`
	Discarded    int              `json:"discarded"`
	Passes       []PassSummary    `json:"passes"`
	Sites        int              `json:"sites"`
	Unmatched    []string         `json:"sites_without_section,omitempty"`
	Factors      demand.Factors   `json:"factors"`
	Clusters     []ClusterSummary `json:"clusters,omitempty"`
}

// PassSummary reports one assignment pass.
type PassSummary struct {
	Category  string `json:"category"`
	Assigned  int    `json:"assigned"`
	Discarded int    `json:"discarded"`
	Single    int    `json:"single"`
	Balanced  int    `json:"balanced"`
	Nearest   int    `json:"nearest"`
	Resumed   bool   `json:"resumed"`
}

// ClusterSummary describes one demand cluster.
type ClusterSummary struct {
	Cluster int       `json:"cluster"`
	Sites   int       `json:"sites"`
	Center  []float64 `json:"center"`
}

// New configures logging and opens the metrics sink and audit store.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.Configure(cfg.Log); err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	if cfg.Audit.Backend != "none" {
		if err := os.MkdirAll(filepath.Dir(cfg.Audit.Path), 0o755); err != nil {
			return nil, fmt.Errorf("audit dir: %w", err)
		}
	}
	store, err := audit.Open(cfg.Audit.Backend, cfg.Audit.Path, cfg.Audit.Rotation())
	if err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}
	return &Service{cfg: cfg, log: logger.New("service"), sink: sink, store: store}, nil
}

// Close flushes buffered metrics and closes the audit store.
func (s *Service) Close() error {
	var errs []error
	if f, ok := s.sink.(coremetrics.Flusher); ok {
		if err := f.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush metrics: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close audit: %w", err))
	}
	return errors.Join(errs...)
}

// Run estimates demand end to end. A non-empty resumeID continues that run
// from its checkpoints.
func (s *Service) Run(ctx context.Context, resumeID string) (*Summary, error) {
	started := time.Now()
	in := s.cfg.Input
	trips, err := dataset.ReadFile(in.Trips, dataset.LoadTrips)
	if err != nil {
		return nil, err
	}
	gen, err := s.generator()
	if err != nil {
		return nil, err
	}
	sites, err := dataset.ReadFile(in.Sites, dataset.LoadSites)
	if err != nil {
		return nil, err
	}
	asg, err := s.assigner(sites)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New[pipeline.Progress](0)
	done := s.logProgress(bus.Subscribe())
	p := pipeline.New(gen, asg,
		pipeline.WithMetrics(s.sink),
		pipeline.WithAudit(s.store),
		pipeline.WithLogger(logger.New("pipeline")),
		pipeline.WithProgress(bus),
	)
	var run *pipeline.Run
	if resumeID != "" {
		run, err = p.Resume(ctx, resumeID, trips)
	} else {
		run, err = p.Run(ctx, trips)
	}
	bus.Close()
	<-done
	if err != nil {
		return nil, err
	}

	demands, sectionOf, missing, err := s.scale(sites, run.Loads)
	if err != nil {
		return nil, err
	}
	for i := range demands {
		demands[i].SectionID = sectionOf[demands[i].SiteID]
	}
	var clustering *demand.Clustering
	if s.cfg.Cluster.Enabled {
		clustering, err = demand.Cluster(demands, s.cfg.Cluster)
		if errors.Is(err, demand.ErrTooFewSites) {
			s.log.Warnf("clustering skipped: %v", err)
		} else if err != nil {
			return nil, fmt.Errorf("cluster: %w", err)
		}
	}

	sum := s.summarize(run, demands, missing, clustering)
	sum.StartedAt = started.UTC()
	sum.Duration = time.Since(started).Round(time.Millisecond).String()
	if err := s.writeOutputs(run, demands, clustering, sum); err != nil {
		return nil, err
	}
	s.log.Infof("run %s done in %s: %d breaks assigned to %d sites", run.RunID, sum.Duration, sum.Assigned, len(sites))
	return sum, nil
}

func (s *Service) logProgress(ch <-chan pipeline.Progress) <-chan struct{} {
	done := make(chan struct{})
	log := logger.New("progress")
	go func() {
		defer close(done)
		for ev := range ch {
			if ev.Stage == pipeline.StageBreaks {
				log.Infof("%d break events generated", ev.Total)
				continue
			}
			log.Infof("%s breaks: %d/%d assigned", ev.Category, ev.Done, ev.Total)
		}
	}()
	return done
}

// Breaks only generates break events and writes them to w.
func (s *Service) Breaks(ctx context.Context, w io.Writer) (*breaks.Batch, error) {
	trips, err := dataset.ReadFile(s.cfg.Input.Trips, dataset.LoadTrips)
	if err != nil {
		return nil, err
	}
	gen, err := s.generator()
	if err != nil {
		return nil, err
	}
	batch, err := gen.Generate(ctx, trips)
	if err != nil {
		return nil, err
	}
	return batch, export.WriteBreaksCSV(w, batch.Events)
}

func (s *Service) generator() (*breaks.Generator, error) {
	in := s.cfg.Input
	nodes, err := os.Open(in.Nodes)
	if err != nil {
		return nil, err
	}
	defer nodes.Close()
	edges, err := os.Open(in.Edges)
	if err != nil {
		return nil, err
	}
	defer edges.Close()
	net, err := dataset.LoadNetwork(nodes, edges)
	if err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}
	s.log.Infof("network: %d nodes, %d edges", len(net.Nodes), len(net.Edges))
	return breaks.New(s.cfg.Breaks, net, logger.New("breaks"))
}

func (s *Service) assigner(sites []model.Site) (*assign.Assigner, error) {
	opts := []assign.Option{
		assign.WithLogger(logger.New("assign")),
		assign.WithMapping(s.cfg.Audit.Backend != "none" && s.cfg.Audit.KeepMapping()),
	}
	if s.cfg.Input.Boundary != "" {
		shape, err := dataset.ReadFile(s.cfg.Input.Boundary, dataset.LoadBoundary)
		if err != nil {
			return nil, err
		}
		proj, err := geo.ParseCRS(s.cfg.Assign.ProjectedCRS)
		if err != nil {
			return nil, err
		}
		b := geo.NewBoundary(shape, proj)
		s.log.Infof("boundary: %d polygons", b.Polygons())
		opts = append(opts, assign.WithBoundary(b))
	}
	return assign.New(sites, s.cfg.Assign, opts...)
}

// scale turns loads into demand. Without sections the daily values stay
// zero and only annual figures are produced.
func (s *Service) scale(sites []model.Site, loads []assign.SiteLoad) ([]demand.SiteDemand, map[string]string, []string, error) {
	dc := s.cfg.Demand
	var profiles map[string]demand.Profile
	var sectionOf map[string]string
	var missing []string
	if s.cfg.Input.Sections != "" {
		sections, err := dataset.ReadFile(s.cfg.Input.Sections, dataset.LoadSections)
		if err != nil {
			return nil, nil, nil, err
		}
		sections = demand.FilterSections(sections, dc.ExcludeRoads)
		if s.cfg.Input.Counts != "" {
			counts, err := dataset.ReadFile(s.cfg.Input.Counts, dataset.LoadCounts)
			if err != nil {
				return nil, nil, nil, err
			}
			n := demand.ApplyCounts(sections, counts)
			s.log.Infof("measured counts applied to %d of %d sections", n, len(sections))
		}
		profiles, sectionOf, missing = demand.MatchProfiles(sites, sections)
		if len(missing) > 0 {
			s.log.Warnf("%d sites without a section on their highway", len(missing))
		}
	}
	return demand.Scale(loads, profiles, dc.Factors, dc.Basis), sectionOf, missing, nil
}

func (s *Service) summarize(run *pipeline.Run, demands []demand.SiteDemand, missing []string, c *demand.Clustering) *Summary {
	b := run.Batch
	sum := &Summary{
		RunID:        run.RunID,
		Trips:        b.Trips,
		Skipped:      b.Skipped,
		Reclassified: b.Reclassified,
		Short:        b.Short,
		Long:         b.Long,
		Assigned:     run.Table.Total(),
		Discarded:    run.Table.Discarded,
		Sites:        len(demands),
		Unmatched:    missing,
		Factors:      s.cfg.Demand.Factors,
	}
	for _, p := range run.Passes {
		sum.Passes = append(sum.Passes, PassSummary{
			Category:  p.Category,
			Assigned:  p.Assigned,
			Discarded: p.Discarded,
			Single:    p.Rules[model.RuleSingle],
			Balanced:  p.Rules[model.RuleBalanced],
			Nearest:   p.Rules[model.RuleNearest],
			Resumed:   p.Resumed,
		})
	}
	if c != nil {
		sizes := make([]int, len(c.Centers))
		for _, l := range c.Labels {
			sizes[l]++
		}
		for i, center := range c.Centers {
			sum.Clusters = append(sum.Clusters, ClusterSummary{Cluster: i + 1, Sites: sizes[i], Center: center})
		}
	}
	return sum
}

func (s *Service) writeOutputs(run *pipeline.Run, demands []demand.SiteDemand, c *demand.Clustering, sum *Summary) error {
	out := s.cfg.Output
	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}
	var labels []int
	if c != nil {
		labels = c.Labels
	}
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{out.Breaks, func(w io.Writer) error { return export.WriteBreaksCSV(w, run.Batch.Events) }},
		{out.Loads, func(w io.Writer) error { return export.WriteSiteLoadsCSV(w, run.Loads) }},
		{out.Demand, func(w io.Writer) error { return export.WriteDemandCSV(w, demands, labels) }},
		{out.Summary, func(w io.Writer) error { return export.WriteJSON(w, sum) }},
	}
	if c != nil {
		files = append(files, struct {
			name  string
			write func(io.Writer) error
		}{out.Clusters, func(w io.Writer) error { return export.WriteClusterCSV(w, c.Profiles()) }})
	}
	for _, f := range files {
		path := out.Path(f.name)
		if path == "" {
			continue
		}
		if err := writeFile(path, f.write); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		s.log.Debugf("wrote %s", path)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
