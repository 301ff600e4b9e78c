package selection

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"tocscan/toc"
)

// DefaultMarker is the location substring that marks New York files.
const DefaultMarker = "NY_"

// Filter keeps in-network files whose location contains Substring.
type Filter struct {
	Substring string
}

// DefaultFilter matches New York files.
var DefaultFilter = Filter{Substring: DefaultMarker}

// StateFilter matches files for a two-letter state code, e.g. "ny" -> "NY_".
func StateFilter(code string) Filter {
	return Filter{Substring: strings.ToUpper(code) + "_"}
}

// Match reports whether location passes the filter. The comparison is case-sensitive.
func (f Filter) Match(location string) bool {
	return strings.Contains(location, f.Substring)
}

// Entry is the summary recorded for one in-network file.
type Entry struct {
	Location   string `json:"location"`
	Hint       Hint   `json:"hint"`
	ExampleEIN string `json:"example_ein"`
	PlanName   string `json:"plan_name"`
	PlanID     string `json:"plan_id"`
	PlanIDType string `json:"plan_id_type"`
	Tier       Tier   `json:"-"`
}

// Stats counts what the aggregator has seen.
type Stats struct {
	Structures   int64
	Files        int64
	MatchedFiles int64
	Duplicates   int64
	Tiers        map[Tier]int64
}

// Source yields reporting structures until io.EOF.
type Source interface {
	Next() (*toc.ReportingStructure, error)
}

// Aggregator accumulates one Entry per matching file location. The first
// structure to mention a location wins; later ones are ignored.
type Aggregator struct {
	filter        Filter
	strategies    []Strategy
	logger        *zap.Logger
	progressEvery int64

	results map[string]Entry
	stats   Stats
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithFilter sets the location filter.
func WithFilter(f Filter) Option {
	return func(a *Aggregator) { a.filter = f }
}

// WithStrategies replaces the selection fallback chain.
func WithStrategies(strategies ...Strategy) Option {
	return func(a *Aggregator) { a.strategies = strategies }
}

// WithLogger sets the logger used for progress and duplicate reporting.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

// WithProgressEvery logs progress every n structures. Zero disables it.
func WithProgressEvery(n int64) Option {
	return func(a *Aggregator) { a.progressEvery = n }
}

// NewAggregator returns an empty aggregator.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		filter:     DefaultFilter,
		strategies: DefaultStrategies,
		logger:     zap.NewNop(),
		results:    make(map[string]Entry),
		stats:      Stats{Tiers: make(map[Tier]int64)},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Add records every matching file of rs that has not been seen before. The
// representative plan is chosen once and shared by all matching files of rs.
func (a *Aggregator) Add(rs *toc.ReportingStructure) error {
	index := a.stats.Structures
	a.stats.Structures++
	a.stats.Files += int64(len(rs.InNetworkFiles))

	var (
		sel      Selection
		selected bool
	)
	for _, file := range rs.InNetworkFiles {
		if !a.filter.Match(file.Location) {
			continue
		}
		a.stats.MatchedFiles++

		if !selected {
			var err error
			sel, err = Select(rs.ReportingPlans, a.strategies...)
			if err != nil {
				return fmt.Errorf("reporting structure %d, file %s: %w", index, file.Location, err)
			}
			selected = true
		}

		if _, ok := a.results[file.Location]; ok {
			a.stats.Duplicates++
			a.logger.Debug("Location already recorded",
				zap.String("location", file.Location),
				zap.Int64("structure", index))
			continue
		}
		a.results[file.Location] = Entry{
			Location:   file.Location,
			Hint:       sel.Tier.Hint(),
			ExampleEIN: Dashed(sel.Plan.PlanID),
			PlanName:   sel.Plan.PlanName,
			PlanID:     sel.Plan.PlanID,
			PlanIDType: sel.Plan.PlanIDType,
			Tier:       sel.Tier,
		}
		a.stats.Tiers[sel.Tier]++
	}

	if a.progressEvery > 0 && a.stats.Structures%a.progressEvery == 0 {
		a.logger.Info("Progress",
			zap.Int64("structures", a.stats.Structures),
			zap.Int64("matched_files", a.stats.MatchedFiles),
			zap.Int("locations", len(a.results)))
	}
	return nil
}

// Results returns the recorded entries sorted by location.
func (a *Aggregator) Results() []Entry {
	entries := make([]Entry, 0, len(a.results))
	for _, e := range a.results {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Location < entries[j].Location
	})
	return entries
}

// Len returns the number of distinct locations recorded.
func (a *Aggregator) Len() int {
	return len(a.results)
}

// Stats returns a copy of the aggregation counters.
func (a *Aggregator) Stats() Stats {
	s := a.stats
	s.Tiers = make(map[Tier]int64, len(a.stats.Tiers))
	for k, v := range a.stats.Tiers {
		s.Tiers[k] = v
	}
	return s
}

// Run drains src into agg and returns the sorted results. Any error other than
// io.EOF aborts the run and no results are returned.
func Run(src Source, agg *Aggregator) ([]Entry, error) {
	for {
		rs, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := agg.Add(rs); err != nil {
			return nil, err
		}
	}
	return agg.Results(), nil
}
