// Package features derives the engineered columns the lap time regressor is
// trained on. Every stage works strictly inside its grouping: medians and the
// best lap per driver and event, deltas and rolling windows per stint.
package features

import (
	"errors"
	"fmt"
	"sort"

	"github.com/heimdalr/dag"

	"github.com/ethpandaops/laptime/pkg/laps"
)

// sourceVertex is the graph vertex producing the raw record columns.
const sourceVertex = "record"

var (
	// ErrUnresolvedInput is returned when no earlier stage produces a stage input
	ErrUnresolvedInput = errors.New("stage input is not produced by any stage")
	// ErrDuplicateOutput is returned when two stages produce the same column
	ErrDuplicateOutput = errors.New("column produced by more than one stage")
	// ErrStageOrder is returned when a stage runs before one it depends on
	ErrStageOrder = errors.New("stage runs before its dependency")
	// ErrDuplicateStage is returned when a stage name is used twice
	ErrDuplicateStage = errors.New("duplicate stage")
)

// recordColumns are the columns available before any stage runs.
//
//nolint:gochecknoglobals // Fixed schema
var recordColumns = map[string]bool{
	laps.ColDriver:      true,
	laps.ColTeam:        true,
	laps.ColEvent:       true,
	laps.ColCompound:    true,
	laps.ColTyreLife:    true,
	laps.ColLapNumber:   true,
	laps.ColLapTime:     true,
	laps.ColSector1Time: true,
	laps.ColSector2Time: true,
	laps.ColSector3Time: true,
}

// Pipeline runs the feature stages in a validated order.
type Pipeline struct {
	cfg    Config
	stages []Stage
	graph  *dag.DAG
}

// NewPipeline creates a pipeline running the default stages
func NewPipeline(cfg Config) (*Pipeline, error) {
	return NewPipelineWithStages(cfg, DefaultStages())
}

// NewPipelineWithStages creates a pipeline running stages in the given order.
// The order must respect the column dependencies between stages.
func NewPipelineWithStages(cfg Config, stages []Stage) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feature config: %w", err)
	}

	graph, err := buildStageGraph(stages)
	if err != nil {
		return nil, err
	}

	position := make(map[string]int, len(stages))
	for i, s := range stages {
		position[s.Name] = i
	}

	for i, s := range stages {
		ancestors, err := graph.GetAncestors(s.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve dependencies of %s: %w", s.Name, err)
		}

		for id := range ancestors {
			if id == sourceVertex {
				continue
			}

			if position[id] > i {
				return nil, fmt.Errorf("%w: %s needs %s", ErrStageOrder, s.Name, id)
			}
		}
	}

	return &Pipeline{cfg: cfg, stages: stages, graph: graph}, nil
}

func buildStageGraph(stages []Stage) (*dag.DAG, error) {
	graph := dag.NewDAG()

	if err := graph.AddVertexByID(sourceVertex, sourceVertex); err != nil {
		return nil, fmt.Errorf("failed to add vertex %s: %w", sourceVertex, err)
	}

	producer := make(map[string]string)
	for col := range recordColumns {
		producer[col] = sourceVertex
	}

	for _, s := range stages {
		if err := graph.AddVertexByID(s.Name, s.Name); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStage, s.Name)
		}

		for _, col := range s.Outputs {
			if owner, exists := producer[col]; exists {
				return nil, fmt.Errorf("%w: %s by %s and %s", ErrDuplicateOutput, col, owner, s.Name)
			}
			producer[col] = s.Name
		}
	}

	for _, s := range stages {
		seen := make(map[string]bool)

		for _, col := range s.Inputs {
			src, ok := producer[col]
			if !ok {
				return nil, fmt.Errorf("%w: %s needs %s", ErrUnresolvedInput, s.Name, col)
			}

			if seen[src] {
				continue
			}
			seen[src] = true

			// AddEdge returns error if it would create a cycle
			if err := graph.AddEdge(src, s.Name); err != nil {
				return nil, fmt.Errorf("invalid stage dependency %s → %s: %w", src, s.Name, err)
			}
		}
	}

	return graph, nil
}

// Config returns the pipeline configuration
func (p *Pipeline) Config() Config {
	return p.cfg
}

// Stages returns the stage names in execution order
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}

	return names
}

// Dependencies returns the sorted names of the stages a stage reads from
func (p *Pipeline) Dependencies(stage string) []string {
	parents, err := p.graph.GetParents(stage)
	if err != nil {
		return nil
	}

	deps := make([]string, 0, len(parents))
	for id := range parents {
		if id != sourceVertex {
			deps = append(deps, id)
		}
	}

	sort.Strings(deps)

	return deps
}

// Build returns one feature row per record, in input order. The records
// slice is not modified.
func (p *Pipeline) Build(records []laps.Record) []Row {
	f := newFrame(&p.cfg, records)

	for _, s := range p.stages {
		s.apply(&p.cfg, f)
	}

	return f.rows
}
