package gbdt

import (
	"errors"
	"fmt"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidParams is returned when a hyper-parameter is out of range
	ErrInvalidParams = errors.New("invalid gbdt parameters")
)

// Params holds the boosting hyper-parameters
type Params struct {
	NumTrees            int     `yaml:"numTrees" json:"numTrees" default:"500"`
	LearningRate        float64 `yaml:"learningRate" json:"learningRate" default:"0.05"`
	MaxDepth            int     `yaml:"maxDepth" json:"maxDepth" default:"6"`
	MinSamplesLeaf      int     `yaml:"minSamplesLeaf" json:"minSamplesLeaf" default:"20"`
	Subsample           float64 `yaml:"subsample" json:"subsample" default:"0.8"`
	ColSample           float64 `yaml:"colSample" json:"colSample" default:"0.8"`
	EarlyStoppingRounds int     `yaml:"earlyStoppingRounds" json:"earlyStoppingRounds" default:"50"`
	MaxBins             int     `yaml:"maxBins" json:"maxBins" default:"255"`
	Seed                int64   `yaml:"seed" json:"seed" default:"42"`
}

// DefaultParams returns the default hyper-parameters
func DefaultParams() Params {
	p := Params{}
	_ = defaults.Set(&p)

	return p
}

// ParseParams decodes YAML encoded parameters over the defaults
func ParseParams(data []byte) (Params, error) {
	p := DefaultParams()

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &p); err != nil {
			return Params{}, fmt.Errorf("failed to decode gbdt parameters: %w", err)
		}
	}

	if err := p.Validate(); err != nil {
		return Params{}, err
	}

	return p, nil
}

// Validate validates the parameters
func (p *Params) Validate() error {
	switch {
	case p.NumTrees <= 0:
		return fmt.Errorf("%w: numTrees must be positive", ErrInvalidParams)
	case p.LearningRate <= 0 || p.LearningRate > 1:
		return fmt.Errorf("%w: learningRate must be in (0, 1]", ErrInvalidParams)
	case p.MaxDepth <= 0:
		return fmt.Errorf("%w: maxDepth must be positive", ErrInvalidParams)
	case p.MinSamplesLeaf <= 0:
		return fmt.Errorf("%w: minSamplesLeaf must be positive", ErrInvalidParams)
	case p.Subsample <= 0 || p.Subsample > 1:
		return fmt.Errorf("%w: subsample must be in (0, 1]", ErrInvalidParams)
	case p.ColSample <= 0 || p.ColSample > 1:
		return fmt.Errorf("%w: colSample must be in (0, 1]", ErrInvalidParams)
	case p.EarlyStoppingRounds < 0:
		return fmt.Errorf("%w: earlyStoppingRounds must not be negative", ErrInvalidParams)
	case p.MaxBins < 2:
		return fmt.Errorf("%w: maxBins must be at least 2", ErrInvalidParams)
	}

	return nil
}
