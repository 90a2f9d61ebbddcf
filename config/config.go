// Package config loads the description of a decomposition run from YAML.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/notargets/GridBlock/partitions"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

const (
	PartitionerUniform = "uniform"
	PartitionerManual  = "manual"
)

type Config struct {
	Domain        DomainConfig        `yaml:"domain"`
	Decomposition DecompositionConfig `yaml:"decomposition"`
}

// DomainConfig describes the global box
type DomainConfig struct {
	LowCorner  [3]float64 `yaml:"low_corner"`
	HighCorner [3]float64 `yaml:"high_corner"`
	CellSize   float64    `yaml:"cell_size"`
	Periodic   [3]bool    `yaml:"periodic"`
}

// DecompositionConfig describes how the box is split over ranks
type DecompositionConfig struct {
	Ranks       int    `yaml:"ranks"`
	HaloWidth   int    `yaml:"halo_width"`
	Partitioner string `yaml:"partitioner"`   // uniform or manual
	RanksPerDim [3]int `yaml:"ranks_per_dim"` // Used by the manual partitioner

	// Largest accepted max/avg owned cell ratio, zero disables the check
	MaxImbalance float64 `yaml:"max_imbalance"`
}

// Load reads the embedded defaults, then overlays the file at path. An empty
// path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and shapes. Divisibility of the box by the cell
// size is left to the grid.
func (c *Config) Validate() error {
	d := c.Domain
	if d.CellSize <= 0 {
		return fmt.Errorf("domain.cell_size must be positive, got %g", d.CellSize)
	}
	for dim := 0; dim < 3; dim++ {
		if d.HighCorner[dim] <= d.LowCorner[dim] {
			return fmt.Errorf("domain.high_corner[%d]=%g must exceed low_corner[%d]=%g",
				dim, d.HighCorner[dim], dim, d.LowCorner[dim])
		}
	}

	p := c.Decomposition
	if p.Ranks < 1 {
		return fmt.Errorf("decomposition.ranks must be at least 1, got %d", p.Ranks)
	}
	if p.MaxImbalance < 0 {
		return fmt.Errorf("decomposition.max_imbalance must be non-negative, got %g", p.MaxImbalance)
	}
	if p.HaloWidth < 0 {
		return fmt.Errorf("decomposition.halo_width must be non-negative, got %d", p.HaloWidth)
	}
	switch p.Partitioner {
	case PartitionerUniform:
	case PartitionerManual:
		product := 1
		for dim := 0; dim < 3; dim++ {
			if p.RanksPerDim[dim] < 1 {
				return fmt.Errorf("decomposition.ranks_per_dim[%d] must be at least 1 for the manual partitioner",
					dim)
			}
			product *= p.RanksPerDim[dim]
		}
		if product != p.Ranks {
			return fmt.Errorf("decomposition.ranks_per_dim %v holds %d ranks, want %d",
				p.RanksPerDim, product, p.Ranks)
		}
	default:
		return fmt.Errorf("unknown decomposition.partitioner %q", p.Partitioner)
	}
	return nil
}

// Partitioner returns the rank-grid strategy selected by the configuration
func (c *Config) Partitioner() partitions.Partitioner {
	if c.Decomposition.Partitioner == PartitionerManual {
		return partitions.ManualPartitioner{Ranks: c.Decomposition.RanksPerDim}
	}
	return partitions.UniformDimPartitioner{}
}

func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
