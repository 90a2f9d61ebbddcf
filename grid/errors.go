package grid

import (
	"fmt"
)

// ConfigurationError reports static grid parameters that cannot describe a
// valid decomposition, e.g. a domain extent that is not a whole number of
// cells
type ConfigurationError struct {
	Dim    int // -1 when not tied to a dimension
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Dim < 0 {
		return "grid configuration: " + e.Reason
	}
	return fmt.Sprintf("grid configuration: dimension %d: %s", e.Dim, e.Reason)
}

// TopologyError reports a failure to build the Cartesian process topology
type TopologyError struct {
	RanksPerDim [3]int
	Err         error
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("process topology %v: %v", e.RanksPerDim, e.Err)
}

func (e *TopologyError) Unwrap() error { return e.Err }

// InvalidOffsetError reports a neighbor offset that is the zero offset or
// has a component outside {-1, 0, 1}
type InvalidOffsetError struct {
	Offset [3]int
}

func (e *InvalidOffsetError) Error() string {
	return fmt.Sprintf("invalid neighbor offset (%d,%d,%d)",
		e.Offset[0], e.Offset[1], e.Offset[2])
}
