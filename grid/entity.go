package grid

// Entity identifies where grid data lives: at cell centers or at the nodes
// bounding the cells
type Entity uint8

const (
	Cell Entity = iota // N per dimension
	Node               // N+1 per dimension

	numEntities = 2
)

// Entities lists every entity type
var Entities = [numEntities]Entity{Cell, Node}

func (e Entity) String() string {
	switch e {
	case Cell:
		return "Cell"
	case Node:
		return "Node"
	default:
		return "Unknown"
	}
}

// boundaryLayer is the one extra layer a node grid carries over the cell
// grid it bounds. The shared boundary node is owned by one rank and mirrored
// into the adjacent rank's ghost region, so every index calculation that
// touches it adds this term.
func (e Entity) boundaryLayer() int {
	if e == Node {
		return 1
	}
	return 0
}
