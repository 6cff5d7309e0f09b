package repository

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// IDGenerator hands out time-ordered 64-bit ids for new rows, so inserts
// never depend on driver support for LastInsertId.
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator creates a generator for the given snowflake node (0-1023).
func NewIDGenerator(node int64) (*IDGenerator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", node, err)
	}
	return &IDGenerator{node: n}, nil
}

// Next returns a new unique id.
func (g *IDGenerator) Next() int64 {
	return g.node.Generate().Int64()
}
