// Package id hands out snowflake ids for tickets.
package id

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init sets up the process-wide node. Only the first call has any effect;
// node ids must be unique per running replica (0-1023).
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	if err != nil {
		return fmt.Errorf("initializing snowflake node %d: %w", nodeID, err)
	}
	return nil
}

// New returns a time-ordered id. Init must have been called.
func New() int64 {
	return node.Generate().Int64()
}

// NewString returns New formatted as a decimal string, the form tickets
// carry on the wire and in storage keys.
func NewString() string {
	return node.Generate().String()
}
