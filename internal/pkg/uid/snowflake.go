package uid

import (
	"hash/fnv"
	"os"

	"github.com/bwmarrin/snowflake"
)

// Snowflake generates time-ordered int64 ids with a node number derived from
// the host name, so replicas of the service do not collide.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake returns a Snowflake generator for this host.
func NewSnowflake() (*Snowflake, error) {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}

	return NewSnowflakeNode(nodeFromHost(host))
}

// NewSnowflakeNode returns a Snowflake generator for an explicit node number.
func NewSnowflakeNode(node int64) (*Snowflake, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}

	return &Snowflake{node: n}, nil
}

// Generate returns the next id.
func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}

func nodeFromHost(host string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(host))
	return int64(h.Sum32() % (1 << snowflake.NodeBits))
}
