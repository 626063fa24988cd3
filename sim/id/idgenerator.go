package id

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator hands out unique string IDs.
type IDGenerator interface {
	Generate() string
}

// NewIDGenerator returns a generator producing "1", "2", ... in call order.
func NewIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

// NewGlobalIDGenerator returns a generator whose IDs are unique across
// processes, used where IDs outlive a single run.
func NewGlobalIDGenerator() IDGenerator {
	return globalIDGenerator{}
}

type sequentialIDGenerator struct {
	nextID uint64
}

func (g *sequentialIDGenerator) Generate() string {
	idNumber := atomic.AddUint64(&g.nextID, 1)
	id := strconv.FormatUint(idNumber, 10)

	return id
}

type globalIDGenerator struct {
}

func (g globalIDGenerator) Generate() string {
	return xid.New().String()
}
