package guard

import (
	"hash/fnv"
	"sync"
)

// lockStripes is the number of mutexes per lockTable. Namespaces hashing to
// the same stripe share a mutex.
const lockStripes = 64

// lockTable serializes a component's read-modify-write cycles per namespace
// without keeping any per-namespace state.
type lockTable [lockStripes]sync.Mutex

func (t *lockTable) get(namespace string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(namespace))
	return &t[h.Sum32()%lockStripes]
}
