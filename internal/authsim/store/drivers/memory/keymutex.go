package memory

import (
	"hash/fnv"
	"sync"
)

const stripeCount = 64

// keyMutex serializes read-modify-write cycles per key using lock striping.
// Two distinct keys may share a stripe and briefly contend; that is harmless
// and keeps the structure fixed-size.
type keyMutex struct {
	stripes [stripeCount]sync.Mutex
}

func (k *keyMutex) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &k.stripes[h.Sum32()%stripeCount]
	m.Lock()
	return m.Unlock
}
