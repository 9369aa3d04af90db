package sim

import (
	"sync"
)

// samplePool recycles the value maps handed to observers.
type samplePool struct {
	pool sync.Pool
}

func newSamplePool(size int) *samplePool {
	return &samplePool{
		pool: sync.Pool{
			New: func() any {
				return make(map[string]float64, size)
			},
		},
	}
}

func (p *samplePool) get() map[string]float64 {
	return p.pool.Get().(map[string]float64)
}

func (p *samplePool) put(m map[string]float64) {
	clear(m)
	p.pool.Put(m)
}
