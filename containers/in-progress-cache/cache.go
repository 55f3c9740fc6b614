// Copyright 2024, Offchain Labs, Inc.
// For license information, see https://github.com/offchainlabs/bold/blob/main/LICENSE

// Package inprogresscache coalesces identical requests that are in flight at
// the same time.
package inprogresscache

import (
	"sync"

	"github.com/ethereum/go-ethereum/metrics"
)

var (
	inFlightRequestsCounter = metrics.NewRegisteredCounter("bold/verifier/client/inflight", nil)
	pendingRequestsCounter  = metrics.NewRegisteredCounter("bold/verifier/client/coalesced", nil)
)

type result[V any] struct {
	val V
	err error
}

// Cache ensures only one request per key is in flight at a time. A caller
// arriving while the request is running waits for it and receives the same
// value and error instead of issuing a second request. Nothing is kept once
// the request completes.
type Cache[K comparable, V any] struct {
	lock    sync.Mutex
	waiters map[K][]chan result[V]
}

func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		waiters: make(map[K][]chan result[V]),
	}
}

// Compute runs f for the request id unless a call for the same id is already
// running, in which case its outcome is shared.
func (c *Cache[K, V]) Compute(requestId K, f func() (V, error)) (V, error) {
	c.lock.Lock()
	if waiting, ok := c.waiters[requestId]; ok {
		pendingRequestsCounter.Inc(1)
		ch := make(chan result[V], 1)
		c.waiters[requestId] = append(waiting, ch)
		c.lock.Unlock()
		res := <-ch
		return res.val, res.err
	}
	c.waiters[requestId] = make([]chan result[V], 0)
	inFlightRequestsCounter.Inc(1)
	c.lock.Unlock()

	val, err := f()

	c.lock.Lock()
	waiting := c.waiters[requestId]
	delete(c.waiters, requestId)
	c.lock.Unlock()
	for _, ch := range waiting {
		ch <- result[V]{val: val, err: err}
	}
	return val, err
}
