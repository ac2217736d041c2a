package amm

import (
	"fmt"
	"sync"

	"ammEngine/internal/model"
)

// registry maps canonical pool keys to pools. Pools are append-only, so a
// PoolID is also the index into pools.
type registry struct {
	mu    sync.RWMutex
	byKey map[model.PoolKey]model.PoolID
	pools []*poolState
}

func newRegistry() *registry {
	return &registry{byKey: make(map[model.PoolKey]model.PoolID)}
}

func validatePair(assetX, assetY string, feeBps uint32) error {
	if assetX == "" || assetY == "" || assetX == assetY {
		return fmt.Errorf("%w: %q/%q", ErrInvalidAssetPair, assetX, assetY)
	}
	return validateFee(feeBps)
}

// insert allocates a pool for key unless one exists. The new pool is
// returned with st.mu held; the caller unlocks it.
func (r *registry) insert(key model.PoolKey) (*poolState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byKey[key]; ok {
		return nil, fmt.Errorf("%w: %s is pool %d", ErrPoolAlreadyExists, key, id)
	}
	id := model.PoolID(len(r.pools))
	st := newPoolState(id, key)
	st.mu.Lock()
	r.pools = append(r.pools, st)
	r.byKey[key] = id
	return st, nil
}

func (r *registry) get(id model.PoolID) (*poolState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if uint64(id) >= uint64(len(r.pools)) {
		return nil, fmt.Errorf("%w: %d", ErrPoolNotFound, id)
	}
	return r.pools[id], nil
}

func (r *registry) lookup(key model.PoolKey) (*poolState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, key)
	}
	return r.pools[id], nil
}

func (r *registry) all() []*poolState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*poolState, len(r.pools))
	copy(out, r.pools)
	return out
}
