// Package evalstore persists forms, submissions, aggregates and the override
// audit log on SQLite, MySQL or PostgreSQL.
package evalstore

import (
	"fmt"
	"sync"

	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/schema"
)

// EvalStoreManager owns the process-wide EvalStore instance.
type EvalStoreManager struct {
	sync.RWMutex // Protects the store pointer during initialization
	store        contract.EvalStore
}

var _ contract.StoreManager = &EvalStoreManager{} // Compile-time check

// GetEvalStore returns the EvalStore.
func (mgr *EvalStoreManager) GetEvalStore() contract.EvalStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.store
}

// Global Manager instance for main logic.
var (
	Manager   = &EvalStoreManager{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// InitStores initializes the global manager with the configured backend.
func InitStores(backend schema.DatabaseBackend, connStr string) error {
	var initErr error

	initOnce.Do(func() {
		store, err := NewEvalStore(backend, connStr)
		if err != nil {
			initErr = fmt.Errorf("failed to initialize evaluation store: %w", err)
			return
		}
		Manager.Lock()
		Manager.store = store
		Manager.Unlock()
	})

	return initErr
}

// CloseStores should be called on application shutdown.
func CloseStores() { // called in main defer
	closeOnce.Do(func() {
		Manager.Lock()
		defer Manager.Unlock()
		if Manager.store != nil {
			_ = Manager.store.Close()
		}
	})
}
