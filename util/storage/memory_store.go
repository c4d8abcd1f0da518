package storage

import (
	"fmt"
	"github.com/APTrust/deposit/constants"
	"github.com/APTrust/deposit/models"
	"sync"
	"time"
)

// MemoryStore keeps status and completion logs in memory. It's for
// tests, and loses everything when the process exits.
type MemoryStore struct {
	mutex     sync.Mutex
	fields    map[string]map[string]string
	completed map[string][]string
	expiry    map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		fields:    make(map[string]map[string]string),
		completed: make(map[string][]string),
		expiry:    make(map[string]time.Time),
	}
}

func (store *MemoryStore) GetStatus(depositId string) (*models.DepositStatus, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return models.NewDepositStatus(depositId, store.fields[depositId]), nil
}

func (store *MemoryStore) UpdateStatus(depositId, field, value string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if store.fields[depositId] == nil {
		store.fields[depositId] = make(map[string]string)
	}
	store.fields[depositId][field] = value
	return nil
}

func (store *MemoryStore) ClearStatusFields(depositId string, fields ...string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for _, field := range fields {
		delete(store.fields[depositId], field)
	}
	return nil
}

// ExpireStatus records the expiry time. Data is not removed; check
// ExpiresAt in tests.
func (store *MemoryStore) ExpireStatus(depositId string, ttl time.Duration) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.expiry[depositId] = time.Now().Add(ttl)
	return nil
}

// ExpiresAt returns the deposit's expiry time and whether one is set.
func (store *MemoryStore) ExpiresAt(depositId string) (time.Time, bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	expiresAt, ok := store.expiry[depositId]
	return expiresAt, ok
}

func (store *MemoryStore) CompletedJobTypes(depositId string) ([]string, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return append([]string{}, store.completed[depositId]...), nil
}

func (store *MemoryStore) JobSucceeded(depositId string, jobType constants.JobType) error {
	if !jobType.IsRecordable() {
		return fmt.Errorf("Job type %s cannot be recorded", jobType)
	}
	store.mutex.Lock()
	defer store.mutex.Unlock()
	for _, token := range store.completed[depositId] {
		if token == jobType.String() {
			return nil
		}
	}
	store.completed[depositId] = append(store.completed[depositId], jobType.String())
	return nil
}

// AppendRawToken adds token to the completion log without checking
// it, the way an older pipeline version might have.
func (store *MemoryStore) AppendRawToken(depositId, token string) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.completed[depositId] = append(store.completed[depositId], token)
}

func (store *MemoryStore) Close() error {
	return nil
}
