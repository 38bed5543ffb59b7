package failures

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	pebble "github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FailureRecord represents a request that could not be completed
type FailureRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"` // validate, decode, encode, delivery, ...
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"` // text shown to the user
	Request   string    `json:"request"`           // JSON of the request parameters
}

var (
	db *pebble.DB
	mu sync.RWMutex
)

// Init initializes the failure store
func Init() error {
	mu.Lock()
	defer mu.Unlock()
	if db != nil {
		return nil
	}
	var err error
	db, err = pebble.Open("failures", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return errors.Wrap(err, "failed to open failure store")
	}
	return nil
}

// Close closes the failure store
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

func handle() (*pebble.DB, error) {
	mu.RLock()
	defer mu.RUnlock()
	if db == nil {
		return nil, errors.New("failure store not initialized")
	}
	return db, nil
}

// StoreFailure records a failed request under id
func StoreFailure(id, stage string, err error, message string, request interface{}) error {
	d, dbErr := handle()
	if dbErr != nil {
		return dbErr
	}

	reqJSON, jsonErr := json.Marshal(request)
	if jsonErr != nil {
		reqJSON = []byte(fmt.Sprintf("failed to marshal request: %v", jsonErr))
	}

	record := FailureRecord{
		ID:        id,
		Timestamp: time.Now(),
		Stage:     stage,
		Error:     err.Error(),
		Message:   message,
		Request:   string(reqJSON),
	}

	data, jsonErr := json.Marshal(record)
	if jsonErr != nil {
		return errors.Wrap(jsonErr, "failed to marshal failure record")
	}

	return d.Set([]byte(id), data, pebble.NoSync)
}

// GetFailure retrieves a failure record by id
func GetFailure(id string) (*FailureRecord, error) {
	d, err := handle()
	if err != nil {
		return nil, err
	}

	data, closer, err := d.Get([]byte(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil // No failure found
		}
		return nil, errors.Wrap(err, "failed to get failure")
	}
	defer closer.Close()

	var record FailureRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal failure record")
	}

	return &record, nil
}

// DeleteFailure removes a failure record
func DeleteFailure(id string) error {
	d, err := handle()
	if err != nil {
		return err
	}
	return d.Delete([]byte(id), pebble.NoSync)
}

// ListFailures returns all failure records, newest first
func ListFailures() ([]FailureRecord, error) {
	d, err := handle()
	if err != nil {
		return nil, err
	}

	var failures []FailureRecord
	iter, err := d.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create iterator")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var record FailureRecord
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			continue // Skip invalid records
		}
		failures = append(failures, record)
	}

	if err := iter.Error(); err != nil {
		return nil, errors.Wrap(err, "iteration error")
	}

	sort.Slice(failures, func(i, j int) bool {
		return failures[i].Timestamp.After(failures[j].Timestamp)
	})
	return failures, nil
}

// CleanupOldRecords removes failures older than maxAge
func CleanupOldRecords(maxAge time.Duration) (int, error) {
	records, err := ListFailures()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, record := range records {
		if !record.Timestamp.Before(cutoff) {
			continue
		}
		if err := DeleteFailure(record.ID); err != nil {
			return removed, errors.Wrap(err, "failed to delete old failure record")
		}
		removed++
	}
	return removed, nil
}
