// Package results keeps finished compressions available for download until
// they expire. Everything lives in an in-memory pebble instance and is lost
// on restart.
package results

import (
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	pebble "github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"squeeze/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	metaPrefix = "meta/"
	dataPrefix = "data/"
)

// Record describes a stored compression result.
type Record struct {
	ID                string    `json:"id"`
	Digest            string    `json:"digest"`
	CreatedAt         time.Time `json:"created_at"`
	OriginalSize      int64     `json:"original_size"`
	OriginalSizeKnown bool      `json:"original_size_known"`
	CompressedSize    int64     `json:"compressed_size"`
	IntermediateSize  int64     `json:"intermediate_size,omitempty"`
	Width             int       `json:"width"`
	Height            int       `json:"height"`
	SourceFormat      string    `json:"source_format"`
	SourceMode        string    `json:"source_mode"`
	Quality           int       `json:"quality"`
	Enhancement       string    `json:"enhancement"`
	Factor            float64   `json:"factor"`
	// DeliveredTo is the backend location when the user asked for delivery.
	DeliveredTo string `json:"delivered_to,omitempty"`
}

// ErrNotInitialized is returned by every call made before Init.
var ErrNotInitialized = errors.New("result store not initialized")

var (
	db *pebble.DB
	mu sync.RWMutex
)

// Init opens the result store.
func Init() error {
	mu.Lock()
	defer mu.Unlock()
	if db != nil {
		return nil
	}
	var err error
	db, err = pebble.Open("results", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return errors.Wrap(err, "failed to open result store")
	}
	return nil
}

// Close closes the result store and drops its contents.
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
		return nil, ErrNotInitialized
	}
	return db, nil
}

// Store saves data with rec as its metadata. Digest, CreatedAt and
// CompressedSize are filled in here, and ID too when the caller left it empty.
func Store(rec Record, data []byte) (*Record, error) {
	d, err := handle()
	if err != nil {
		return nil, err
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Digest = utils.Digest(data)
	rec.CreatedAt = time.Now()
	rec.CompressedSize = int64(len(data))

	meta, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal result record")
	}

	b := d.NewBatch()
	defer b.Close()
	if err := b.Set(metaKey(rec.ID), meta, nil); err != nil {
		return nil, err
	}
	if err := b.Set(dataKey(rec.ID), data, nil); err != nil {
		return nil, err
	}
	if err := b.Commit(pebble.NoSync); err != nil {
		return nil, errors.Wrap(err, "failed to store result")
	}
	return &rec, nil
}

// Get returns the record and bytes for id. A missing id is not an error:
// it returns nil, nil, nil.
func Get(id string) (*Record, []byte, error) {
	d, err := handle()
	if err != nil {
		return nil, nil, err
	}

	rec, err := getRecord(d, id)
	if err != nil || rec == nil {
		return nil, nil, err
	}

	value, closer, err := d.Get(dataKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	defer closer.Close()

	data := make([]byte, len(value))
	copy(data, value)
	return rec, data, nil
}

// GetRecord returns only the metadata for id, or nil when it is unknown.
func GetRecord(id string) (*Record, error) {
	d, err := handle()
	if err != nil {
		return nil, err
	}
	return getRecord(d, id)
}

func getRecord(d *pebble.DB, id string) (*Record, error) {
	value, closer, err := d.Get(metaKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer closer.Close()

	var rec Record
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal result record")
	}
	return &rec, nil
}

// SetDelivery records where a result was delivered.
func SetDelivery(id, location string) error {
	d, err := handle()
	if err != nil {
		return err
	}
	rec, err := getRecord(d, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.Newf("result %s not found", id)
	}
	rec.DeliveredTo = location
	meta, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "failed to marshal result record")
	}
	return d.Set(metaKey(id), meta, pebble.NoSync)
}

// Delete removes a result and its bytes.
func Delete(id string) error {
	d, err := handle()
	if err != nil {
		return err
	}
	b := d.NewBatch()
	defer b.Close()
	if err := b.Delete(metaKey(id), nil); err != nil {
		return err
	}
	if err := b.Delete(dataKey(id), nil); err != nil {
		return err
	}
	return b.Commit(pebble.NoSync)
}

// List returns every stored record, newest first.
func List() ([]Record, error) {
	d, err := handle()
	if err != nil {
		return nil, err
	}

	iter, err := d.NewIter(prefixOptions(metaPrefix))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var records []Record
	for iter.First(); iter.Valid(); iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue // Skip invalid records
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// CleanupOldRecords removes results older than maxAge and reports how many
// were dropped.
func CleanupOldRecords(maxAge time.Duration) (int, error) {
	d, err := handle()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	iter, err := d.NewIter(prefixOptions(metaPrefix))
	if err != nil {
		return 0, err
	}

	var expired []string
	for iter.First(); iter.Valid(); iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue
		}
		if rec.CreatedAt.Before(cutoff) {
			expired = append(expired, rec.ID)
		}
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}

	for _, id := range expired {
		if err := Delete(id); err != nil {
			return 0, errors.Wrap(err, "failed to delete expired result")
		}
	}
	return len(expired), nil
}

// CheckHealth performs a basic read against the store.
func CheckHealth() error {
	d, err := handle()
	if err != nil {
		return err
	}
	_, closer, err := d.Get([]byte("__health_check__"))
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return errors.Wrap(err, "result store health check failed")
	}
	if closer != nil {
		closer.Close()
	}
	return nil
}

func metaKey(id string) []byte { return []byte(metaPrefix + id) }
func dataKey(id string) []byte { return []byte(dataPrefix + id) }

func prefixOptions(prefix string) *pebble.IterOptions {
	upper := []byte(prefix)
	upper[len(upper)-1]++
	return &pebble.IterOptions{LowerBound: []byte(prefix), UpperBound: upper}
}
