package results

import (
	"bytes"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"squeeze/utils"
)

func setupStore(t *testing.T) {
	t.Helper()
	if err := Init(); err != nil {
		t.Fatalf("Failed to init result store: %v", err)
	}
	t.Cleanup(func() { Close() })
}

func TestStoreAndGet(t *testing.T) {
	setupStore(t)

	data := []byte("\xff\xd8fake jpeg bytes\xff\xd9")
	rec, err := Store(Record{OriginalSize: 2048, OriginalSizeKnown: true, Quality: 70, Enhancement: "none"}, data)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if rec.ID == "" || rec.CreatedAt.IsZero() {
		t.Errorf("Store should assign an id and timestamp: %+v", rec)
	}
	if rec.Digest != utils.Digest(data) || rec.CompressedSize != int64(len(data)) {
		t.Errorf("Unexpected digest or size: %+v", rec)
	}

	got, gotData, err := Get(rec.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || !bytes.Equal(gotData, data) {
		t.Fatal("Stored bytes were not returned")
	}
	if got.Quality != 70 || got.OriginalSize != 2048 || !got.OriginalSizeKnown {
		t.Errorf("Metadata did not round-trip: %+v", got)
	}

	if err := SetDelivery(rec.ID, "s3://bucket/key.jpg"); err != nil {
		t.Fatalf("SetDelivery failed: %v", err)
	}
	if meta, _ := GetRecord(rec.ID); meta == nil || meta.DeliveredTo != "s3://bucket/key.jpg" {
		t.Errorf("Delivery location not recorded: %+v", meta)
	}
}

func TestStoreKeepsCallerID(t *testing.T) {
	setupStore(t)

	rec, err := Store(Record{ID: "job-42"}, []byte("x"))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if rec.ID != "job-42" {
		t.Errorf("Expected caller id to be kept, got %s", rec.ID)
	}
	if got, _ := GetRecord("job-42"); got == nil {
		t.Error("Record not found under the caller id")
	}
}

func TestGetMissing(t *testing.T) {
	setupStore(t)

	rec, data, err := Get("does-not-exist")
	if err != nil || rec != nil || data != nil {
		t.Errorf("Expected nil, nil, nil for a missing id, got %v, %v, %v", rec, data, err)
	}
	if err := SetDelivery("does-not-exist", "x"); err == nil {
		t.Error("Expected an error when annotating a missing result")
	}
}

func TestDeleteAndList(t *testing.T) {
	setupStore(t)

	first, err := Store(Record{Quality: 10}, []byte("a"))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := Store(Record{Quality: 90}, []byte("b"))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	list, err := List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("Expected two records newest first, got %+v", list)
	}

	if err := Delete(first.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if rec, _, _ := Get(first.ID); rec != nil {
		t.Error("Deleted record is still readable")
	}
	if list, _ := List(); len(list) != 1 {
		t.Errorf("Expected one record after delete, got %d", len(list))
	}
}

func TestCleanupOldRecords(t *testing.T) {
	setupStore(t)

	rec, err := Store(Record{}, []byte("payload"))
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	n, err := CleanupOldRecords(time.Hour)
	if err != nil || n != 0 {
		t.Fatalf("Fresh records should survive: n=%d err=%v", n, err)
	}

	time.Sleep(5 * time.Millisecond)
	n, err = CleanupOldRecords(time.Millisecond)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected one expired record, got %d", n)
	}
	if got, data, _ := Get(rec.ID); got != nil || data != nil {
		t.Error("Expired result is still downloadable")
	}
}

func TestNotInitialized(t *testing.T) {
	Close()
	if _, err := Store(Record{}, nil); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
	if err := CheckHealth(); err == nil {
		t.Error("Health check should fail before Init")
	}

	setupStore(t)
	if err := CheckHealth(); err != nil {
		t.Errorf("Health check failed: %v", err)
	}
}
