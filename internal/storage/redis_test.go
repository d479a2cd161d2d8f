package storage

import (
	"testing"
	"time"
)

func TestHashFromRecord(t *testing.T) {
	rec := testRecord("conn-1")

	fields, err := hashFromRecord(rec)
	if err != nil {
		t.Fatalf("hashFromRecord failed: %v", err)
	}

	if _, ok := fields[fieldData]; !ok {
		t.Error("missing data field")
	}
	if got := fields[fieldCreatedAt]; got != "2025-06-01T12:00:00Z" {
		t.Errorf("created_at = %v, want 2025-06-01T12:00:00Z", got)
	}
	if got := fields[fieldExpiresAt]; got != "2025-06-01T14:00:00Z" {
		t.Errorf("expires_at = %v, want 2025-06-01T14:00:00Z", got)
	}
}

func TestHashFromRecordNoExpiry(t *testing.T) {
	rec := testRecord("conn-1")
	rec.ExpiresAt = time.Time{}

	fields, err := hashFromRecord(rec)
	if err != nil {
		t.Fatalf("hashFromRecord failed: %v", err)
	}
	if _, ok := fields[fieldExpiresAt]; ok {
		t.Error("expires_at field present for record without expiry")
	}
}

func TestRecordFromHash(t *testing.T) {
	rec := testRecord("conn-1")
	fields, err := hashFromRecord(rec)
	if err != nil {
		t.Fatalf("hashFromRecord failed: %v", err)
	}

	strFields := make(map[string]string, len(fields))
	for k, v := range fields {
		strFields[k] = v.(string)
	}

	got, err := recordFromHash("conn-1", strFields)
	if err != nil {
		t.Fatalf("recordFromHash failed: %v", err)
	}

	if got.ID != rec.ID {
		t.Errorf("ID = %q, want %q", got.ID, rec.ID)
	}
	if got.Data.Endpoint != rec.Data.Endpoint {
		t.Errorf("Data.Endpoint = %q, want %q", got.Data.Endpoint, rec.Data.Endpoint)
	}
	if got.Data.Context["user"] != "u-1" {
		t.Errorf("Data.Context = %v, want user u-1", got.Data.Context)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}
	if !got.ExpiresAt.Equal(rec.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, rec.ExpiresAt)
	}
}

func TestRecordFromHashPartial(t *testing.T) {
	// A data-only hash appears when UpdateData raced a delete; reads
	// must survive it.
	got, err := recordFromHash("conn-1", map[string]string{
		fieldData: `{"endpoint":"push.example.com","context":{},"is_initialized":true}`,
	})
	if err != nil {
		t.Fatalf("recordFromHash failed: %v", err)
	}

	if !got.Data.IsInitialized {
		t.Error("IsInitialized = false, want true")
	}
	if !got.CreatedAt.IsZero() {
		t.Errorf("CreatedAt = %v, want zero", got.CreatedAt)
	}
	if !got.ExpiresAt.IsZero() {
		t.Errorf("ExpiresAt = %v, want zero", got.ExpiresAt)
	}
}

func TestRecordFromHashBadTimestamp(t *testing.T) {
	_, err := recordFromHash("conn-1", map[string]string{
		fieldCreatedAt: "not-a-time",
	})
	if err == nil {
		t.Error("expected error for malformed created_at")
	}
}

func TestRedisStoreKey(t *testing.T) {
	s := NewRedisStore(nil, "connections")
	if got := s.key("conn-1"); got != "connections:conn-1" {
		t.Errorf("key = %q, want %q", got, "connections:conn-1")
	}
}
