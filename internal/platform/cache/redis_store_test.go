package cache

import (
	"errors"
	"testing"
)

func TestDecodeRedisEntry_RejectsMissingFields(t *testing.T) {
	t.Parallel()

	_, err := decodeRedisEntry("k", map[string]string{fieldValue: "x", fieldCreatedAt: "1"})
	if !errors.Is(err, errCorruptEntry) {
		t.Fatalf("expected corrupt entry error, got %v", err)
	}

	_, err = decodeRedisEntry("k", map[string]string{
		fieldValue: "x", fieldCreatedAt: "1", fieldTTL: "abc", fieldSoftTTL: "0", fieldGeneration: "1",
	})
	if !errors.Is(err, errCorruptEntry) {
		t.Fatalf("expected corrupt entry error for bad ttl, got %v", err)
	}
}
