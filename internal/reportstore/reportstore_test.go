package reportstore

import (
	"testing"

	"github.com/jimdaga/friend-frenzy/internal/config"
	"github.com/jimdaga/friend-frenzy/internal/insights"
)

func TestNewSelectsBackend(t *testing.T) {
	store, closeFn, err := New(&config.Config{ReportStore: config.StoreMemory}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*insights.MemoryStore); !ok {
		t.Errorf("expected *insights.MemoryStore, got %T", store)
	}
	if err := closeFn(); err != nil {
		t.Errorf("unexpected close error: %v", err)
	}

	store, closeFn, err = New(&config.Config{ReportStore: config.StoreRedis, RedisURL: "redis://localhost:6379/0"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*RedisStore); !ok {
		t.Errorf("expected *RedisStore, got %T", store)
	}
	closeFn()
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{"postgres without db", &config.Config{ReportStore: config.StorePostgres}},
		{"unknown backend", &config.Config{ReportStore: "etcd"}},
		{"bad redis url", &config.Config{ReportStore: config.StoreRedis, RedisURL: "not a url"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := New(tt.cfg, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDecodeReportEmpty(t *testing.T) {
	for _, in := range [][]byte{nil, []byte("null")} {
		r, err := decodeReport(in)
		if err != nil || r != nil {
			t.Errorf("decodeReport(%q) = %v, %v; want nil, nil", in, r, err)
		}
	}
	if _, err := decodeReport([]byte("{broken")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestKeyFormat(t *testing.T) {
	if got := key("abc"); got != "frenzy:insights:abc" {
		t.Errorf("unexpected key %q", got)
	}
}
