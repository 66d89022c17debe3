package backend

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cashbook/internal/config"
	"cashbook/internal/storage"
	"cashbook/internal/storage/memory"
)

func baseConfig() *config.Config {
	return &config.Config{
		DataBackend:      "memory",
		EventsBackend:    "none",
		LockBackend:      "local",
		CalendarCacheTTL: time.Hour,
	}
}

func TestDefaultFactory_CreateBackend(t *testing.T) {
	staffDir := t.TempDir()
	for name, body := range map[string]string{"admins.txt": "a-1\n", "csos.txt": "# field staff\nc-1\n"} {
		if err := os.WriteFile(filepath.Join(staffDir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name        string
		mutate      func(*config.Config)
		wantErr     bool
		wantOptions int
	}{
		{name: "memory defaults", mutate: func(*config.Config) {}, wantOptions: 1},
		{name: "unknown backend", mutate: func(c *config.Config) { c.DataBackend = "sheets" }, wantErr: true},
		{name: "staff directory", mutate: func(c *config.Config) { c.DirectoryDir = staffDir }, wantOptions: 2},
		{name: "missing staff directory", mutate: func(c *config.Config) { c.DirectoryDir = filepath.Join(staffDir, "nope") }, wantErr: true},
		{
			name: "kafka publisher",
			mutate: func(c *config.Config) {
				c.EventsBackend = "kafka"
				c.KafkaBrokers = []string{"localhost:9092"}
				c.KafkaTopic = "ledger-events"
			},
			wantOptions: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(cfg)

			res, err := NewFactory(nil).CreateBackend(context.Background(), cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateBackend() error = %v", err)
			}
			defer res.Cleanup()

			if _, ok := res.Store.(*memory.Store); !ok {
				t.Fatalf("expected memory store, got %T", res.Store)
			}
			if len(res.Options) != tt.wantOptions {
				t.Fatalf("got %d options, want %d", len(res.Options), tt.wantOptions)
			}
		})
	}
}

func TestDefaultFactory_DirectoryFailureOpensNoPublisher(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	cfg := baseConfig()
	cfg.EventsBackend = "kafka"
	cfg.KafkaBrokers = []string{"localhost:9092"}
	cfg.KafkaTopic = "ledger-events"
	cfg.DirectoryDir = filepath.Join(t.TempDir(), "missing")

	if _, err := NewFactory(logger).CreateBackend(context.Background(), cfg); err == nil {
		t.Fatal("expected error for missing staff directory")
	}
	if strings.Contains(logs.String(), "Publishing ledger events") {
		t.Fatalf("publisher opened before directory failure:\n%s", logs.String())
	}
}

func TestDefaultFactory_SQLite(t *testing.T) {
	cfg := baseConfig()
	cfg.DataBackend = "sqlite"
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "ledger.db")

	res, err := NewFactory(nil).CreateBackend(context.Background(), cfg)
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Store.Close()

	if _, ok := res.Store.(*storage.SQLiteRepository); !ok {
		t.Fatalf("expected SQLite repository, got %T", res.Store)
	}
}

func TestNewFactory_NilConfig(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestResult_CleanupOrder(t *testing.T) {
	var order []int
	res := &Result{}
	for i := 1; i <= 3; i++ {
		i := i
		res.cleanups = append(res.cleanups, func() error { order = append(order, i); return nil })
	}
	if err := res.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if len(order) != 3 || order[0] != 3 || order[2] != 1 {
		t.Fatalf("cleanups ran in %v, want reverse order", order)
	}
	if err := res.Cleanup(); err != nil || len(order) != 3 {
		t.Fatal("second cleanup should be a no-op")
	}
}
