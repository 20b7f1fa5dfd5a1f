package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestStateStore_FlagRoundTrip(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "mountfs-state-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	ctx := context.Background()
	dbPath := filepath.Join(tmpDir, "state.db")

	store, err := OpenStateStore(dbPath, "")
	if err != nil {
		t.Fatalf("failed to open state store: %v", err)
	}
	if store.IsEncrypted() {
		t.Error("store without passphrase should not be encrypted")
	}
	if store.Path() != dbPath {
		t.Errorf("expected path %s, got %s", dbPath, store.Path())
	}

	on, err := store.Flag(ctx, FlagFactoryReset)
	if err != nil {
		t.Fatalf("failed to read flag: %v", err)
	}
	if on {
		t.Error("unknown flag should be off")
	}

	if err := store.SetFlag(ctx, FlagFactoryReset, true); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}
	store.Close()

	// The flag survives a reopen
	store2, err := OpenStateStore(dbPath, "")
	if err != nil {
		t.Fatalf("failed to reopen state store: %v", err)
	}
	defer store2.Close()

	on, err = store2.Flag(ctx, FlagFactoryReset)
	if err != nil {
		t.Fatalf("failed to read flag after reopen: %v", err)
	}
	if !on {
		t.Error("flag should still be set after reopen")
	}

	if err := store2.SetFlag(ctx, FlagFactoryReset, false); err != nil {
		t.Fatalf("failed to clear flag: %v", err)
	}
	on, _ = store2.Flag(ctx, FlagFactoryReset)
	if on {
		t.Error("flag should be cleared")
	}
}

func TestStateStore_WrongPassphraseFails(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "mountfs-state-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "state.db")

	store, err := OpenStateStore(dbPath, "correct-passphrase")
	if err != nil {
		t.Fatalf("failed to create encrypted store: %v", err)
	}
	if !store.IsEncrypted() {
		t.Error("store should be marked as encrypted")
	}
	if err := store.SetFlag(context.Background(), FlagFactoryReset, true); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}
	store.Close()

	if _, err := OpenStateStore(dbPath, "wrong-passphrase"); err == nil {
		t.Error("opening with a wrong passphrase should fail")
	}

	store2, err := OpenStateStore(dbPath, "correct-passphrase")
	if err != nil {
		t.Fatalf("failed to reopen with correct passphrase: %v", err)
	}
	defer store2.Close()

	on, err := store2.Flag(context.Background(), FlagFactoryReset)
	if err != nil || !on {
		t.Errorf("expected flag set, got %v (err %v)", on, err)
	}
}
