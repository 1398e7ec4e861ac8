package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBatchStore_NextSerial_FreshFile(t *testing.T) {
	t.Parallel()

	store := NewBatchStore(filepath.Join(t.TempDir(), "batch_serials.json"))
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := store.NextSerial(ctx, "B7")
		if err != nil {
			t.Fatalf("NextSerial: %v", err)
		}
		if got != want {
			t.Fatalf("serial=%d want=%d", got, want)
		}
	}
}

func TestBatchStore_NextSerial_PreservesOtherBatches(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "batch_serials.json")
	if err := os.WriteFile(path, []byte(`{"B7": 41, "C2": 7}`), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store := NewBatchStore(path)
	ctx := context.Background()

	got, err := store.NextSerial(ctx, "B7")
	if err != nil {
		t.Fatalf("NextSerial: %v", err)
	}
	if got != 42 {
		t.Fatalf("serial=%d", got)
	}

	// 其余批次的计数必须原样保留。
	other, err := store.LastSerial(ctx, "C2")
	if err != nil {
		t.Fatalf("LastSerial: %v", err)
	}
	if other != 7 {
		t.Fatalf("C2 serial=%d", other)
	}
}

func TestBatchStore_NextSerial_BatchCaseInsensitive(t *testing.T) {
	t.Parallel()

	store := NewBatchStore(filepath.Join(t.TempDir(), "batch_serials.json"))
	ctx := context.Background()

	if _, err := store.NextSerial(ctx, "b7"); err != nil {
		t.Fatalf("NextSerial: %v", err)
	}
	got, err := store.NextSerial(ctx, "B7")
	if err != nil {
		t.Fatalf("NextSerial: %v", err)
	}
	if got != 2 {
		t.Fatalf("serial=%d", got)
	}
}

func TestBatchStore_NextSerial_CorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "batch_serials.json")
	if err := os.WriteFile(path, []byte(`{"B7": 41`), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store := NewBatchStore(path)

	_, err := store.NextSerial(context.Background(), "B7")
	if err == nil {
		t.Fatal("corrupt file accepted")
	}
	var corrupt *CorruptStoreError
	if !errors.As(err, &corrupt) {
		t.Fatalf("err=%v", err)
	}
	if corrupt.Path != path {
		t.Fatalf("path=%s", corrupt.Path)
	}

	// 损坏文件不得被覆盖：内容留给人工恢复。
	raw, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatalf("read: %v", readErr)
	}
	if string(raw) != `{"B7": 41` {
		t.Fatalf("corrupt file rewritten: %s", raw)
	}
}

func TestBatchStore_LastSerial_MissingFile(t *testing.T) {
	t.Parallel()

	store := NewBatchStore(filepath.Join(t.TempDir(), "absent.json"))
	got, err := store.LastSerial(context.Background(), "B7")
	if err != nil {
		t.Fatalf("LastSerial: %v", err)
	}
	if got != 0 {
		t.Fatalf("serial=%d", got)
	}
}
