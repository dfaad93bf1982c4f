package surrealdb

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bobmcallan/tickzen/internal/interfaces"
)

func TestFileStore_SaveAndGet(t *testing.T) {
	db := testDB(t)
	store := NewFileStore(db, testLogger())
	ctx := context.Background()

	data := []byte("Ticker\nAAPL\nMSFT\n")
	if err := store.SaveFile(ctx, CategoryTickers, "batch/list.csv", data, "text/csv"); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}

	got, contentType, err := store.GetFile(ctx, CategoryTickers, "batch/list.csv")
	if err != nil {
		t.Fatalf("GetFile failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("data mismatch: got %q, want %q", got, data)
	}
	if contentType != "text/csv" {
		t.Errorf("content type mismatch: got %q, want %q", contentType, "text/csv")
	}
}

func TestFileStore_SaveUpload(t *testing.T) {
	db := testDB(t)
	store := NewFileStore(db, testLogger())
	ctx := context.Background()

	ref, err := store.SaveUpload(ctx, "/tmp/uploads/watchlist.csv", []byte("Symbol\nNVDA\n"))
	if err != nil {
		t.Fatalf("SaveUpload failed: %v", err)
	}
	if ref.Name != "watchlist.csv" {
		t.Errorf("Name = %q, want watchlist.csv", ref.Name)
	}
	if !strings.HasSuffix(ref.Key, "_watchlist.csv") {
		t.Errorf("Key = %q, want suffix _watchlist.csv", ref.Key)
	}

	has, err := store.HasFile(ctx, CategoryTickers, ref.Key)
	if err != nil {
		t.Fatalf("HasFile failed: %v", err)
	}
	if !has {
		t.Error("expected uploaded file to exist")
	}
}

func TestFileStore_DeleteAndMissing(t *testing.T) {
	db := testDB(t)
	store := NewFileStore(db, testLogger())
	ctx := context.Background()

	store.SaveFile(ctx, CategoryTickers, "old.csv", []byte("Ticker\nX\n"), "text/csv")

	if err := store.DeleteFile(ctx, CategoryTickers, "old.csv"); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
	if _, _, err := store.GetFile(ctx, CategoryTickers, "old.csv"); !errors.Is(err, interfaces.ErrFileNotFound) {
		t.Errorf("GetFile on deleted file = %v, want ErrFileNotFound", err)
	}

	has, err := store.HasFile(ctx, CategoryTickers, "never.csv")
	if err != nil {
		t.Fatalf("HasFile failed: %v", err)
	}
	if has {
		t.Error("expected HasFile=false for missing file")
	}
}

func TestFileStore_RejectsOversizedFile(t *testing.T) {
	db := testDB(t)
	store := NewFileStore(db, testLogger())

	big := make([]byte, maxEncodedFileBytes)
	if err := store.SaveFile(context.Background(), CategoryTickers, "big.csv", big, "text/csv"); err == nil {
		t.Error("expected size error")
	}
}
