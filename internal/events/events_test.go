package events

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/printfarm/gcodemux/internal/storage"
	"github.com/printfarm/gcodemux/internal/storage/memory"
)

func TestNewDirect_NilStore(t *testing.T) {
	if _, err := NewDirect(nil); err == nil {
		t.Fatal("NewDirect(nil) error = nil, want error")
	}
}

func TestDirect_PersistsTerminalEvents(t *testing.T) {
	store := memory.New()
	defer store.Close()

	publisher, err := NewDirect(store)
	if err != nil {
		t.Fatalf("NewDirect() error = %v", err)
	}

	job := &storage.Job{ID: "job-1", Kind: storage.KindNormalize, SourceA: "a", Records: 10}
	if err := publisher.Publish(context.Background(), New(TypeCompleted, job)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	got, err := store.GetJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if got.Records != 10 {
		t.Errorf("Records = %d, want 10", got.Records)
	}
}

func TestDirect_IgnoresStartedEvents(t *testing.T) {
	store := memory.New()
	defer store.Close()

	publisher, _ := NewDirect(store)
	job := &storage.Job{ID: "job-1", Kind: storage.KindMerge, SourceA: "a"}
	if err := publisher.Publish(context.Background(), New(TypeStarted, job)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	var notFound *storage.NotFoundError
	if _, err := store.GetJob(context.Background(), "job-1"); !errors.As(err, &notFound) {
		t.Errorf("GetJob() error = %v, want NotFoundError: started events must not persist", err)
	}
}

func TestLogger_ReportsEvents(t *testing.T) {
	var buf bytes.Buffer
	publisher := NewLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	job := &storage.Job{ID: "job-9", Kind: storage.KindLayers, SourceA: "a"}
	if err := publisher.Publish(context.Background(), New(TypeFailed, job)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "job.failed") || !strings.Contains(out, "job-9") {
		t.Errorf("log output %q missing event type or job id", out)
	}
}

func TestMulti_FansOut(t *testing.T) {
	store := memory.New()
	defer store.Close()
	direct, _ := NewDirect(store)

	var buf bytes.Buffer
	multi := Multi{NewLogger(slog.New(slog.NewTextHandler(&buf, nil))), direct}

	job := &storage.Job{ID: "job-1", Kind: storage.KindMerge, SourceA: "a", SourceB: "b"}
	if err := multi.Publish(context.Background(), New(TypeCompleted, job)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if !strings.Contains(buf.String(), "job-1") {
		t.Error("logging publisher never saw the event")
	}
	if _, err := store.GetJob(context.Background(), "job-1"); err != nil {
		t.Errorf("direct publisher never persisted the event: %v", err)
	}

	if err := multi.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
