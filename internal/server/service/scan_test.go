package service

import (
	"context"
	"errors"
	"testing"

	"secureshare/internal/server/database"
	"secureshare/internal/server/notify"
)

func TestScanFile(t *testing.T) {
	ctx := context.Background()

	t.Run("clean scan completes without quarantine", func(t *testing.T) {
		repo := newFakeRepo()
		repo.addFile(readyFile("f1", "alice"))
		notifier := &fakeNotifier{}
		svc := NewScanService(repo, &fakeClassifier{verdict: cleanVerdict()}, notifier, DefaultPolicy())

		report, err := svc.ScanFile(ctx, "alice", "f1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.IsMalware {
			t.Error("expected clean report")
		}
		if report.Quarantined {
			t.Error("clean file must not be quarantined")
		}
		if report.ThreatLevel != database.ThreatSafe {
			t.Errorf("expected SAFE, got %s", report.ThreatLevel)
		}
		if repo.files["f1"].Status != database.FileReady {
			t.Errorf("file should stay READY, got %s", repo.files["f1"].Status)
		}
		if repo.scans[report.ScanID].Status != database.ScanCompleted {
			t.Errorf("expected COMPLETED scan row, got %s", repo.scans[report.ScanID].Status)
		}
		if len(notifier.types) != 1 || notifier.types[0] != notify.TypeScanCompleted {
			t.Errorf("expected one SCAN_COMPLETED notification, got %v", notifier.types)
		}
	})

	t.Run("high risk quarantines the file", func(t *testing.T) {
		repo := newFakeRepo()
		repo.addFile(readyFile("f1", "alice"))
		notifier := &fakeNotifier{}
		svc := NewScanService(repo, &fakeClassifier{verdict: malwareVerdict(0.65)}, notifier, DefaultPolicy())

		report, err := svc.ScanFile(ctx, "alice", "f1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !report.Quarantined {
			t.Error("expected quarantine")
		}
		if repo.files["f1"].Status != database.FileQuarantined {
			t.Errorf("expected QUARANTINED, got %s", repo.files["f1"].Status)
		}
		if len(repo.quarantines) != 1 {
			t.Fatalf("expected 1 quarantine row, got %d", len(repo.quarantines))
		}
		if repo.quarantines[0].ScanResultID == nil || *repo.quarantines[0].ScanResultID != report.ScanID {
			t.Error("quarantine row should reference the scan")
		}
		if len(notifier.types) != 1 || notifier.types[0] != notify.TypeThreatDetected {
			t.Errorf("expected one THREAT_DETECTED notification, got %v", notifier.types)
		}
	})

	t.Run("medium risk alerts without quarantining", func(t *testing.T) {
		repo := newFakeRepo()
		repo.addFile(readyFile("f1", "alice"))
		notifier := &fakeNotifier{}
		svc := NewScanService(repo, &fakeClassifier{verdict: malwareVerdict(0.55)}, notifier, DefaultPolicy())

		report, err := svc.ScanFile(ctx, "alice", "f1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Quarantined {
			t.Error("medium risk must not quarantine")
		}
		if repo.files["f1"].Status != database.FileReady {
			t.Errorf("file should stay READY, got %s", repo.files["f1"].Status)
		}
		if len(notifier.types) != 1 || notifier.types[0] != notify.TypeThreatDetected {
			t.Errorf("expected one THREAT_DETECTED notification, got %v", notifier.types)
		}
	})

	t.Run("classifier failure leaves a FAILED scan row", func(t *testing.T) {
		repo := newFakeRepo()
		repo.addFile(readyFile("f1", "alice"))
		svc := NewScanService(repo, &fakeClassifier{err: errors.New("timeout")}, &fakeNotifier{}, DefaultPolicy())

		_, err := svc.ScanFile(ctx, "alice", "f1")
		if !errors.Is(err, ErrScanUnavailable) {
			t.Fatalf("expected ErrScanUnavailable, got %v", err)
		}
		if len(repo.scans) != 1 {
			t.Fatalf("expected 1 scan row, got %d", len(repo.scans))
		}
		for _, s := range repo.scans {
			if s.Status != database.ScanFailed {
				t.Errorf("expected FAILED, got %s", s.Status)
			}
		}
		if len(repo.quarantines) != 0 {
			t.Error("failed scan must not quarantine")
		}
		if repo.files["f1"].Status != database.FileReady {
			t.Errorf("file should stay READY, got %s", repo.files["f1"].Status)
		}
	})

	t.Run("rejects files the actor does not own", func(t *testing.T) {
		repo := newFakeRepo()
		repo.addFile(readyFile("f1", "alice"))
		svc := NewScanService(repo, &fakeClassifier{verdict: cleanVerdict()}, &fakeNotifier{}, DefaultPolicy())

		if _, err := svc.ScanFile(ctx, "bob", "f1"); !errors.Is(err, ErrFileNotFound) {
			t.Fatalf("expected ErrFileNotFound, got %v", err)
		}
	})

	t.Run("rejects deleted files", func(t *testing.T) {
		repo := newFakeRepo()
		f := readyFile("f1", "alice")
		f.Status = database.FileDeleted
		repo.addFile(f)
		svc := NewScanService(repo, &fakeClassifier{verdict: cleanVerdict()}, &fakeNotifier{}, DefaultPolicy())

		if _, err := svc.ScanFile(ctx, "alice", "f1"); !errors.Is(err, ErrFileNotFound) {
			t.Fatalf("expected ErrFileNotFound, got %v", err)
		}
	})

	t.Run("already quarantined file stays quarantined without a second row", func(t *testing.T) {
		repo := newFakeRepo()
		f := readyFile("f1", "alice")
		f.Status = database.FileQuarantined
		repo.addFile(f)
		svc := NewScanService(repo, &fakeClassifier{verdict: malwareVerdict(0.95)}, &fakeNotifier{}, DefaultPolicy())

		report, err := svc.ScanFile(ctx, "alice", "f1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.Quarantined {
			t.Error("repeat quarantine should not report a new isolation")
		}
		if len(repo.quarantines) != 0 {
			t.Errorf("expected no new quarantine rows, got %d", len(repo.quarantines))
		}
	})
}

func TestDeleteFile(t *testing.T) {
	ctx := context.Background()

	t.Run("soft deletes and removes the object", func(t *testing.T) {
		repo := newFakeRepo()
		f := readyFile("f1", "alice")
		repo.addFile(f)
		store := newFakeStore()
		store.objects[f.ObjectName] = []byte("bytes")
		svc := NewFileService(repo, store)

		if err := svc.DeleteFile(ctx, "alice", "f1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if repo.files["f1"].Status != database.FileDeleted {
			t.Errorf("expected DELETED, got %s", repo.files["f1"].Status)
		}
		if _, ok := store.objects[f.ObjectName]; ok {
			t.Error("object should be removed from storage")
		}
	})

	t.Run("delete is idempotent only in effect, repeat is not found", func(t *testing.T) {
		repo := newFakeRepo()
		repo.addFile(readyFile("f1", "alice"))
		svc := NewFileService(repo, newFakeStore())

		if err := svc.DeleteFile(ctx, "alice", "f1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := svc.DeleteFile(ctx, "alice", "f1"); !errors.Is(err, ErrFileNotFound) {
			t.Fatalf("expected ErrFileNotFound on second delete, got %v", err)
		}
	})

	t.Run("quarantined files can be deleted", func(t *testing.T) {
		repo := newFakeRepo()
		f := readyFile("f1", "alice")
		f.Status = database.FileQuarantined
		repo.addFile(f)
		svc := NewFileService(repo, newFakeStore())

		if err := svc.DeleteFile(ctx, "alice", "f1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if repo.files["f1"].Status != database.FileDeleted {
			t.Errorf("expected DELETED, got %s", repo.files["f1"].Status)
		}
	})

	t.Run("others cannot delete", func(t *testing.T) {
		repo := newFakeRepo()
		repo.addFile(readyFile("f1", "alice"))
		svc := NewFileService(repo, newFakeStore())

		if err := svc.DeleteFile(ctx, "bob", "f1"); !errors.Is(err, ErrFileNotFound) {
			t.Fatalf("expected ErrFileNotFound, got %v", err)
		}
	})
}
