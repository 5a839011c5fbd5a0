package sqlite

import (
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open("sqlite3:" + filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestClaimIsAtomic(t *testing.T) {
	repo := NewClaimRepository(openTestDB(t))

	ok, err := repo.Claim("job-1", "owner-a")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("first claim refused")
	}

	ok, err = repo.Claim("job-1", "owner-b")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("duplicate claim succeeded")
	}

	if err := repo.Release("job-1"); err != nil {
		t.Fatal(err)
	}
	ok, err = repo.Claim("job-1", "owner-b")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("claim refused after release")
	}
}

func TestClaimUnderConcurrency(t *testing.T) {
	repo := NewClaimRepository(openTestDB(t))

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Claim("job-1", "worker")
			if err != nil {
				t.Error(err)
				return
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	won := 0
	for ok := range results {
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Errorf("%d workers won the claim, want exactly 1", won)
	}
}

func TestListStale(t *testing.T) {
	repo := NewClaimRepository(openTestDB(t))

	if _, err := repo.Claim("job-1", "owner-a"); err != nil {
		t.Fatal(err)
	}

	stale, err := repo.ListStale(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 0 {
		t.Errorf("got %d stale claims, want 0 for a fresh claim", len(stale))
	}

	stale, err = repo.ListStale(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 {
		t.Fatalf("got %d stale claims, want 1", len(stale))
	}
	if stale[0].JobID != "job-1" || stale[0].Owner != "owner-a" {
		t.Errorf("unexpected claim: %+v", stale[0])
	}
}
