package variability

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStoreLoadsEachKeyOnce(t *testing.T) {
	var calls atomic.Int64
	store := NewStore(LoaderFunc(func(ctx context.Context, key string) (*Table, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return NewTable(key, []float64{0, 1}, []string{"u"}, [][]float64{{0, 1}}, false)
	}))

	var wg sync.WaitGroup
	tables := make([]*Table, 50)
	for i := range tables {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tbl, err := store.Get(context.Background(), "rrly/1.txt")
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			tables[i] = tbl
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 || store.Loads() != 1 {
		t.Errorf("loader ran %d times (store counted %d), want 1", calls.Load(), store.Loads())
	}
	for i, tbl := range tables {
		if tbl != tables[0] {
			t.Fatalf("goroutine %d got a different table", i)
		}
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestStoreNotFoundIsNotCached(t *testing.T) {
	store := NewStore(LoaderFunc(func(ctx context.Context, key string) (*Table, error) {
		return nil, fmt.Errorf("open %s: %w", key, fs.ErrNotExist)
	}))

	for i := 0; i < 2; i++ {
		_, err := store.Get(context.Background(), "missing.txt")
		var nf *LightCurveNotFoundError
		if !errors.As(err, &nf) || nf.Key != "missing.txt" {
			t.Fatalf("err = %v, want LightCurveNotFoundError", err)
		}
	}
	if store.Loads() != 2 {
		t.Errorf("Loads = %d, want 2 (failures are retried)", store.Loads())
	}
}

func TestStoreOtherLoadErrorsAreWrapped(t *testing.T) {
	boom := errors.New("disk on fire")
	store := NewStore(LoaderFunc(func(context.Context, string) (*Table, error) { return nil, boom }))
	_, err := store.Get(context.Background(), "x")
	var nf *LightCurveNotFoundError
	if errors.As(err, &nf) || !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped load error", err)
	}
}

func TestStoreLoadSurvivesCancelledCaller(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	store := NewStore(LoaderFunc(func(ctx context.Context, key string) (*Table, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewTable(key, []float64{0, 1}, []string{"u"}, [][]float64{{0, 1}}, false)
	}))

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := store.Get(ctxA, "k")
		errA <- err
	}()
	<-started

	type result struct {
		tbl *Table
		err error
	}
	resB := make(chan result, 1)
	go func() {
		tbl, err := store.Get(context.Background(), "k")
		resB <- result{tbl, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller: err = %v, want context.Canceled", err)
	}
	close(release)

	res := <-resB
	if res.err != nil || res.tbl == nil {
		t.Fatalf("live caller: table=%v err=%v", res.tbl, res.err)
	}
	if store.Loads() != 1 || store.Len() != 1 {
		t.Errorf("Loads = %d, Len = %d; want 1, 1", store.Loads(), store.Len())
	}
}

func TestStorePreload(t *testing.T) {
	store := NewStore(LoaderFunc(func(context.Context, string) (*Table, error) {
		return nil, errors.New("loader should not run")
	}))
	tbl, _ := NewTable("k", []float64{0}, []string{"u"}, [][]float64{{1}}, false)
	if !store.Preload(tbl) {
		t.Fatal("first Preload = false")
	}
	if store.Preload(tbl) {
		t.Error("second Preload = true")
	}
	got, err := store.Get(context.Background(), "k")
	if err != nil || got != tbl {
		t.Errorf("Get = %v, %v", got, err)
	}
}

func TestDirLoader(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "rrly"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "rrly", "a.txt"), []byte("0 1\n1 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	l := DirLoader{Root: root}

	tbl, err := l.Load(context.Background(), "rrly/a.txt")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tbl.Times) != 2 {
		t.Errorf("Times = %v", tbl.Times)
	}

	// keys cannot climb out of the root
	if _, err := l.Load(context.Background(), "../../etc/passwd"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("escaping key: err = %v, want not-exist", err)
	}
}
