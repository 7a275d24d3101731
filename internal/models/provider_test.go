package models_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"subalign/internal/models"
	"subalign/internal/subtitles"
)

type fakeModel struct{ size string }

func (m *fakeModel) Size() string { return m.size }

func (m *fakeModel) Align(context.Context, string, string, string) (*subtitles.Result, error) {
	return &subtitles.Result{}, nil
}

// slowLoader blocks each load until release is closed.
type slowLoader struct {
	calls   atomic.Int32
	release chan struct{}
}

func (l *slowLoader) Load(ctx context.Context, size string) (models.Model, error) {
	l.calls.Add(1)
	select {
	case <-l.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &fakeModel{size: size}, nil
}

func TestConcurrentFirstCallsLoadOnce(t *testing.T) {
	loader := &slowLoader{release: make(chan struct{})}
	provider := models.NewProvider(loader)

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan models.Model, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := provider.Get(context.Background(), "base")
			if err != nil {
				t.Errorf("Get failed: %v", err)
				return
			}
			results <- m
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(loader.release)
	wg.Wait()
	close(results)

	var first models.Model
	for m := range results {
		if first == nil {
			first = m
		}
		if m != first {
			t.Fatal("expected every caller to receive the same instance")
		}
	}
	if got := provider.Loads(); got != 1 {
		t.Fatalf("expected exactly one load, got %d", got)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("loader called %d times", loader.calls.Load())
	}
	if size, ok := provider.Loaded(); !ok || size != "base" {
		t.Fatalf("Loaded() = %q, %v", size, ok)
	}
}

func TestDifferentSizeReloadsAndEvicts(t *testing.T) {
	var events []models.LoadEvent
	provider := models.NewProvider(models.LoaderFunc(func(_ context.Context, size string) (models.Model, error) {
		return &fakeModel{size: size}, nil
	}), models.WithLoadObserver(func(ev models.LoadEvent) { events = append(events, ev) }))

	ctx := context.Background()
	base, err := provider.Get(ctx, "base")
	if err != nil {
		t.Fatalf("Get(base) failed: %v", err)
	}
	if again, _ := provider.Get(ctx, " BASE "); again != base {
		t.Fatal("expected cached instance for the same size")
	}
	small, err := provider.Get(ctx, "small")
	if err != nil {
		t.Fatalf("Get(small) failed: %v", err)
	}
	if small.Size() != "small" || base.Size() != "base" {
		t.Fatal("evicted model reference should stay usable by its holder")
	}
	if size, _ := provider.Loaded(); size != "small" {
		t.Fatalf("expected last loaded size to win, got %q", size)
	}
	if provider.Loads() != 2 {
		t.Fatalf("expected 2 loads, got %d", provider.Loads())
	}
	if len(events) != 2 || events[1].Evicted != "base" {
		t.Fatalf("unexpected load events: %#v", events)
	}
}

type residentModel struct {
	fakeModel
	dead   atomic.Bool
	closed atomic.Bool
}

func (m *residentModel) Alive() bool { return !m.dead.Load() && !m.closed.Load() }

func (m *residentModel) Close() error {
	m.closed.Store(true)
	return nil
}

func residentLoader() models.LoaderFunc {
	return func(_ context.Context, size string) (models.Model, error) {
		return &residentModel{fakeModel: fakeModel{size: size}}, nil
	}
}

func TestEvictionClosesResidentModel(t *testing.T) {
	provider := models.NewProvider(residentLoader())
	ctx := context.Background()

	base, err := provider.Get(ctx, "base")
	if err != nil {
		t.Fatalf("Get(base) failed: %v", err)
	}
	if _, err := provider.Get(ctx, "small"); err != nil {
		t.Fatalf("Get(small) failed: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for !base.(*residentModel).closed.Load() {
		if time.Now().After(deadline) {
			t.Fatal("evicted model was never closed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	small, _ := provider.Get(ctx, "small")
	provider.Close()
	if !small.(*residentModel).closed.Load() {
		t.Fatal("Close should release the resident model")
	}
	if _, ok := provider.Loaded(); ok {
		t.Fatal("slot should be empty after Close")
	}
}

func TestExitedResidentModelIsReloaded(t *testing.T) {
	provider := models.NewProvider(residentLoader())
	ctx := context.Background()

	first, err := provider.Get(ctx, "base")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if again, _ := provider.Get(ctx, "base"); again != first {
		t.Fatal("live model should be reused")
	}
	first.(*residentModel).dead.Store(true)

	second, err := provider.Get(ctx, "base")
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if second == first {
		t.Fatal("expected a fresh instance after the process exited")
	}
	if provider.Loads() != 2 {
		t.Fatalf("expected 2 loads, got %d", provider.Loads())
	}
}

func TestFailedLoadLeavesSlotAndRetries(t *testing.T) {
	var attempts int
	provider := models.NewProvider(models.LoaderFunc(func(_ context.Context, size string) (models.Model, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("download interrupted")
		}
		return &fakeModel{size: size}, nil
	}))

	if _, err := provider.Get(context.Background(), "tiny"); err == nil {
		t.Fatal("expected first load to fail")
	}
	if _, ok := provider.Loaded(); ok {
		t.Fatal("failed load should leave the slot empty")
	}
	if _, err := provider.Get(context.Background(), "tiny"); err != nil {
		t.Fatalf("second load should succeed: %v", err)
	}
	if provider.Loads() != 2 {
		t.Fatalf("expected 2 load attempts, got %d", provider.Loads())
	}
}

func TestGetHonoursContextWhileWaiting(t *testing.T) {
	loader := &slowLoader{release: make(chan struct{})}
	provider := models.NewProvider(loader)
	defer close(loader.release)

	go provider.Get(context.Background(), "large") //nolint:errcheck
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := provider.Get(ctx, "large"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while waiting, got %v", err)
	}
}

func TestGetRejectsEmptySize(t *testing.T) {
	provider := models.NewProvider(models.LoaderFunc(func(context.Context, string) (models.Model, error) {
		t.Fatal("loader should not run")
		return nil, nil
	}))
	if _, err := provider.Get(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty size")
	}
}

func TestCatalog(t *testing.T) {
	names := models.Names()
	want := []string{"tiny", "base", "small", "medium", "large"}
	if len(names) != len(want) {
		t.Fatalf("unexpected names %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("unexpected names %v", names)
		}
	}
	catalog := models.Catalog()
	catalog[0].Name = "mutated"
	if models.Catalog()[0].Name != "tiny" {
		t.Fatal("Catalog should return a copy")
	}
}
