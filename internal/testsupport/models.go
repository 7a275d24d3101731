package testsupport

import (
	"context"
	"sync/atomic"
	"time"

	"subalign/internal/models"
	"subalign/internal/subtitles"
)

// SampleResult returns a two-segment alignment with word timings.
func SampleResult() *subtitles.Result {
	return &subtitles.Result{
		Language: "en",
		Segments: []subtitles.Segment{
			{
				Start: 0, End: 1.2, Text: "Hello world",
				Words: []subtitles.Word{
					{Word: "Hello", Start: 0, End: 0.5},
					{Word: " world", Start: 0.5, End: 1.2},
				},
			},
			{
				Start: 1.5, End: 2.4, Text: "Second line",
				Words: []subtitles.Word{
					{Word: "Second", Start: 1.5, End: 2.0},
					{Word: " line", Start: 2.0, End: 2.4},
				},
			},
		},
	}
}

// FakeLoader stands in for the Python helper. It counts loads and can be
// slowed down to widen race windows.
type FakeLoader struct {
	Delay  time.Duration
	Err    error
	Result *subtitles.Result
	// AlignErr makes every Align call fail.
	AlignErr error
	loads    atomic.Int64
}

// Load implements models.Loader.
func (l *FakeLoader) Load(ctx context.Context, size string) (models.Model, error) {
	l.loads.Add(1)
	if l.Delay > 0 {
		select {
		case <-time.After(l.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.Err != nil {
		return nil, l.Err
	}
	return &FakeModel{size: size, loader: l}, nil
}

// Loads reports how many times Load ran.
func (l *FakeLoader) Loads() int64 {
	return l.loads.Load()
}

// FakeModel returns the loader's canned result.
type FakeModel struct {
	size   string
	loader *FakeLoader
}

// Size implements models.Model.
func (m *FakeModel) Size() string { return m.size }

// Align implements models.Model.
func (m *FakeModel) Align(ctx context.Context, _, _, language string) (*subtitles.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.loader.AlignErr != nil {
		return nil, m.loader.AlignErr
	}
	result := m.loader.Result
	if result == nil {
		result = SampleResult()
	}
	clone := *result
	if language != "" {
		clone.Language = language
	}
	return &clone, nil
}
