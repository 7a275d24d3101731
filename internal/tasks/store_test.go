package tasks_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"subalign/internal/tasks"
)

func TestCreateAndGet(t *testing.T) {
	store := tasks.NewStore()
	if err := store.Create("a", tasks.Processing("b1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	got, ok := store.Get("a")
	if !ok {
		t.Fatal("expected task to exist")
	}
	if got.ID != "a" || got.Status != tasks.StatusProcessing || got.Progress != 0 || got.BatchID != "b1" {
		t.Fatalf("unexpected task: %#v", got)
	}
	if got.CreatedAt.IsZero() || !got.CreatedAt.Equal(got.UpdatedAt) {
		t.Fatalf("expected timestamps to be set, got %#v", got)
	}
	if _, ok := store.Get("missing"); ok {
		t.Fatal("expected unknown id to be missing")
	}
}

func TestCreateRejectsReusedID(t *testing.T) {
	store := tasks.NewStore()
	if err := store.Create("a", tasks.Processing("")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Create("a", tasks.Processing("")); !errors.Is(err, tasks.ErrTaskExists) {
		t.Fatalf("expected ErrTaskExists, got %v", err)
	}
}

func TestUpdateLifecycle(t *testing.T) {
	store := tasks.NewStore()
	task := tasks.Processing("")
	if err := store.Create("a", task); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for _, p := range []int{tasks.ProgressModel, tasks.ProgressAlignment, tasks.ProgressOutput} {
		if err := store.Update("a", task.WithProgress(p)); err != nil {
			t.Fatalf("Update(%d) failed: %v", p, err)
		}
	}
	if err := store.Update("a", task.WithProgress(tasks.ProgressModel)); !errors.Is(err, tasks.ErrInvalidTask) {
		t.Fatalf("expected backwards progress to be rejected, got %v", err)
	}
	if err := store.Update("a", tasks.Completed("", "talk.srt")); err != nil {
		t.Fatalf("Update to completed failed: %v", err)
	}
	got, _ := store.Get("a")
	if got.Status != tasks.StatusCompleted || got.Progress != 100 || got.OutputFile != "talk.srt" || got.Error != "" {
		t.Fatalf("unexpected completed task: %#v", got)
	}
	if err := store.Update("a", tasks.Failed("", tasks.KindOutput, "late")); !errors.Is(err, tasks.ErrTaskFinished) {
		t.Fatalf("expected ErrTaskFinished, got %v", err)
	}
}

func TestUpdateUnknownTask(t *testing.T) {
	store := tasks.NewStore()
	if err := store.Update("nope", tasks.Processing("")); !errors.Is(err, tasks.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestValidateTerminalFields(t *testing.T) {
	cases := []struct {
		name  string
		task  tasks.Task
		valid bool
	}{
		{"processing", tasks.Processing(""), true},
		{"processing with output", tasks.Task{Status: tasks.StatusProcessing, OutputFile: "x"}, false},
		{"completed", tasks.Completed("b", "b/x.srt"), true},
		{"completed without output", tasks.Task{Status: tasks.StatusCompleted}, false},
		{"failed", tasks.Failed("", tasks.KindModel, "boom"), true},
		{"failed with output", tasks.Task{Status: tasks.StatusError, Error: "x", OutputFile: "y"}, false},
		{"unknown status", tasks.Task{Status: "queued"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.task.Validate()
			if tc.valid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.valid && !errors.Is(err, tasks.ErrInvalidTask) {
				t.Fatalf("expected ErrInvalidTask, got %v", err)
			}
		})
	}
}

func TestFailedDefaultsMessage(t *testing.T) {
	task := tasks.Failed("", tasks.KindAlignment, "  ")
	if task.Error == "" {
		t.Fatal("expected a default error message")
	}
}

func TestListAndCounts(t *testing.T) {
	store := tasks.NewStore()
	for i := 0; i < 3; i++ {
		if err := store.Create(fmt.Sprintf("t%d", i), tasks.Processing("")); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if err := store.Update("t1", tasks.Completed("", "a.srt")); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := store.Update("t2", tasks.Failed("", tasks.KindModel, "boom")); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	list := store.List()
	if len(list) != 3 || list[0].ID != "t0" || list[2].ID != "t2" {
		t.Fatalf("unexpected list order: %#v", list)
	}
	counts := store.Counts()
	if counts != (tasks.Counts{Total: 3, Processing: 1, Completed: 1, Error: 1}) {
		t.Fatalf("unexpected counts: %#v", counts)
	}
}

func TestConcurrentWritersOnDistinctTasks(t *testing.T) {
	store := tasks.NewStore()
	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("task-%d", i)
		if err := store.Create(id, tasks.Processing("")); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			task := tasks.Processing("")
			for _, p := range []int{10, 30, 80} {
				if err := store.Update(id, task.WithProgress(p)); err != nil {
					t.Errorf("Update failed: %v", err)
					return
				}
				store.Get(id)
			}
			if err := store.Update(id, tasks.Completed("", id+".srt")); err != nil {
				t.Errorf("complete failed: %v", err)
			}
		}()
	}
	wg.Wait()
	if counts := store.Counts(); counts.Completed != n {
		t.Fatalf("expected %d completed, got %#v", n, counts)
	}
}
