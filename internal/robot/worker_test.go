package robot

import (
	"sync"
	"testing"
)

func TestWorkerRunsJobsInOrder(t *testing.T) {
	w := NewWorker()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		i := i
		w.Schedule(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	w.Stop()

	if len(got) != 100 {
		t.Fatalf("ran %d jobs, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("job %d ran out of order: got %d", i, v)
		}
	}
}

func TestWorkerStopDrainsQueue(t *testing.T) {
	w := NewWorker()

	block := make(chan struct{})
	var ran int
	w.Schedule(func() { <-block })
	for i := 0; i < 10; i++ {
		w.Schedule(func() { ran++ })
	}
	close(block)
	w.Stop()

	if ran != 10 {
		t.Fatalf("ran %d queued jobs after stop, want 10", ran)
	}
}

func TestWorkerScheduleAfterStopIsDropped(t *testing.T) {
	w := NewWorker()
	w.Stop()

	ran := false
	w.Schedule(func() { ran = true })
	if ran {
		t.Fatal("job scheduled after stop must not run")
	}
}

func TestWorkerScheduleNeverBlocksConcurrently(t *testing.T) {
	w := NewWorker()

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				w.Schedule(func() {
					mu.Lock()
					total++
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()
	w.Stop()

	if total != 16*50 {
		t.Fatalf("ran %d jobs, want %d", total, 16*50)
	}
}
