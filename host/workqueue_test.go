package host

import (
	"sync/atomic"
	"testing"
)

func TestNewWorkQueueKinds(t *testing.T) {
	tests := []struct {
		kind     string
		wantName string
		wantNil  bool
	}{
		{"serial", "serial", false},
		{"concurrent", "concurrent", false},
		{"concurrent:4", "concurrent:4", false},
		{"", "concurrent", false},
		{"concurrent:0", "", true},
		{"fiber", "", true},
	}
	for _, tt := range tests {
		q := NewWorkQueue(tt.kind)
		if (q == nil) != tt.wantNil {
			t.Fatalf("NewWorkQueue(%q) nil = %v, want %v", tt.kind, q == nil, tt.wantNil)
		}
		if q == nil {
			continue
		}
		if q.Name() != tt.wantName {
			t.Fatalf("NewWorkQueue(%q).Name() = %q, want %q", tt.kind, q.Name(), tt.wantName)
		}
		q.Close()
	}
}

func TestQuiesceCoversSpawnedTasks(t *testing.T) {
	for _, kind := range []string{"serial", "concurrent:2"} {
		t.Run(kind, func(t *testing.T) {
			q := NewWorkQueue(kind)
			defer q.Close()

			var ran atomic.Int32
			q.AddTask(func() {
				ran.Add(1)
				// Fire-and-forget follow-up work, the shape Quiesce
				// exists to cover.
				q.AddTask(func() {
					ran.Add(1)
					q.AddTask(func() { ran.Add(1) })
				})
			})

			q.Quiesce()
			if got := ran.Load(); got != 3 {
				t.Fatalf("after Quiesce ran = %d tasks, want 3", got)
			}
		})
	}
}

func TestSerialQueueRunsEverything(t *testing.T) {
	q := NewWorkQueue("serial")
	defer q.Close()

	var sum atomic.Int64
	for i := 1; i <= 100; i++ {
		i := i
		q.AddTask(func() { sum.Add(int64(i)) })
	}
	q.Quiesce()
	if sum.Load() != 5050 {
		t.Fatalf("sum = %d, want 5050", sum.Load())
	}
}

func TestCloseDrains(t *testing.T) {
	q := NewWorkQueue("concurrent:2")
	var ran atomic.Int32
	for i := 0; i < 50; i++ {
		q.AddTask(func() { ran.Add(1) })
	}
	q.Close()
	if ran.Load() != 50 {
		t.Fatalf("Close() left %d tasks unrun", 50-ran.Load())
	}
}
