package bench

import (
	"testing"
	"time"
)

func TestPoolRunDispatchesAllTasks(t *testing.T) {
	p := NewPool(2)
	tasks := make([]Task, 8)
	for i := range tasks {
		tasks[i] = Task{StartPC: uint32(i * 0x100), Steps: 4}
	}
	p.Run(tasks, time.Hour, false)

	dispatched, faulted := p.Stats()
	if faulted != 0 {
		t.Fatalf("expected no faults, got %d", faulted)
	}
	if dispatched != int64(len(tasks)*4) {
		t.Fatalf("expected %d dispatches, got %d", len(tasks)*4, dispatched)
	}
}

func TestNewPoolDefaultsWorkerCount(t *testing.T) {
	p := NewPool(0)
	if p.NumWorkers <= 0 {
		t.Fatalf("expected positive default worker count, got %d", p.NumWorkers)
	}
}
