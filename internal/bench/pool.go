// Package bench adapts a worker-pool harness to drive many independent
// JIT instances in parallel for throughput measurement. Each instance
// is internally single-threaded, as the core requires; the pool
// parallelizes across instances, not within one.
package bench

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/washdc/sh4jit/pkg/il"
	"github.com/washdc/sh4jit/pkg/jit"
)

// Pool manages parallel benchmark workers, each owning its own
// jit.State.
type Pool struct {
	NumWorkers int

	dispatched atomic.Int64
	faulted    atomic.Int64
	completed  atomic.Int64
}

// NewPool creates a pool with the given number of workers, defaulting
// to the host's CPU count.
func NewPool(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &Pool{NumWorkers: numWorkers}
}

// Task is one unit of work: run steps dispatch iterations starting from
// startPC through a freshly constructed JIT instance.
type Task struct {
	StartPC uint32
	Steps   int
}

// Stats returns running totals.
func (p *Pool) Stats() (dispatched, faulted int64) {
	return p.dispatched.Load(), p.faulted.Load()
}

// Run distributes tasks across workers and reports progress every
// reportEvery interval, in the shape of the teacher's ticker-driven
// progress reporter.
func (p *Pool) Run(tasks []Task, reportEvery time.Duration, verbose bool) {
	total := int64(len(tasks))
	ch := make(chan Task, len(tasks))
	for _, t := range tasks {
		ch <- t
	}
	close(ch)

	done := make(chan struct{})
	start := time.Now()
	go func() {
		ticker := time.NewTicker(reportEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				comp := p.completed.Load()
				elapsed := time.Since(start)
				pct := float64(comp) / float64(total) * 100
				fmt.Printf("  [%s] %d/%d tasks (%.1f%%) | %d dispatched | %d faulted\n",
					elapsed.Round(time.Second), comp, total, pct, p.dispatched.Load(), p.faulted.Load())
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < p.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range ch {
				p.runTask(task, verbose)
				p.completed.Add(1)
			}
		}()
	}
	wg.Wait()
	close(done)

	elapsed := time.Since(start)
	fmt.Printf("  [%s] %d/%d tasks (100.0%%) | %d dispatched | %d faulted | DONE\n",
		elapsed.Round(time.Second), total, total, p.dispatched.Load(), p.faulted.Load())
}

func (p *Pool) runTask(task Task, verbose bool) {
	s, err := jit.New(jit.Config{
		OnCompile: func(bd *il.Builder, pc uint32) { bd.Jump(pc + 4) },
	})
	if err != nil {
		p.faulted.Add(1)
		return
	}
	defer s.Close()

	pc := task.StartPC
	for i := 0; i < task.Steps; i++ {
		next, err := s.Entry(pc)
		if err != nil {
			p.faulted.Add(1)
			if verbose {
				fmt.Printf("  task pc=%#x step %d: %v\n", task.StartPC, i, err)
			}
			return
		}
		pc = next
		p.dispatched.Add(1)
	}
}
