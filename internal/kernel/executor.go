package kernel

import "sync"

// Task is a unit of cooperative work. It runs to completion once picked up
// by Executor.Run; there is no preemption and no waker machinery, just a
// FIFO queue.
type Task func()

// Executor runs queued tasks to completion, one at a time, in the order
// they were spawned. It exists so heap-exercising workloads (allocate here,
// free there, across many logical units of work) have somewhere to run
// without pulling in a real preemptive scheduler, which is out of scope for
// a heap subsystem.
type Executor struct {
	mu    sync.Mutex
	tasks []Task
}

// NewExecutor returns an empty executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Spawn enqueues a task to run on the next Run call.
func (e *Executor) Spawn(t Task) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tasks = append(e.tasks, t)
}

// Run drains the queue, running every task (including ones spawned by tasks
// that ran earlier in the same call) until none remain.
func (e *Executor) Run() {
	for {
		t, ok := e.pop()
		if !ok {
			return
		}

		t()
	}
}

func (e *Executor) pop() (Task, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.tasks) == 0 {
		return nil, false
	}

	t := e.tasks[0]
	e.tasks = e.tasks[1:]

	return t, true
}
