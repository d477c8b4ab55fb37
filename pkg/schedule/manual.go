package schedule

import (
	"sync"
	"time"
)

// Manual is a Scheduler that never fires by itself. Tests call Fire to run
// every active task synchronously.
type Manual struct {
	mu     sync.Mutex
	nextID int
	tasks  map[int]manualTask
	// Scheduled counts every successful Every call, cancelled or not.
	Scheduled int
}

type manualTask struct {
	interval time.Duration
	run      func()
}

func NewManual() *Manual {
	return &Manual{tasks: make(map[int]manualTask)}
}

func (m *Manual) Every(interval time.Duration, task func()) (Handle, error) {
	if interval <= 0 {
		return nil, errInterval(interval)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.Scheduled++
	m.tasks[m.nextID] = manualTask{interval: interval, run: task}
	return &manualHandle{m: m, id: m.nextID}, nil
}

// Fire runs each active task once, in registration order.
func (m *Manual) Fire() {
	m.mu.Lock()
	runs := make([]func(), 0, len(m.tasks))
	for id := 1; id <= m.nextID; id++ {
		if t, ok := m.tasks[id]; ok {
			runs = append(runs, t.run)
		}
	}
	m.mu.Unlock()

	for _, run := range runs {
		run()
	}
}

// Active reports how many tasks are still scheduled.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Interval returns the interval of the most recently scheduled active task.
func (m *Manual) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := m.nextID; id > 0; id-- {
		if t, ok := m.tasks[id]; ok {
			return t.interval
		}
	}
	return 0
}

type manualHandle struct {
	m  *Manual
	id int
}

func (h *manualHandle) Cancel() {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	delete(h.m.tasks, h.id)
}
