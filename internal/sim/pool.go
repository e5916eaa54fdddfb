package sim

import "sync"

// pool is a fixed set of workers draining a task channel. One pool lives for
// the whole run; every tick submits one planning task per vehicle and waits
// on the barrier before committing.
type pool struct {
	tasks chan func()
	wg    sync.WaitGroup
}

func newPool(workers int) *pool {
	p := &pool{tasks: make(chan func())}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *pool) worker() {
	for task := range p.tasks {
		task()
		p.wg.Done()
	}
}

func (p *pool) submit(task func()) {
	p.wg.Add(1)
	p.tasks <- task
}

// wait blocks until every submitted task has finished.
func (p *pool) wait() {
	p.wg.Wait()
}

func (p *pool) close() {
	close(p.tasks)
}
