package game

import "sync"

// parallelThreshold is the minimum live runner count to tick in parallel.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 8

// workChunk represents a range of runners for a worker to tick.
type workChunk struct {
	start, end int
}

// Pool ticks runners on persistent worker goroutines. Runners share no
// mutable state, so the result is identical to ticking them in order.
type Pool struct {
	numWorkers int
	runners    []*Runner

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

// NewPool creates a pool with the given worker count. One worker or fewer
// ticks inline.
func NewPool(workers int) *Pool {
	return &Pool{numWorkers: max(1, workers)}
}

// Tick advances every runner once and returns how many are still alive.
func (p *Pool) Tick(runners []*Runner) int {
	n := len(runners)
	if p.numWorkers <= 1 || n < parallelThreshold {
		tickChunk(runners)
	} else {
		p.tickParallel(runners)
	}

	alive := 0
	for _, r := range runners {
		if r.Alive() {
			alive++
		}
	}
	return alive
}

func tickChunk(runners []*Runner) {
	for _, r := range runners {
		r.Tick()
	}
}

// tickParallel dispatches chunks to the worker pool and waits for them.
func (p *Pool) tickParallel(runners []*Runner) {
	if !p.running {
		p.startWorkers()
	}
	p.runners = runners

	n := len(runners)
	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end}
		chunksDispatched++
	}

	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
	p.runners = nil
}

// startWorkers launches persistent worker goroutines.
func (p *Pool) startWorkers() {
	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			tickChunk(p.runners[chunk.start:chunk.end])
			p.doneChan <- struct{}{}
		}
	}
}

// Close signals all workers to exit and waits for them.
func (p *Pool) Close() {
	if p == nil || !p.running {
		return
	}
	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}
