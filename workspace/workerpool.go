package workspace

import (
	"runtime"
	"sync"
)

// workerPool bounds how many component updates run at once. A task takes a
// worker id from the channel before it starts and puts it back when done.
type workerPool struct {
	workerChan chan int
}

func newWorkerPool(numWorkers int) *workerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	p := &workerPool{workerChan: make(chan int, numWorkers)}
	for i := 0; i < numWorkers; i++ {
		p.workerChan <- i
	}

	return p
}

func (p *workerPool) size() int {
	return cap(p.workerChan)
}

func (p *workerPool) submit(task func(workerID int), wg *sync.WaitGroup) {
	wg.Add(1)

	go func() {
		defer wg.Done()

		id := <-p.workerChan
		defer func() { p.workerChan <- id }()

		task(id)
	}()
}
