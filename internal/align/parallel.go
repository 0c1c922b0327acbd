package align

import (
	"runtime"
	"sync"

	"github.com/mirtk/polymir/internal/library"
	"github.com/mirtk/polymir/internal/sam"
)

// WorkItem holds one unique read and its aligner records, ready to score.
type WorkItem struct {
	Seq     int
	Read    *library.UniqueRead
	Records []*sam.Record
}

// WorkResult holds the resolved outcome for a single unique read.
type WorkResult struct {
	Seq    int
	Result *ReadResult
	Err    error
}

// ParallelAnnotate annotates work items using a pool of workers.
// Per-read processing is independent and side-effect-free, so cross-read
// ordering is irrelevant; results are sent in arrival order. Use
// OrderedCollect to consume them in sequence-number order, which keeps
// tie-break detection and output deterministic.
// If workers is 0, runtime.NumCPU() is used.
func (a *Annotator) ParallelAnnotate(items <-chan WorkItem, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for item := range items {
				result, err := a.AnnotateRead(item.Read, item.Records)
				results <- WorkResult{
					Seq:    item.Seq,
					Result: result,
					Err:    err,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// It buffers out-of-order results in a pending map and emits them
// as soon as the next expected sequence number is available.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}
