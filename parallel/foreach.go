// Package parallel contains bounded goroutine loops and an order independent digest.
package parallel

import "sync"

// ForEach runs body for every i in [0, length) on at most limit goroutines.
// It stops handing out new indices after the first error and returns it.
func ForEach(length, limit int, body func(i int) error) error {
	if limit <= 0 {
		limit = 1
	}
	if length <= 0 {
		return nil
	}

	var (
		sem   = make(chan struct{}, limit)
		wg    sync.WaitGroup
		once  sync.Once
		first error
		done  = make(chan struct{})
	)

	fail := func(err error) {
		once.Do(func() {
			first = err
			close(done)
		})
	}

loop:
	for i := 0; i < length; i++ {
		select {
		case sem <- struct{}{}:
		case <-done:
			break loop
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := body(i); err != nil {
				fail(err)
			}
		}(i)
	}

	wg.Wait()
	return first
}
