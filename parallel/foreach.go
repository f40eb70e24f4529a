// Package parallel contains bounded parallel loops over index ranges.
package parallel

import "sync"

// ForEach executes a for loop with a limited number of concurrent goroutines.
// Each goroutine processes one integer, from 0 to length.
func ForEach(length, limit int, body func(i int)) {
	_ = ForEachErr(length, limit, func(i int) error {
		body(i)
		return nil
	})
}

// ForEachErr is ForEach for bodies that can fail. All iterations run; the
// error of the lowest failing index is returned, so the result does not
// depend on scheduling.
func ForEachErr(length, limit int, body func(i int) error) error {
	if limit <= 0 {
		limit = 1
	}
	if length <= 0 {
		return nil
	}
	if limit == 1 {
		var first error
		for i := 0; i < length; i++ {
			if err := body(i); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	errs := make([]error, length)
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	wg.Add(length)

	for i := 0; i < length; i++ {
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			errs[i] = body(i)
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
