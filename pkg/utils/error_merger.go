// Package utils holds small helpers shared by the commands and services.
package utils //nolint:revive // var-naming: utils is an acceptable package name for shared utilities

import (
	"context"
	"sync"
)

// MergeErrorChans merges multiple error channels into a single output channel.
// The output channel is closed once every input channel is closed.
func MergeErrorChans(channels ...<-chan error) <-chan error {
	out := make(chan error)
	var wg sync.WaitGroup

	for _, ch := range channels {
		wg.Add(1)
		go func(c <-chan error) {
			defer wg.Done()
			for err := range c {
				out <- err
			}
		}(ch)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

// WaitFirstError blocks until ctx is done or any channel yields a non-nil
// error. Nil values (a listener that stopped cleanly) are skipped. It returns
// nil when ctx ends first or when every channel closes without an error.
func WaitFirstError(ctx context.Context, channels ...<-chan error) error {
	merged := MergeErrorChans(channels...)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-merged:
			if !ok {
				return nil
			}
			if err != nil {
				return err
			}
		}
	}
}
