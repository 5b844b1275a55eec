package hinter

import (
	"github.com/cenkalti/backoff/v4"
)

// maxRPCRetries bounds the exponential backoff retry loop every RPC
// fetch in this package goes through. RPC failures inside a
// witness-generation run are not retried by the caller, so the
// fetcher absorbs transient upstream flakiness itself.
const maxRPCRetries = 5

// withRetry runs fn with exponential backoff, giving up after
// maxRPCRetries retries (maxRPCRetries+1 attempts in all).
func withRetry[T any](fn func() (T, error)) (T, error) {
	var result T
	op := func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		result = v
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRPCRetries)
	if err := backoff.Retry(op, policy); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
