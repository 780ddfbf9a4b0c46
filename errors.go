// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package evq

import (
	"errors"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// For TryEnqueue/WeakEnqueue: the queue is full (backpressure)
// For TryDequeue/TryPeek: the queue is empty (no data available)
//
// ErrWouldBlock is a control flow signal, not a failure. The caller should
// retry the operation later (with backoff or yield) rather than propagating
// the error.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
//
// Example:
//
//	backoff := iox.Backoff{}
//	for {
//	    err := q.TryEnqueue(&item)
//	    if err == nil {
//	        backoff.Reset()
//	        break
//	    }
//	    if evq.IsWouldBlock(err) {
//	        backoff.Wait()  // Adaptive backpressure
//	        continue
//	    }
//	    return err  // Unexpected error
//	}
var ErrWouldBlock = iox.ErrWouldBlock

// ErrContended is returned by WeakEnqueue when another producer won the
// CAS on the producer index. The queue was not full; the element was not
// admitted. The caller decides whether to retry, batch, or drop.
//
// TryEnqueue never returns ErrContended — it retries internally.
var ErrContended = errors.New("evq: lost producer arbitration")

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsContended reports whether err indicates a lost CAS from WeakEnqueue.
func IsContended(err error) bool {
	return errors.Is(err, ErrContended)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// Returns true for ErrContended or any iox semantic error.
func IsSemantic(err error) bool {
	return IsContended(err) || iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Returns true for nil, ErrWouldBlock, or ErrContended.
func IsNonFailure(err error) bool {
	return IsContended(err) || iox.IsNonFailure(err)
}
