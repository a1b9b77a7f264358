// Package queue serializes operations against a db.KVDB.
//
// Every store owns one Queue. Operations are submitted from any goroutine with
// Submit and executed by a single worker goroutine in the order in which they
// were accepted, so a read-modify-write never interleaves with another
// operation on the same store. Callers receive a Future and may wait on it or
// drop it.
//
// Internally the queue hands tasks from a lock-free multi-producer
// single-consumer list to the worker.
//
// Each queue exports the following metrics (github.com/VictoriaMetrics/metrics),
// labeled with the queue name:
//
//	litemap_queue_submitted_total
//	litemap_queue_completed_total
//	litemap_queue_failed_total
//	litemap_queue_pending
package queue
