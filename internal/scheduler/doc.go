// Package scheduler runs audits on a fixed pool of workers fed by a bounded
// FIFO queue. At most Concurrency audits run at once; the rest wait in
// submission order.
package scheduler
