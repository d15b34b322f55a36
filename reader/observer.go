package reader

import "github.com/grokify/omnibatch"

// Observer receives pipeline events from a BatchReader. Implementations
// are called synchronously on the reading goroutine.
type Observer interface {
	// BatchRead is called for every batch returned to the caller.
	BatchRead(b *omnibatch.Batch)

	// InstancesSkipped is called once the skip phase has discarded n
	// instances.
	InstancesSkipped(n int64)

	// ReadFailed is called for every error other than io.EOF.
	ReadFailed(err error)
}

type nopObserver struct{}

func (nopObserver) BatchRead(*omnibatch.Batch) {}
func (nopObserver) InstancesSkipped(int64)     {}
func (nopObserver) ReadFailed(error)           {}

type multiObserver []Observer

func (m multiObserver) BatchRead(b *omnibatch.Batch) {
	for _, o := range m {
		o.BatchRead(b)
	}
}

func (m multiObserver) InstancesSkipped(n int64) {
	for _, o := range m {
		o.InstancesSkipped(n)
	}
}

func (m multiObserver) ReadFailed(err error) {
	for _, o := range m {
		o.ReadFailed(err)
	}
}
