package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/csvkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	delivered []Notice
}

func (f *fakeSink) Deliver(ctx context.Context, n Notice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failFirst {
		return errors.New("transport down")
	}
	f.delivered = append(f.delivered, n)
	return nil
}

func (f *fakeSink) snapshot() (int, []Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, append([]Notice(nil), f.delivered...)
}

// blockingSink holds deliveries until release is closed.
type blockingSink struct {
	release chan struct{}
}

func (b *blockingSink) Deliver(ctx context.Context, n Notice) error {
	<-b.release
	return nil
}

func TestNotice_Message(t *testing.T) {
	n := Notice{DisplayName: "report.csv.enc", Days: 30}
	assert.Equal(t, "Your file report.csv.enc has been deleted after 30 days.", n.Message())
}

func TestDispatcher_DeliversAll(t *testing.T) {
	sink := &fakeSink{}
	d := NewDispatcher(sink, logging.NewNop(), Config{Workers: 3, QueueSize: 10, Backoff: time.Millisecond})
	d.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.True(t, d.Enqueue(Notice{OwnerID: "u", DisplayName: "f.enc", Days: 30}))
	}
	d.Stop()

	calls, delivered := sink.snapshot()
	assert.Equal(t, 5, calls)
	assert.Len(t, delivered, 5)
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	sink := &fakeSink{failFirst: 2}
	d := NewDispatcher(sink, logging.NewNop(), Config{Workers: 1, MaxRetries: 3, Backoff: time.Millisecond})
	d.Start(context.Background())

	require.True(t, d.Enqueue(Notice{OwnerID: "u", DisplayName: "f.enc", Days: 30}))
	d.Stop()

	calls, delivered := sink.snapshot()
	assert.Equal(t, 3, calls)
	assert.Len(t, delivered, 1)
}

func TestDispatcher_GivesUpAfterMaxRetries(t *testing.T) {
	sink := &fakeSink{failFirst: 100}
	d := NewDispatcher(sink, logging.NewNop(), Config{Workers: 1, MaxRetries: 2, Backoff: time.Millisecond})
	d.Start(context.Background())

	require.True(t, d.Enqueue(Notice{OwnerID: "u"}))
	d.Stop()

	calls, delivered := sink.snapshot()
	assert.Equal(t, 3, calls, "first attempt plus two retries")
	assert.Empty(t, delivered)
}

func TestDispatcher_DropsWhenFullOrStopped(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(sink, logging.NewNop(), Config{Workers: 1, QueueSize: 1})
	d.Start(context.Background())

	// first notice is picked by the worker, second fills the queue
	require.True(t, d.Enqueue(Notice{OwnerID: "a"}))
	require.Eventually(t, func() bool { return d.Enqueue(Notice{OwnerID: "b"}) }, time.Second, time.Millisecond)
	assert.False(t, d.Enqueue(Notice{OwnerID: "c"}))

	close(sink.release)
	d.Stop()
	d.Stop()

	assert.False(t, d.Enqueue(Notice{OwnerID: "d"}))
}
