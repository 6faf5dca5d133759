package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan string, 3)
	q := NewQueue("mail", func(_ context.Context, job Job) error {
		done <- job.Payload.(string)
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job{Type: "test", Payload: p}))
	}

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case p := <-done:
			seen[p] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	assert.Len(t, seen, 3)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	succeeded := make(chan int, 1)
	q := NewQueue("mail", func(_ context.Context, job Job) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return errors.New("smtp unavailable")
		}
		succeeded <- job.Attempt
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "test"}))

	select {
	case attempt := <-succeeded:
		assert.Equal(t, 2, attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	var attempts int32
	q := NewQueue("mail", func(context.Context, Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("permanent")
	}, QueueConfig{MaxRetries: 1, RetryDelay: time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(Job{Type: "test"}))
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&attempts) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	q.Stop()

	assert.EqualValues(t, 2, atomic.LoadInt32(&attempts))
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingObserver) ObserveJob(queue, jobType, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, queue+"/"+jobType+"/"+outcome)
}

func (r *recordingObserver) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.outcomes...)
}

func TestQueueReportsOutcomes(t *testing.T) {
	obs := &recordingObserver{}
	var attempts int32
	q := NewQueue("mail", func(context.Context, Job) error {
		if atomic.AddInt32(&attempts, 1) == 1 {
			return errors.New("smtp unavailable")
		}
		return nil
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond, Observer: obs})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "mail.verification"}))
	assert.Eventually(t, func() bool { return len(obs.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"mail/mail.verification/retry", "mail/mail.verification/done"}, obs.snapshot())
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("mail", func(context.Context, Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{Type: "test"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestStopCancelsPendingRetries(t *testing.T) {
	q := NewQueue("mail", func(context.Context, Job) error {
		return errors.New("fail")
	}, QueueConfig{MaxRetries: 5, RetryDelay: time.Hour})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{Type: "test"}))
	time.Sleep(20 * time.Millisecond)
	q.Stop()

	assert.ErrorIs(t, q.Enqueue(Job{Type: "test"}), ErrQueueClosed)
}
