package lib

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDurationJobRuns(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Shutdown()

	ran := make(chan string, 10)
	id, err := CreateDurationJob(sched, "sweep", 10*time.Millisecond, func(tag string) {
		select {
		case ran <- tag:
		default:
		}
	}, "tick")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	sched.Start()
	select {
	case tag := <-ran:
		assert.Equal(t, "tick", tag)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
	assert.Len(t, sched.Jobs(), 1)
}

func TestCreateOneTimeJobRuns(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Shutdown()

	done := make(chan struct{})
	_, err = CreateOneTimeJob(sched, "prune", time.Now().Add(200*time.Millisecond), func() {
		close(done)
	})
	require.NoError(t, err)

	sched.Start()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("one time job did not run")
	}
}

func TestCreateDurationJobRejectsBadTask(t *testing.T) {
	sched, err := NewScheduler()
	require.NoError(t, err)
	defer sched.Shutdown()

	_, err = CreateDurationJob(sched, "bad", time.Second, "not a function")
	assert.Error(t, err)
}
