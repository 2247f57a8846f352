package keychain_test

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/keychain"
	"github.com/mrz1836/keychain/keys"
)

func TestSerialExecutorPreservesOrder(t *testing.T) {
	e := keychain.NewSerialExecutor()

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})

	const n = 100
	for i := 0; i < n; i++ {
		i := i
		e.Execute(func() {
			mu.Lock()
			got = append(got, i)
			if len(got) == n {
				close(done)
			}
			mu.Unlock()
		})
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("executor never drained")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		require.Equal(t, i, v, "submission order not preserved")
	}
}

func TestSerialExecutorDoesNotBlockSubmitter(t *testing.T) {
	e := keychain.NewSerialExecutor()

	release := make(chan struct{})
	e.Execute(func() { <-release })

	// With the first callback parked, further submissions must still
	// return promptly.
	submitted := make(chan struct{})
	go func() {
		e.Execute(func() {})
		close(submitted)
	}()

	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("Execute blocked behind a running callback")
	}
	close(release)
}

func TestListenerSeesEventsInRaiseOrder(t *testing.T) {
	c := keychain.NewBasicChain()

	const n = 10
	batches := make(chan []*keys.Record, n)
	c.AddEventListenerWithExecutor(&channelListener{ch: batches}, keychain.NewSerialExecutor())

	var minted []*keys.Record
	for i := 0; i < n; i++ {
		rec, err := c.GetKey(keychain.ReceiveFunds)
		require.NoError(t, err)
		minted = append(minted, rec)
	}

	for i := 0; i < n; i++ {
		select {
		case batch := <-batches:
			require.Len(t, batch, 1)
			assert.True(t, bytes.Equal(minted[i].PubKeyHash(), batch[0].PubKeyHash()),
				"event %d out of order", i)
		case <-time.After(5 * time.Second):
			t.Fatalf("event %d never delivered", i)
		}
	}
}

func TestDualRegistrationDeliversTwice(t *testing.T) {
	c := keychain.NewBasicChain()

	listener := &recordingListener{}
	c.AddEventListenerWithExecutor(listener, syncExecutor)
	c.AddEventListenerWithExecutor(listener, syncExecutor)

	_, err := c.GetKey(keychain.ReceiveFunds)
	require.NoError(t, err)

	assert.Len(t, listener.snapshot(), 2, "each registration delivers independently")

	// Removal drops one registration at a time.
	assert.True(t, c.RemoveEventListener(listener))
	_, err = c.GetKey(keychain.ReceiveFunds)
	require.NoError(t, err)
	assert.Len(t, listener.snapshot(), 3)

	assert.True(t, c.RemoveEventListener(listener))
	assert.False(t, c.RemoveEventListener(listener))
}

func TestMutatorNotBlockedBySlowListener(t *testing.T) {
	c := keychain.NewBasicChain()

	slow := &blockedListener{release: make(chan struct{})}
	c.AddEventListenerWithExecutor(slow, keychain.NewSerialExecutor())

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.GetKey(keychain.ReceiveFunds)
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), time.Second,
		"issuance must not wait for listener completion")
	close(slow.release)
}

// blockedListener parks forever on its first notification until
// released, standing in for a stuck observer.
type blockedListener struct {
	release chan struct{}
}

func (l *blockedListener) OnKeysAdded([]*keys.Record) {
	<-l.release
}
