package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secutoken/internal/compliance/models"
	"secutoken/internal/compliance/state"
	id "secutoken/pkg/domain"
	dErrors "secutoken/pkg/domain-errors"
)

const wallet id.Address = "0x00000000000000000000000000000000000000a1"

var now = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

type recordingPersister struct {
	mu    sync.Mutex
	saves [][]byte
	err   error
}

func (p *recordingPersister) Save(_ context.Context, snapshot []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.saves = append(p.saves, snapshot)
	return nil
}

func issue(value uint64) func(*state.State) error {
	return func(st *state.State) error {
		return st.Issue(state.Holder{Wallet: wallet, Investor: "a"}, value, now)
	}
}

func supply(t *testing.T, m *Memory) uint64 {
	t.Helper()
	var got uint64
	require.NoError(t, m.View(context.Background(), func(st *state.State) error {
		got = st.Book.TotalSupply
		return nil
	}))
	return got
}

func TestUpdateCommitsOnlyOnSuccess(t *testing.T) {
	m := NewMemory(state.New(models.DefaultConfig()))
	ctx := context.Background()

	require.NoError(t, m.Update(ctx, issue(10)))
	assert.Equal(t, uint64(10), supply(t, m))

	boom := errors.New("rule failed")
	err := m.Update(ctx, func(st *state.State) error {
		if err := issue(5)(st); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(10), supply(t, m))
}

func TestUpdateRejectsCancelledContext(t *testing.T) {
	m := NewMemory(state.New(models.DefaultConfig()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Update(ctx, issue(1))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.Equal(t, uint64(0), supply(t, m))
}

func TestPersisterFailureAbortsCommit(t *testing.T) {
	p := &recordingPersister{}
	m := NewMemory(state.New(models.DefaultConfig()), WithPersister(p))
	ctx := context.Background()

	require.NoError(t, m.Update(ctx, issue(3)))
	require.Len(t, p.saves, 1)

	restored, err := Restore(p.saves[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(3), restored.Book.TotalSupply)

	p.err = errors.New("disk full")
	err = m.Update(ctx, issue(4))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.Equal(t, uint64(3), supply(t, m))
}

func TestSimulateNeverCommits(t *testing.T) {
	m := NewMemory(state.New(models.DefaultConfig()))
	require.NoError(t, m.Simulate(context.Background(), issue(9)))
	assert.Equal(t, uint64(0), supply(t, m))
}

func TestConcurrentUpdatesAreSerialised(t *testing.T) {
	m := NewMemory(state.New(models.DefaultConfig()))
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Update(context.Background(), issue(1)))
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(50), supply(t, m))
}
