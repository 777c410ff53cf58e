package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yousuf/tracecanon/internal/event"
	"github.com/yousuf/tracecanon/internal/sandbox"
)

func TestGetOrCreateSession(t *testing.T) {
	m := NewManager([]string{"error"}, nil)

	a := m.GetOrCreateSession("a")
	assert.Same(t, a, m.GetOrCreateSession("a"))
	assert.NotSame(t, a, m.GetOrCreateSession("b"))
	assert.Nil(t, m.GetSession("c"))
	assert.True(t, a.Console.Enabled("error"))
	assert.False(t, a.Console.Enabled("log"))
	assert.Zero(t, a.Images.Len())
}

func TestConcurrentCreateReturnsOneSession(t *testing.T) {
	m := NewManager(nil, nil)

	var wg sync.WaitGroup
	got := make([]*Context, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = m.GetOrCreateSession("shared")
		}(i)
	}
	wg.Wait()

	for _, sc := range got {
		assert.Same(t, got[0], sc)
	}
}

func TestDeleteSession(t *testing.T) {
	m := NewManager(nil, nil)
	m.GetOrCreateSession("a")

	require.NoError(t, m.DeleteSession("a"))
	assert.Nil(t, m.GetSession("a"))
	assert.ErrorContains(t, m.DeleteSession("a"), `session "a" not found`)

	m.GetOrCreateSession("b")
	require.NoError(t, m.CloseAll())
	assert.Nil(t, m.GetSession("b"))
}

func TestRecordKeepsNewestEvents(t *testing.T) {
	sc := NewContext("s", nil, nil)
	for i := 0; i < maxEvents+5; i++ {
		ev := event.New(event.LevelInfo)
		ev.Message = fmt.Sprint(i)
		sc.Record(ev)
	}

	events := sc.Events()
	require.Len(t, events, maxEvents)
	assert.Equal(t, "5", events[0].Message)
	assert.Equal(t, fmt.Sprint(maxEvents+4), events[len(events)-1].Message)
}

func TestSandboxWithoutRuntime(t *testing.T) {
	sc := NewContext("s", nil, nil)
	_, err := sc.Sandbox(context.Background())
	assert.ErrorContains(t, err, "no script runtime configured")
}

func TestSandboxFactoryError(t *testing.T) {
	calls := 0
	sc := NewContext("s", nil, func(ctx context.Context, sc *Context) (*sandbox.Sandbox, error) {
		calls++
		return nil, errors.New("boom")
	})

	_, err := sc.Sandbox(context.Background())
	assert.EqualError(t, err, "boom")
	_, err = sc.Sandbox(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, calls, "failed creations are retried")
	assert.NoError(t, sc.Close())
}
