package node

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustNode(t *testing.T, name, host string, maxUsers int) *Node {
	t.Helper()
	n, err := NewNode(name, host, maxUsers)
	require.NoError(t, err)
	return n
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry([]*Node{
		mustNode(t, "nl-1", "nl1.example.com", 100),
		mustNode(t, "nl-2", "nl2.example.com", 50),
	})
	require.NoError(t, err)
	return r
}

func TestNewNode_Validation(t *testing.T) {
	_, err := NewNode("", "host", 10)
	assert.Error(t, err)

	_, err = NewNode("name", "", 10)
	assert.Error(t, err)

	_, err = NewNode("name", "host", 0)
	assert.Error(t, err)
}

func TestNewRegistry_Validation(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.Error(t, err)

	_, err = NewRegistry([]*Node{
		mustNode(t, "a", "same.example.com", 10),
		mustNode(t, "b", "same.example.com", 10),
	})
	assert.Error(t, err)
}

func TestRegistry_SelectOptimalHost_LowestPercent(t *testing.T) {
	r := newTestRegistry(t)

	// nl-1: 10/100 = 10%, nl-2: 10/50 = 20%
	for i := 0; i < 10; i++ {
		r.IncrementLoad("nl1.example.com")
		r.IncrementLoad("nl2.example.com")
	}

	assert.Equal(t, "nl1.example.com", r.SelectOptimalHost())
}

func TestRegistry_SelectOptimalHost_TieGoesFirst(t *testing.T) {
	r := newTestRegistry(t)
	assert.Equal(t, "nl1.example.com", r.SelectOptimalHost())
}

func TestRegistry_SelectOptimalHost_NeverFails(t *testing.T) {
	r, err := NewRegistry([]*Node{mustNode(t, "only", "only.example.com", 2)})
	require.NoError(t, err)

	// Fill to capacity and keep asking; selection still returns a host.
	for i := 0; i < 5; i++ {
		r.IncrementLoad("only.example.com")
	}
	assert.Equal(t, "only.example.com", r.SelectOptimalHost())
}

func TestRegistry_IncrementLoad_StopsAtCapacity(t *testing.T) {
	r, err := NewRegistry([]*Node{mustNode(t, "tiny", "tiny.example.com", 2)})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		r.IncrementLoad("tiny.example.com")
	}

	status := r.Status()
	require.Len(t, status, 1)
	assert.Equal(t, 2, status[0].Current)
	assert.LessOrEqual(t, status[0].Current, status[0].MaxUsers)

	// Freeing one slot makes the next increment land again.
	r.DecrementLoad("tiny.example.com")
	assert.True(t, r.IncrementLoad("tiny.example.com"))
	assert.Equal(t, 2, r.Status()[0].Current)
}

func TestRegistry_SetLoad_ClampsToBounds(t *testing.T) {
	r, err := NewRegistry([]*Node{mustNode(t, "tiny", "tiny.example.com", 2)})
	require.NoError(t, err)

	r.SetLoad("tiny.example.com", 9)
	assert.Equal(t, 2, r.Status()[0].Current)

	r.SetLoad("tiny.example.com", -3)
	assert.Equal(t, 0, r.Status()[0].Current)
}

func TestRegistry_IncrementLoad(t *testing.T) {
	r, err := NewRegistry([]*Node{mustNode(t, "tiny", "tiny.example.com", 2)})
	require.NoError(t, err)

	assert.True(t, r.IncrementLoad("tiny.example.com"))
	assert.True(t, r.IncrementLoad("tiny.example.com"))
	assert.False(t, r.IncrementLoad("tiny.example.com"))

	assert.False(t, r.IncrementLoad("unknown.example.com"))
}

func TestRegistry_DecrementLoad(t *testing.T) {
	r := newTestRegistry(t)

	r.IncrementLoad("nl1.example.com")
	r.DecrementLoad("nl1.example.com")
	r.DecrementLoad("nl1.example.com") // floor at zero
	r.DecrementLoad("gone.example.com")

	status := r.Status()
	assert.Equal(t, 0, status[0].Current)
}

func TestRegistry_SetLoad(t *testing.T) {
	r := newTestRegistry(t)

	r.SetLoad("nl2.example.com", 42)
	r.SetLoad("nl1.example.com", -3)
	r.SetLoad("gone.example.com", 7)

	status := r.Status()
	assert.Equal(t, 0, status[0].Current)
	assert.Equal(t, 42, status[1].Current)
}

func TestRegistry_Status(t *testing.T) {
	r := newTestRegistry(t)
	r.IncrementLoad("nl2.example.com")

	status := r.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "nl-1", status[0].Name)
	assert.Equal(t, "nl1.example.com", status[0].Host)
	assert.Equal(t, 100, status[0].MaxUsers)
	assert.InDelta(t, 0.0, status[0].LoadPercent, 0.001)
	assert.Equal(t, 1, status[1].Current)
	assert.InDelta(t, 2.0, status[1].LoadPercent, 0.001)
}

func TestRegistry_HostsAndContains(t *testing.T) {
	r := newTestRegistry(t)

	assert.Equal(t, []string{"nl1.example.com", "nl2.example.com"}, r.Hosts())
	assert.True(t, r.Contains("nl1.example.com"))
	assert.False(t, r.Contains("other.example.com"))
}

func TestRegistry_ConcurrentCounters(t *testing.T) {
	r := newTestRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.IncrementLoad("nl1.example.com")
			r.SelectOptimalHost()
			r.DecrementLoad("nl1.example.com")
		}()
	}
	wg.Wait()

	status := r.Status()
	assert.Equal(t, 0, status[0].Current)
}
