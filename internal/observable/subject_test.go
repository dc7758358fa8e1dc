package observable

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubject_ReplayAndOrder(t *testing.T) {
	t.Parallel()
	s := New(0)
	s.Publish(1)

	var a, b []int
	unA := s.Subscribe(func(v int) { a = append(a, v) })
	s.Publish(2)
	s.Subscribe(func(v int) { b = append(b, v) })
	s.Publish(3)

	require.Equal(t, []int{1, 2, 3}, a)
	require.Equal(t, []int{2, 3}, b)
	require.Equal(t, 3, s.Value())

	unA()
	unA()
	s.Publish(4)
	require.Equal(t, []int{1, 2, 3}, a)
	require.Equal(t, []int{2, 3, 4}, b)
	require.Equal(t, 1, s.Len())
}

func TestSubject_ValueInsideCallback(t *testing.T) {
	t.Parallel()
	s := New("a")
	var seen []string
	s.Subscribe(func(string) { seen = append(seen, s.Value()) })
	s.Publish("b")
	require.Equal(t, []string{"a", "b"}, seen)
}

func TestSubject_ConcurrentPublishersSeeSameSequence(t *testing.T) {
	t.Parallel()
	s := New(0)
	var mu sync.Mutex
	var first, second []int
	s.Subscribe(func(v int) { mu.Lock(); first = append(first, v); mu.Unlock() })
	s.Subscribe(func(v int) { mu.Lock(); second = append(second, v); mu.Unlock() })

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Publish(i)
		}(i)
	}
	wg.Wait()

	require.Len(t, first, 51)
	require.Equal(t, first, second)
	require.Equal(t, first[len(first)-1], s.Value())
}
