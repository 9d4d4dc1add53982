package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishOrder(t *testing.T) {
	s := New[int]()

	var got []int
	sub := s.Subscribe(func(m Message[int]) {
		got = append(got, m.Next)
	})
	defer sub.Close()

	for i := 1; i <= 5; i++ {
		s.Created(i)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestCloseStopsDelivery(t *testing.T) {
	s := New[int]()

	var got []int
	sub := s.Subscribe(func(m Message[int]) {
		got = append(got, m.Next)
	})

	s.Created(1)
	sub.Close()
	s.Created(2)
	sub.Close() // closing twice is fine

	assert.Equal(t, []int{1}, got)
}

func TestActions(t *testing.T) {
	s := New[string]()

	var msgs []Message[string]
	sub := s.Subscribe(func(m Message[string]) {
		msgs = append(msgs, m)
	})
	defer sub.Close()

	s.Created("a")
	s.Updated("a", "b")
	s.Deleted("b")

	require.Len(t, msgs, 3)
	assert.Equal(t, Create, msgs[0].Action)
	assert.Nil(t, msgs[0].Previous)

	assert.Equal(t, Update, msgs[1].Action)
	require.NotNil(t, msgs[1].Previous)
	assert.Equal(t, "a", *msgs[1].Previous)
	assert.Equal(t, "b", msgs[1].Next)

	assert.Equal(t, Delete, msgs[2].Action)
}

func TestMultipleSubscribers(t *testing.T) {
	s := New[int]()

	var a, b []int
	subA := s.Subscribe(func(m Message[int]) { a = append(a, m.Next) })
	defer subA.Close()
	subB := s.Subscribe(func(m Message[int]) { b = append(b, m.Next) })
	defer subB.Close()

	s.Created(7)
	assert.Equal(t, []int{7}, a)
	assert.Equal(t, []int{7}, b)
}

func TestMergePreservesPerStreamOrder(t *testing.T) {
	left := New[int]()
	right := New[int]()

	out, sub := Merge(left, right)
	defer sub.Close()

	var got []int
	outSub := out.Subscribe(func(m Message[int]) { got = append(got, m.Next) })
	defer outSub.Close()

	left.Created(1)
	right.Created(10)
	left.Created(2)
	right.Created(20)

	// Per-stream subsequences survive the merge.
	var fromLeft, fromRight []int
	for _, v := range got {
		if v < 10 {
			fromLeft = append(fromLeft, v)
		} else {
			fromRight = append(fromRight, v)
		}
	}
	assert.Equal(t, []int{1, 2}, fromLeft)
	assert.Equal(t, []int{10, 20}, fromRight)

	sub.Close()
	left.Created(3)
	assert.Len(t, got, 4, "merge release must stop delivery")
}
