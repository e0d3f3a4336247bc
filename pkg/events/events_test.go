package events

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	t     EventType
	value int
}

func (e *testEvent) EventType() EventType { return e.t }

const testType EventType = "test.event"

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var got []int
	sub := bus.Subscribe(testType, func(e Event) {
		got = append(got, e.(*testEvent).value)
	})
	assert.Equal(t, testType, sub.EventType())
	assert.Equal(t, 1, bus.SubscriberCount(testType))

	bus.Publish(&testEvent{t: testType, value: 1})
	bus.Publish(&testEvent{t: "other", value: 2})
	bus.Publish(&testEvent{t: testType, value: 3})
	bus.Publish(nil)

	// Delivery is synchronous
	assert.Equal(t, []int{1, 3}, got)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int
	sub := bus.Subscribe(testType, func(Event) { count++ })

	bus.Publish(&testEvent{t: testType})
	sub.Unsubscribe()
	sub.Unsubscribe() // second call is a no-op
	bus.Publish(&testEvent{t: testType})

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, bus.SubscriberCount(testType))

	bus.Unsubscribe(nil)
}

func TestEverySubscriberReceivesEvent(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var a, b int32
	bus.Subscribe(testType, func(Event) { atomic.AddInt32(&a, 1) })
	bus.Subscribe(testType, func(Event) { atomic.AddInt32(&b, 1) })

	bus.Publish(&testEvent{t: testType})

	assert.Equal(t, int32(1), atomic.LoadInt32(&a))
	assert.Equal(t, int32(1), atomic.LoadInt32(&b))
}

func TestHandlerPanicDoesNotStopDelivery(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var delivered int32
	bus.Subscribe(testType, func(Event) { panic("boom") })
	bus.Subscribe(testType, func(Event) { atomic.AddInt32(&delivered, 1) })

	assert.NotPanics(t, func() {
		bus.Publish(&testEvent{t: testType})
	})
	assert.Equal(t, int32(1), atomic.LoadInt32(&delivered))
}

func TestSubscribeDuringPublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var late int32
	bus.Subscribe(testType, func(Event) {
		// Handlers run without the bus lock held
		bus.Subscribe(testType, func(Event) { atomic.AddInt32(&late, 1) })
	})

	bus.Publish(&testEvent{t: testType})
	assert.Equal(t, int32(0), atomic.LoadInt32(&late))
	assert.Equal(t, 2, bus.SubscriberCount(testType))
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var received int64
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := bus.Subscribe(testType, func(Event) { atomic.AddInt64(&received, 1) })
			for j := 0; j < 100; j++ {
				bus.Publish(&testEvent{t: testType, value: j})
			}
			sub.Unsubscribe()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, bus.SubscriberCount(testType))
	assert.Greater(t, atomic.LoadInt64(&received), int64(0))
}

func TestStream(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch, sub := bus.Stream(testType, 2)

	bus.Publish(&testEvent{t: testType, value: 1})
	bus.Publish(&testEvent{t: testType, value: 2})
	bus.Publish(&testEvent{t: testType, value: 3}) // dropped, buffer full

	assert.Equal(t, 1, (<-ch).(*testEvent).value)
	assert.Equal(t, 2, (<-ch).(*testEvent).value)

	sub.Unsubscribe()
	bus.Publish(&testEvent{t: testType, value: 4})

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestClose(t *testing.T) {
	bus := NewBus()
	ch, _ := bus.Stream(testType, 1)

	var count int
	bus.Subscribe(testType, func(Event) { count++ })

	bus.Close()
	bus.Close()
	assert.True(t, bus.Closed())

	bus.Publish(&testEvent{t: testType})
	assert.Equal(t, 0, count)
	assert.Equal(t, 0, bus.SubscriberCount(testType))

	_, ok := <-ch
	assert.False(t, ok)

	// Subscribing after close returns a released subscription
	ch2, sub := bus.Stream(testType, 1)
	require.NotNil(t, sub)
	_, ok = <-ch2
	assert.False(t, ok)
	sub.Unsubscribe()
}
