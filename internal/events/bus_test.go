package events

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"editorsync/internal/clock"
)

func TestBusDeliversToTopicAndAll(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var topic, all []Event
	bus.Subscribe(TopicSectorTimeChange, func(e Event) { topic = append(topic, e) })
	bus.SubscribeAll(func(e Event) { all = append(all, e) })

	bus.Publish(SectorTimeChange{SectorID: "2024-01-01", Time: 5, IsActiveOnly: true})
	bus.Publish(SaveAllSectorsTime{VideoID: "v", DisplayTime: 3})

	assert.Len(t, topic, 1)
	assert.Len(t, all, 2)
}

func TestBusQueuesNestedPublish(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	var order []string

	bus.Subscribe(TopicSaveAllSectorsTime, func(e Event) {
		order = append(order, "save:first")
		bus.Publish(SectorTimeChange{SectorID: "s", Time: 1})
		order = append(order, "save:first-done")
	})
	bus.Subscribe(TopicSaveAllSectorsTime, func(e Event) {
		order = append(order, "save:second")
	})
	bus.Subscribe(TopicSectorTimeChange, func(e Event) {
		order = append(order, "sector")
	})

	bus.Publish(SaveAllSectorsTime{VideoID: "v", DisplayTime: 1})

	assert.Len(t, order, 4)
	assert.Equal(t, "sector", order[3], "nested event is delivered after the outer one completes")
}

func TestBusPublishDuringForeignDispatchOnlyQueues(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	entered := make(chan struct{})
	release := make(chan struct{})
	delivered := make(chan Event, 1)

	bus.Subscribe(TopicSaveAllSectorsTime, func(Event) {
		close(entered)
		<-release
	})
	bus.Subscribe(TopicSectorTimeChange, func(e Event) { delivered <- e })

	done := make(chan struct{})
	go func() {
		defer close(done)
		bus.Publish(SaveAllSectorsTime{VideoID: "v", DisplayTime: 1})
	}()
	<-entered

	bus.Publish(SectorTimeChange{SectorID: "s", Time: 2})
	select {
	case <-delivered:
		t.Fatal("event delivered while another goroutine was dispatching")
	default:
	}

	close(release)
	<-done
	select {
	case e := <-delivered:
		assert.Equal(t, SectorTimeChange{SectorID: "s", Time: 2}, e)
	default:
		t.Fatal("queued event was not delivered by the dispatching goroutine")
	}
}

func TestBusDropsMalformed(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	calls := 0
	bus.SubscribeAll(func(Event) { calls++ })

	bus.Publish(SectorTimeChange{SectorID: "", Time: 1})
	bus.Publish(SectorTimeChange{SectorID: "s", Time: math.NaN()})
	bus.Publish(SaveAllSectorsTime{VideoID: "v", DisplayTime: -1})
	bus.Publish(MediaCommand{VideoID: "v", Op: "rewind"})
	bus.Publish(nil)

	assert.Zero(t, calls)
}

func TestBusRecoversFromPanickingHandler(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	delivered := false
	bus.Subscribe(TopicMediaCommand, func(Event) { panic("boom") })
	bus.Subscribe(TopicMediaCommand, func(Event) { delivered = true })

	assert.NotPanics(t, func() { bus.Publish(MediaCommand{VideoID: "v", Op: OpPlay}) })
	assert.True(t, delivered)
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	calls := 0
	stop := bus.Subscribe(TopicMediaCommand, func(Event) { calls++ })
	bus.Publish(MediaCommand{VideoID: "v", Op: OpPause})
	stop()
	bus.Publish(MediaCommand{VideoID: "v", Op: OpPause})
	assert.Equal(t, 1, calls)
}

func TestDeduperWindow(t *testing.T) {
	c := clock.NewFake(time.Unix(0, 0))
	d := NewDeduper(c, 100*time.Millisecond)
	ev := SectorTimeChange{SectorID: "s", Time: 12}

	assert.False(t, d.Duplicate(ev))
	c.Advance(50 * time.Millisecond)
	assert.True(t, d.Duplicate(ev))

	assert.False(t, d.Duplicate(SectorTimeChange{SectorID: "s", Time: 13}), "different key")
	assert.False(t, d.Duplicate(SaveAllSectorsTime{VideoID: "s", DisplayTime: 12}), "different topic")

	c.Advance(100 * time.Millisecond)
	assert.False(t, d.Duplicate(SectorTimeChange{SectorID: "s", Time: 13}), "window elapsed")
}
