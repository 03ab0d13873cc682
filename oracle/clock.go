package oracle

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/atomic"
)

type subscriber struct {
	ctx context.Context
	ch  chan SlotID
}

// SlotClock advances slots on a fixed wall-clock cadence and notifies
// subscribers on every transition. Slot numbering is anchored at the Unix
// epoch so that any two clocks with the same slot duration agree on the
// current slot without coordination.
type SlotClock struct {
	mu           sync.RWMutex
	currentSlot  SlotID
	slotDuration time.Duration
	subscribers  []subscriber
	started      *atomic.Bool
}

// NewSlotClock creates a clock with the given slot duration.
func NewSlotClock(slotDuration time.Duration) *SlotClock {
	return &SlotClock{
		slotDuration: slotDuration,
		subscribers:  make([]subscriber, 0),
		started:      &atomic.Bool{},
	}
}

// CurrentSlot returns the clock's current slot.
func (c *SlotClock) CurrentSlot() SlotID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentSlot
}

// SubscribeToSlots receives slot transition notifications. The current slot
// is delivered immediately; the channel is closed when ctx is done.
func (c *SlotClock) SubscribeToSlots(ctx context.Context) <-chan SlotID {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan SlotID, 10)
	c.subscribers = append(c.subscribers, subscriber{ctx, ch})

	current := c.currentSlot
	go func() {
		ch <- current
	}()

	return ch
}

// SlotForTime returns the slot containing the given instant.
func SlotForTime(instant time.Time, slotDuration time.Duration) SlotID {
	return SlotID(instant.UnixMilli() / slotDuration.Milliseconds())
}

// TimeForSlot returns the instant at which a slot begins.
func TimeForSlot(slot SlotID, slotDuration time.Duration) time.Time {
	return time.Unix(0, 0).Add(time.Duration(slot) * slotDuration)
}

// Start begins slot progression from the current wall-clock time.
func (c *SlotClock) Start(ctx context.Context) {
	if c.started.Swap(true) {
		return
	}

	c.mu.Lock()
	c.currentSlot = SlotForTime(time.Now(), c.slotDuration)
	c.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(TimeForSlot(c.CurrentSlot()+1, c.slotDuration))):
				c.advanceSlot()
			}
		}
	}()
}

// AdvanceTo manually advances the clock to a specific slot.
// Only used in tests.
func (c *SlotClock) AdvanceTo(slot SlotID) {
	for slot > c.CurrentSlot() {
		c.advanceSlot()
	}
}

// advanceSlot moves to the next slot and notifies subscribers.
func (c *SlotClock) advanceSlot() {
	c.mu.Lock()
	c.currentSlot++
	newSlot := c.currentSlot

	toRemove := []int{}
	for i, sub := range c.subscribers {
		select {
		case <-sub.ctx.Done():
			close(sub.ch)
			toRemove = append(toRemove, i)
		case sub.ch <- newSlot:
		default:
			// Skip if channel is full
		}
	}

	slices.Reverse(toRemove)
	for _, i := range toRemove {
		c.subscribers = slices.Delete(c.subscribers, i, i+1)
	}

	c.mu.Unlock()
}
