package bot

import (
	"context"
	"sync"
	"time"

	"klemz/internal/models"
)

// clock is the one-second display ticker. It only feeds the header text;
// booking logic never waits on it.
type clock struct {
	mu      sync.Mutex
	current string
}

func (c *clock) run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	c.set(time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.set(now)
		}
	}
}

func (c *clock) set(now time.Time) {
	c.mu.Lock()
	c.current = now.UTC().Format("15:04:05")
	c.mu.Unlock()
}

// header renders the clock and today's date for the barber list.
func (c *clock) header() string {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()
	return "🕐 " + current + "  📅 " + models.FormatDate(time.Now())
}
