package persist

import (
	"fmt"
	"time"

	"github.com/VladKovDev/raffle-bot/pkg/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Checkpointer re-requests a persist on a cron schedule. Write failures
// are swallowed by the serializer, so a periodic rewrite is what heals a
// store that missed an update.
type Checkpointer struct {
	cron       *cron.Cron
	serializer *Serializer
	logger     logger.Logger
	lastFails  int64
}

func NewCheckpointer(spec string, loc *time.Location, serializer *Serializer, log logger.Logger) (*Checkpointer, error) {
	if loc == nil {
		loc = time.Local
	}
	c := &Checkpointer{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		serializer: serializer,
		logger:     log,
	}
	if _, err := c.cron.AddFunc(spec, c.Run); err != nil {
		return nil, fmt.Errorf("invalid checkpoint schedule %q: %w", spec, err)
	}
	return c, nil
}

// Run performs one checkpoint and waits for it to be written.
func (c *Checkpointer) Run() {
	done, err := c.serializer.RequestPersist()
	if err != nil {
		c.logger.Warn("skipping raffle state checkpoint", zap.Error(err))
		return
	}
	<-done

	fails := c.serializer.Failures()
	if fails > c.lastFails {
		c.logger.Warn("raffle state writes failed since last checkpoint",
			zap.Int64("failed_writes", fails-c.lastFails))
	}
	c.lastFails = fails
}

func (c *Checkpointer) Start() {
	c.cron.Start()
}

// Stop halts the schedule and returns once a running checkpoint is done.
func (c *Checkpointer) Stop() {
	<-c.cron.Stop().Done()
}
