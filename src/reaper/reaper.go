// Package reaper periodically sweeps pending bookings whose reservation
// TTL ran out and returns their seats to the pool.
package reaper

import (
	"context"
	"log"
	"time"

	"etix/src/booking"
	"etix/src/config"
	"etix/src/lib"

	"github.com/go-co-op/gocron/v2"
	"github.com/redis/go-redis/v9"
)

const (
	lockKey = "reaper:lock"
	// batchSize bounds one sweep so a large backlog cannot hold row locks
	// for long; the next tick picks up the rest.
	batchSize = 100
)

type Reaper struct {
	engine   *booking.Engine
	rdb      *redis.Client
	interval time.Duration
}

func New(engine *booking.Engine, rdb *redis.Client) *Reaper {
	return &Reaper{
		engine:   engine,
		rdb:      rdb,
		interval: config.ReaperInterval(),
	}
}

// Register puts the sweep on the shared scheduler, plus a one-time
// catch-up run shortly after boot for any backlog left from before the
// restart.
func (r *Reaper) Register() error {
	_, err := lib.CreateCronJob(r.Sweep, r.interval)
	if err != nil {
		log.Printf("[reaper] could not register sweep job: %s\n", err.Error())
		return err
	}
	_, err = lib.CreateOneTimeCronJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(time.Now().Add(30*time.Second))),
		gocron.NewTask(r.Sweep),
	)
	if err != nil {
		log.Printf("[reaper] could not schedule catch-up sweep: %s\n", err.Error())
	}
	log.Printf("[reaper] sweeping every %s\n", r.interval.String())
	return nil
}

// Sweep expires one batch of stale pending bookings. A redis lock keeps
// overlapping instances from sweeping the same rows; when redis is down the
// sweep proceeds alone, the per-booking row locks still make it safe.
func (r *Reaper) Sweep() {
	ctx := context.Background()
	unlock, ok := r.tryLock(ctx)
	if !ok {
		return
	}
	defer unlock()

	reaped, err := r.engine.Expire(ctx, batchSize)
	if err != nil {
		log.Printf("[reaper] sweep failed: %s\n", err.Error())
		return
	}
	if reaped > 0 {
		log.Printf("[reaper] released seats for %d expired bookings\n", reaped)
	}
}

func (r *Reaper) tryLock(ctx context.Context) (func(), bool) {
	if r.rdb == nil {
		return func() {}, true
	}
	ok, err := r.rdb.SetNX(ctx, lockKey, "1", r.interval).Result()
	if err != nil {
		log.Printf("[reaper] lock unavailable, sweeping without it: %s\n", err.Error())
		return func() {}, true
	}
	if !ok {
		return nil, false
	}
	return func() {
		if err := r.rdb.Del(ctx, lockKey).Err(); err != nil {
			log.Printf("[reaper] could not release lock: %s\n", err.Error())
		}
	}, true
}
