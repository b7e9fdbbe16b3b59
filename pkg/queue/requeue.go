package queue

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Abraxas-365/workq/pkg/logx"
	"github.com/redis/go-redis/v9"
)

// Requeue pushes back onto pending every ongoing job whose last activity is
// older than timeout and which is not already pending. The read-decide-write
// cycle runs under WATCH on ongoing and pending and is retried until it
// commits without interference.
func (q *Queue) Requeue(ctx context.Context, timeout time.Duration) ([]string, error) {
	for {
		var requeued []string
		err := q.rdb.Watch(ctx, func(tx *redis.Tx) error {
			requeued = nil

			ongoing, err := tx.HGetAll(ctx, q.keys.ongoing).Result()
			if err != nil {
				return err
			}
			pending, err := tx.LRange(ctx, q.keys.pending, 0, -1).Result()
			if err != nil {
				return err
			}

			now := q.now()
			stale := q.staleJobs(ongoing, toSet(pending), now, timeout)
			if len(stale) == 0 {
				return nil
			}

			stamp := formatTime(now)
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, jobid := range stale {
					pipe.LPush(ctx, q.keys.pending, jobid)
					pipe.HSet(ctx, q.keys.ongoing, jobid, stamp)
				}
				return nil
			})
			if err == nil {
				requeued = stale
			}
			return err
		}, q.keys.ongoing, q.keys.pending)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, storeError("requeue", err)
		}

		if len(requeued) > 0 {
			logx.WithFields(logx.Fields{"queue": q.name, "system": q.system, "count": len(requeued)}).
				Infof("queue: requeued %v", requeued)
		}
		return requeued, nil
	}
}

func (q *Queue) staleJobs(ongoing map[string]string, pending map[string]bool, now time.Time, timeout time.Duration) []string {
	var stale []string
	for jobid, stamp := range ongoing {
		if pending[jobid] {
			continue
		}
		last, err := parseTime(stamp)
		if err != nil {
			logx.WithFields(logx.Fields{"jobid": jobid, "value": stamp}).
				Warn("queue: unreadable activity timestamp, requeueing")
			stale = append(stale, jobid)
			continue
		}
		if now.Sub(last) > timeout {
			stale = append(stale, jobid)
		}
	}
	sort.Strings(stale)
	return stale
}
