package queue

import (
	"context"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"
)

// DefaultFields is the projection List applies when none is given.
var DefaultFields = []string{"metadata"}

// List returns the documents whose state is in states (default EVERY),
// annotated with metadata.status and projected to fields (default metadata).
// Cancelled jobs have no document and never appear.
func (q *Queue) List(ctx context.Context, states []State, fields []string) ([]map[string]any, error) {
	if len(states) == 0 {
		states = []State{StateEvery}
	}
	if len(fields) == 0 {
		fields = DefaultFields
	}

	var (
		successCmd, failedCmd *redis.StringSliceCmd
		pendingCmd, jobsCmd   *redis.StringSliceCmd
	)
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		successCmd = pipe.SMembers(ctx, q.keys.success)
		failedCmd = pipe.SMembers(ctx, q.keys.failed)
		pendingCmd = pipe.LRange(ctx, q.keys.pending, 0, -1)
		jobsCmd = pipe.HKeys(ctx, q.keys.jobs)
		return nil
	})
	if err != nil {
		return nil, storeError("list", err)
	}

	success := toSet(successCmd.Val())
	failed := toSet(failedCmd.Val())
	pending := toSet(pendingCmd.Val())
	every := toSet(jobsCmd.Val())

	classify := func(jobid string) State {
		switch {
		case success[jobid]:
			return StateSuccess
		case failed[jobid]:
			return StateFailed
		case pending[jobid]:
			return StatePending
		default:
			return StateActive
		}
	}

	selected := make(map[string]bool)
	for _, st := range states {
		switch st {
		case StateEvery:
			for id := range every {
				selected[id] = true
			}
		case StateActive:
			for id := range every {
				if classify(id) == StateActive {
					selected[id] = true
				}
			}
		case StateSuccess:
			mergeSet(selected, success)
		case StateFailed:
			mergeSet(selected, failed)
		case StatePending:
			mergeSet(selected, pending)
		}
	}

	ids := make([]string, 0, len(selected))
	for id := range selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return []map[string]any{}, nil
	}

	docs := make([]*redis.StringCmd, len(ids))
	_, err = q.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			docs[i] = pipe.HGet(ctx, q.keys.jobs, id)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, storeError("list", err)
	}

	out := make([]map[string]any, 0, len(ids))
	for i, id := range ids {
		raw, err := docs[i].Bytes()
		if err != nil {
			// Cancelled between the snapshot and the fetch.
			continue
		}
		job, err := decodeJob(id, raw)
		if err != nil {
			return nil, err
		}
		job.Metadata.Status = classify(id)
		doc, err := job.Project(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func mergeSet(dst, src map[string]bool) {
	for id := range src {
		dst[id] = true
	}
}
