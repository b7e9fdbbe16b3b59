package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Abraxas-365/workq/pkg/config"
	"github.com/Abraxas-365/workq/pkg/logx"
	"github.com/redis/go-redis/v9"
)

// Manager lets one worker serve several queues, possibly across systems.
// Every queue it holds shares the manager's identity, so the worker shows
// up under the same id everywhere.
type Manager struct {
	rdb      redis.UniversalClient
	opts     options
	identity Identity

	mu        sync.RWMutex
	queues    map[string]*Queue // "system|queue" -> Queue
	byPending map[string]*Queue // pending key -> Queue
	pending   []string          // registration order
}

// NewManager creates an empty manager; its identity is fixed here.
func NewManager(rdb redis.UniversalClient, opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	id := o.resolveIdentity()
	o.identity = &id
	return &Manager{
		rdb:       rdb,
		opts:      o,
		identity:  id,
		queues:    make(map[string]*Queue),
		byPending: make(map[string]*Queue),
	}
}

// Identity is the worker identity shared by all managed queues.
func (m *Manager) Identity() Identity { return m.identity }

// Add registers (system, name). Adding the same pair twice returns the
// queue registered first.
func (m *Manager) Add(system, name string) *Queue {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := system + separator + name
	if q, ok := m.queues[id]; ok {
		return q
	}

	q := &Queue{
		rdb:      m.rdb,
		system:   system,
		name:     name,
		keys:     newKeys(system, name),
		identity: m.identity,
		clientID: m.identity.String(),
		opts:     m.opts,
	}
	m.queues[id] = q
	m.byPending[q.keys.pending] = q
	m.pending = append(m.pending, q.keys.pending)
	return q
}

// AddList registers every pair.
func (m *Manager) AddList(pairs []config.QueuePair) []*Queue {
	out := make([]*Queue, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, m.Add(p.System, p.Queue))
	}
	return out
}

// Get returns a registered queue.
func (m *Manager) Get(system, name string) (*Queue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queues[system+separator+name]
	if !ok {
		return nil, queueErrors.New(ErrQueueNotFound).
			WithDetail("system", system).
			WithDetail("queue", name)
	}
	return q, nil
}

// Queues returns the registered queues sorted by system then name.
func (m *Manager) Queues() []*Queue {
	m.mu.RLock()
	out := make([]*Queue, 0, len(m.queues))
	for _, q := range m.queues {
		out = append(out, q)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].system != out[j].system {
			return out[i].system < out[j].system
		}
		return out[i].name < out[j].name
	})
	return out
}

func (m *Manager) snapshot() ([]*Queue, []string, map[string]*Queue) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	queues := make([]*Queue, 0, len(m.pending))
	owners := make(map[string]*Queue, len(m.byPending))
	for _, key := range m.pending {
		q := m.byPending[key]
		queues = append(queues, q)
		owners[key] = q
	}
	return queues, append([]string(nil), m.pending...), owners
}

// Pop refreshes the heartbeat on every queue, then blocks once over all
// pending lists. The job is claimed through the queue that owns the list
// it came from.
func (m *Manager) Pop(ctx context.Context, timeout time.Duration) (Delivery, error) {
	queues, pendingKeys, owners := m.snapshot()
	if len(queues) == 0 {
		return Delivery{}, queueErrors.New(ErrNoQueues)
	}

	now := formatTime(m.opts.clock())
	clientID := m.identity.String()
	_, err := m.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, q := range queues {
			pipe.HSet(ctx, q.keys.activity, clientID, now)
		}
		return nil
	})
	if err != nil {
		return Delivery{}, storeError("heartbeat", err)
	}

	res, err := m.rdb.BRPop(ctx, timeout, pendingKeys...).Result()
	if errors.Is(err, redis.Nil) {
		return Delivery{Outcome: TimedOut}, nil
	}
	if err != nil {
		return Delivery{}, storeError("pop", err)
	}

	q, ok := owners[res[0]]
	if !ok {
		return Delivery{}, queueErrors.New(ErrQueueNotFound).WithDetail("key", res[0])
	}
	logx.WithFields(logx.Fields{"jobid": res[1], "queue": q.name, "system": q.system}).
		Debug("queue: popped job")
	return q.activate(ctx, res[1])
}

// Requeue sweeps every queue with the configured staleness threshold and
// returns the requeued ids of all of them.
func (m *Manager) Requeue(ctx context.Context) ([]string, error) {
	queues, _, _ := m.snapshot()
	var all []string
	for _, q := range queues {
		ids, err := q.Requeue(ctx, m.opts.requeueTimeout)
		if err != nil {
			return all, err
		}
		all = append(all, ids...)
	}
	return all, nil
}

// Exit deregisters the shared identity from every queue.
func (m *Manager) Exit(ctx context.Context) error {
	queues, _, _ := m.snapshot()
	var firstErr error
	for _, q := range queues {
		if err := q.Exit(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
