package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Redis is an instance-scoped session archive on a Redis server.
// It is safe for concurrent use.
type Redis struct {
	rdb          *redis.Client
	instanceName string
	publish      func(ctx context.Context, channel string, payload []byte) error
}

// NewRedis creates an archive client for the specified instance.
// Returns an error if instanceName is empty.
func NewRedis(redisOpts *redis.Options, instanceName string) (*Redis, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}
	r := &Redis{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}
	r.publish = func(ctx context.Context, channel string, payload []byte) error {
		return r.rdb.Publish(ctx, channel, payload).Err()
	}
	return r, nil
}

// OpenRedis parses a redis:// URL, connects and verifies the server with a ping.
func OpenRedis(ctx context.Context, url, instanceName string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	r, err := NewRedis(opts, instanceName)
	if err != nil {
		return nil, err
	}
	if err := r.Ping(ctx); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("redis not reachable at %s: %w", opts.Addr, err)
	}
	return r, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Record writes the session hash and its indexes in one transaction, then
// publishes the entry on the session events channel. A failed publish after
// the session is stored returns an error wrapping ErrNotPublished.
func (r *Redis) Record(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	hash, err := EntryToHash(e)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, SessionKey(r.instanceName, e.SessionID), hash)
		pipe.ZAdd(ctx, SessionsIndexKey(r.instanceName), redis.Z{Score: float64(e.GeneratedAtMs), Member: e.SessionID})
		pipe.SAdd(ctx, ParticipantKey(r.instanceName, e.ParticipantID), e.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write session to Redis: %w", err)
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: marshal session event: %v", ErrNotPublished, err)
	}
	if err := r.publish(ctx, SessionEventsChannel(r.instanceName), payload); err != nil {
		return fmt.Errorf("%w: %v", ErrNotPublished, err)
	}
	return nil
}

// Get retrieves a session by ID. Returns ErrNotFound if it doesn't exist.
func (r *Redis) Get(ctx context.Context, sessionID string) (*Entry, error) {
	hashData, err := r.rdb.HGetAll(ctx, SessionKey(r.instanceName, sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, ErrNotFound
	}
	e, err := HashToEntry(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize session: %w", err)
	}
	return e, nil
}

// List returns sessions in generation order. The time bounds are applied by
// the sorted-set query and the remaining criteria in memory.
func (r *Redis) List(ctx context.Context, c *Criteria) ([]*Entry, error) {
	rng := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if c != nil && c.SinceTimestampMs > 0 {
		rng.Min = strconv.FormatInt(c.SinceTimestampMs, 10)
	}
	if c != nil && c.UntilTimestampMs > 0 {
		rng.Max = strconv.FormatInt(c.UntilTimestampMs, 10)
	}

	ids, err := r.rdb.ZRangeByScore(ctx, SessionsIndexKey(r.instanceName), rng).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query session index: %w", err)
	}
	entries, err := r.fetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	return filter(entries, c), nil
}

// ForParticipant returns every session generated for participantID.
func (r *Redis) ForParticipant(ctx context.Context, participantID string) ([]*Entry, error) {
	ids, err := r.rdb.SMembers(ctx, ParticipantKey(r.instanceName, participantID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read participant index: %w", err)
	}
	entries, err := r.fetch(ctx, ids)
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	return entries, nil
}

// fetch loads session hashes in one pipeline, skipping IDs whose hash has
// since been removed.
func (r *Redis) fetch(ctx context.Context, ids []string) ([]*Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, SessionKey(r.instanceName, id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions from Redis: %w", err)
	}

	entries := make([]*Entry, 0, len(ids))
	for i, cmd := range cmds {
		hash := cmd.Val()
		if len(hash) == 0 {
			continue
		}
		e, err := HashToEntry(hash)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize session %s: %w", ids[i], err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func sortEntries(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].GeneratedAtMs != entries[j].GeneratedAtMs {
			return entries[i].GeneratedAtMs < entries[j].GeneratedAtMs
		}
		return entries[i].SessionID < entries[j].SessionID
	})
}

// Subscription represents an active Pub/Sub subscription to session events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *Entry
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of session events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *Entry {
	return s.events
}

// Errors returns the channel of subscription errors.
// The subscription continues after errors - undecodable messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe subscribes to session events for this instance. It returns once
// the server has confirmed the subscription.
//
// Events are delivered on a buffered channel (size 10). Redis Pub/Sub is
// at-most-once: a subscriber that is too slow may miss events.
func (r *Redis) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := r.rdb.Subscribe(ctx, SessionEventsChannel(r.instanceName))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to session events: %w", err)
	}

	eventsChan := make(chan *Entry, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var e Entry
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal session event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &e:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
