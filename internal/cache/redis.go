package cache

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"portal-rest-api/internal/model"
	"portal-rest-api/pkg/uid"

	"github.com/redis/go-redis/v9"
)

// Buffer configuration
const (
	MaxBatchSize    = 50
	FlushTimeout    = 60 * time.Second
	RepairInterval  = 5 * time.Minute
	DefaultKeyspace = "portal:feedback"
)

// FlushFunc is called to persist buffered feedback to the backend.
type FlushFunc func(ctx context.Context, items []*model.BufferedFeedback) error

// RedisFeedbackBuffer absorbs citizen-feedback submissions in Redis and writes
// them to the backend in batches, so intake keeps working while the backend
// is slow or briefly unavailable.
type RedisFeedbackBuffer struct {
	client       *redis.Client
	flushFunc    FlushFunc
	flushTicker  *time.Ticker
	repairTicker *time.Ticker
	stop         chan struct{}
	stopOnce     sync.Once
	done         sync.WaitGroup
	keyPrefix    string
}

// RedisBufferConfig holds configuration for the Redis buffer.
type RedisBufferConfig struct {
	FlushInterval time.Duration
	KeyPrefix     string
}

// NewRedisFeedbackBuffer creates a Redis-backed feedback buffer on an
// existing client and starts its background flush.
func NewRedisFeedbackBuffer(client *redis.Client, cfg RedisBufferConfig, flushFunc FlushFunc) (*RedisFeedbackBuffer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = DefaultKeyspace
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 30 * time.Second
	}

	b := &RedisFeedbackBuffer{
		client:       client,
		flushFunc:    flushFunc,
		flushTicker:  time.NewTicker(cfg.FlushInterval),
		repairTicker: time.NewTicker(RepairInterval),
		stop:         make(chan struct{}),
		keyPrefix:    keyPrefix,
	}

	b.done.Add(2)
	go b.backgroundFlush()
	go b.backgroundRepair()

	log.Printf("[RedisFeedbackBuffer] Started - prefix:%s, flush:%v, batch:%d",
		keyPrefix, cfg.FlushInterval, MaxBatchSize)
	return b, nil
}

func (b *RedisFeedbackBuffer) bufferKey() string {
	return b.keyPrefix + ":buffer"
}

func (b *RedisFeedbackBuffer) pendingKey() string {
	return b.keyPrefix + ":pending"
}

// Add buffers a submission in Redis.
func (b *RedisFeedbackBuffer) Add(ctx context.Context, fb model.Feedback) error {
	data := &model.BufferedFeedback{
		Key:        uid.New(),
		Feedback:   fb,
		ReceivedAt: time.Now(),
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	pipe := b.client.Pipeline()
	pipe.HSet(ctx, b.bufferKey(), data.Key, jsonData)
	pipe.SAdd(ctx, b.pendingKey(), data.Key)
	_, err = pipe.Exec(ctx)
	return err
}

// Count returns the number of pending submissions.
func (b *RedisFeedbackBuffer) Count(ctx context.Context) (int64, error) {
	return b.client.SCard(ctx, b.pendingKey()).Result()
}

// FlushBatch writes up to MaxBatchSize submissions to the backend.
func (b *RedisFeedbackBuffer) FlushBatch(ctx context.Context) (int, error) {
	keys, err := b.client.SRandMemberN(ctx, b.pendingKey(), MaxBatchSize).Result()
	if err != nil {
		return 0, err
	}

	if len(keys) == 0 {
		return 0, nil
	}

	items := make([]*model.BufferedFeedback, 0, len(keys))
	for _, key := range keys {
		data, err := b.client.HGet(ctx, b.bufferKey(), key).Bytes()
		if err == redis.Nil {
			b.client.SRem(ctx, b.pendingKey(), key)
			continue
		}
		if err != nil {
			log.Printf("[RedisFeedbackBuffer] Error getting %s: %v", key, err)
			continue
		}

		var item model.BufferedFeedback
		if err := json.Unmarshal(data, &item); err != nil {
			log.Printf("[RedisFeedbackBuffer] Dropping unreadable %s: %v", key, err)
			b.client.HDel(ctx, b.bufferKey(), key)
			b.client.SRem(ctx, b.pendingKey(), key)
			continue
		}
		items = append(items, &item)
	}

	if len(items) == 0 {
		return 0, nil
	}

	if err := b.flushFunc(ctx, items); err != nil {
		log.Printf("[RedisFeedbackBuffer] Flush error: %v", err)
		return 0, err
	}

	pipe := b.client.Pipeline()
	for _, item := range items {
		pipe.HDel(ctx, b.bufferKey(), item.Key)
		pipe.SRem(ctx, b.pendingKey(), item.Key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[RedisFeedbackBuffer] Error clearing Redis: %v", err)
	}

	log.Printf("[RedisFeedbackBuffer] Flushed %d submissions", len(items))
	return len(items), nil
}

// Repair drops pending markers whose payload is gone.
func (b *RedisFeedbackBuffer) Repair(ctx context.Context) (int, error) {
	keys, err := b.client.SMembers(ctx, b.pendingKey()).Result()
	if err != nil {
		return 0, err
	}

	repaired := 0
	pipe := b.client.Pipeline()
	for _, key := range keys {
		exists, err := b.client.HExists(ctx, b.bufferKey(), key).Result()
		if err != nil {
			continue
		}
		if !exists {
			pipe.SRem(ctx, b.pendingKey(), key)
			repaired++
		}
	}

	if repaired > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, err
		}
		log.Printf("[RedisFeedbackBuffer] Repaired %d orphaned markers", repaired)
	}
	return repaired, nil
}

func (b *RedisFeedbackBuffer) backgroundFlush() {
	defer b.done.Done()
	for {
		select {
		case <-b.flushTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), FlushTimeout)
			if _, err := b.FlushBatch(ctx); err != nil {
				log.Printf("[RedisFeedbackBuffer] Background flush error: %v", err)
			}
			cancel()
		case <-b.stop:
			log.Printf("[RedisFeedbackBuffer] Shutdown: flushing remaining submissions...")
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			for {
				flushed, err := b.FlushBatch(ctx)
				if err != nil || flushed == 0 {
					break
				}
			}
			cancel()
			return
		}
	}
}

func (b *RedisFeedbackBuffer) backgroundRepair() {
	defer b.done.Done()
	for {
		select {
		case <-b.repairTicker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			_, _ = b.Repair(ctx)
			cancel()
		case <-b.stop:
			return
		}
	}
}

// Close stops the buffer after a final flush. The client is owned by the
// caller and left open.
func (b *RedisFeedbackBuffer) Close() error {
	b.stopOnce.Do(func() {
		b.flushTicker.Stop()
		b.repairTicker.Stop()
		close(b.stop)
	})
	b.done.Wait()
	return nil
}
