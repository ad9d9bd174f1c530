package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"pdfreader-backend/internal/model"
)

// backupTTL is how long a document's annotation mirror survives without
// being touched. A week comfortably outlives any reading session.
const backupTTL = 7 * 24 * time.Hour

// RedisClient wraps the Redis client used for the annotation backup mirror
// and short-lived AI response caching.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client
func NewRedisClient(addr, password string) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Printf("[Redis] Connected to %s", addr)
	return &RedisClient{client: client}, nil
}

func backupKey(userID, documentID int64) string {
	return fmt.Sprintf("backup:%d:%d", userID, documentID)
}

// WritePage mirrors one page's annotation list into the document's backup
// hash, keyed by page number. Each write refreshes the TTL.
func (r *RedisClient) WritePage(ctx context.Context, userID, documentID int64, page int, list []*model.Annotation) error {
	key := backupKey(userID, documentID)

	data, err := json.Marshal(list)
	if err != nil {
		return err
	}

	if err := r.client.HSet(ctx, key, strconv.Itoa(page), data).Err(); err != nil {
		log.Printf("[Redis] Failed to mirror page %d of doc %d: %v", page, documentID, err)
		return err
	}
	r.client.Expire(ctx, key, backupTTL)
	return nil
}

// ReadAll loads the full backup mirror for a document, keyed by page number.
// Fields that fail to decode are skipped rather than failing the whole read.
func (r *RedisClient) ReadAll(ctx context.Context, userID, documentID int64) (map[int][]*model.Annotation, error) {
	fields, err := r.client.HGetAll(ctx, backupKey(userID, documentID)).Result()
	if err != nil {
		return nil, err
	}

	pages := make(map[int][]*model.Annotation, len(fields))
	for field, data := range fields {
		page, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		var list []*model.Annotation
		if err := json.Unmarshal([]byte(data), &list); err != nil {
			log.Printf("[Redis] Skipping undecodable backup page %s of doc %d", field, documentID)
			continue
		}
		pages[page] = list
	}
	return pages, nil
}

// DeleteBackup removes a document's entire mirror, used when the document
// itself is deleted.
func (r *RedisClient) DeleteBackup(ctx context.Context, userID, documentID int64) error {
	return r.client.Del(ctx, backupKey(userID, documentID)).Err()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Health checks if Redis is healthy
func (r *RedisClient) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Generic Redis Operations

// Set sets a key-value pair with expiration
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

// Get gets a value by key
func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

// Del removes a key
func (r *RedisClient) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
