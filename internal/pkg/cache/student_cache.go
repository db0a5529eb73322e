// Package cache keeps recently resolved student records in Redis so that token
// resolution on every authenticated request does not hit Postgres.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/advisr/advisr-backend/internal/app/models"
)

// PrefixStudent namespaces student record keys
const PrefixStudent = "student:"

var (
	// ErrCacheMiss is returned when the requested key is not found in cache
	ErrCacheMiss = errors.New("cache: key not found")
	// ErrCacheConnection is returned when Redis cannot be reached
	ErrCacheConnection = errors.New("cache: connection failed")
	// ErrCacheSerialization is returned when an entry cannot be encoded or decoded
	ErrCacheSerialization = errors.New("cache: serialization failed")
)

// StudentCache stores student records by id. Set never replaces an entry with an
// older or equal Version, so a read-through fill racing a write cannot bring back the
// record the write superseded.
type StudentCache interface {
	Get(ctx context.Context, id int64) (*models.Student, error)
	Set(ctx context.Context, student *models.Student) error
	Invalidate(ctx context.Context, id int64) error
}

// Entries are hashes holding the record version next to the encoded record so the
// comparison runs inside Redis.
const (
	fieldVersion = "version"
	fieldData    = "data"
)

// setIfNewer writes KEYS[1] only when the stored version is missing or lower than
// ARGV[1]. ARGV[3] is the TTL in milliseconds, 0 for none. Returns 1 when written.
var setIfNewer = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], ARGV[4])
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[4], ARGV[1], ARGV[5], ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('PEXPIRE', KEYS[1], ttl)
end
return 1
`)

// Config holds Redis connection settings
type Config struct {
	Addr        string
	Password    string
	DB          int
	TTL         time.Duration
	DialTimeout time.Duration
}

// RedisStudentCache is a StudentCache backed by go-redis
type RedisStudentCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStudentCache connects to Redis and verifies the connection
func NewRedisStudentCache(ctx context.Context, cfg Config) (*RedisStudentCache, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	return &RedisStudentCache{client: client, ttl: cfg.TTL}, nil
}

// Close closes the Redis connection
func (c *RedisStudentCache) Close() error {
	return c.client.Close()
}

// Get returns the cached record or ErrCacheMiss
func (c *RedisStudentCache) Get(ctx context.Context, id int64) (*models.Student, error) {
	data, err := c.client.HGet(ctx, StudentKey(id), fieldData).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return decodeStudent(data)
}

// Set stores the record for the configured TTL unless the cache already holds the same
// or a newer version of it
func (c *RedisStudentCache) Set(ctx context.Context, student *models.Student) error {
	_, err := c.SetIfNewer(ctx, student)
	return err
}

// SetIfNewer is Set that also reports whether the entry was written
func (c *RedisStudentCache) SetIfNewer(ctx context.Context, student *models.Student) (bool, error) {
	data, err := encodeStudent(student)
	if err != nil {
		return false, err
	}

	written, err := setIfNewer.Run(ctx, c.client,
		[]string{StudentKey(student.ID)},
		student.Version, data, c.ttl.Milliseconds(), fieldVersion, fieldData,
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to store student %d: %w", student.ID, err)
	}
	return written == 1, nil
}

// Invalidate drops the cached record
func (c *RedisStudentCache) Invalidate(ctx context.Context, id int64) error {
	return c.client.Del(ctx, StudentKey(id)).Err()
}

// StudentKey returns the Redis key for a student id
func StudentKey(id int64) string {
	return PrefixStudent + strconv.FormatInt(id, 10)
}

// NoopStudentCache is used when Redis is disabled; every Get misses
type NoopStudentCache struct{}

func (NoopStudentCache) Get(context.Context, int64) (*models.Student, error) { return nil, ErrCacheMiss }
func (NoopStudentCache) Set(context.Context, *models.Student) error          { return nil }
func (NoopStudentCache) Invalidate(context.Context, int64) error             { return nil }

// entry carries the fields models.Student hides from JSON
type entry struct {
	Student        *models.Student `json:"student"`
	HashedPassword string          `json:"hashed_password"`
	Version        int64           `json:"version"`
}

func encodeStudent(student *models.Student) ([]byte, error) {
	if student == nil {
		return nil, fmt.Errorf("%w: nil student", ErrCacheSerialization)
	}
	data, err := json.Marshal(entry{
		Student:        student,
		HashedPassword: student.HashedPassword,
		Version:        student.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return data, nil
}

func decodeStudent(data []byte) (*models.Student, error) {
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	if e.Student == nil {
		return nil, fmt.Errorf("%w: empty entry", ErrCacheSerialization)
	}
	e.Student.HashedPassword = e.HashedPassword
	e.Student.Version = e.Version
	return e.Student, nil
}
