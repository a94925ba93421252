// Package cache содержит кэш курсов на Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mmeshcher/coursehub-system/internal/model"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss возвращается, если курса нет в кэше.
var ErrCacheMiss = errors.New("cache miss")

const courseTTL = 60 * time.Second

// CourseCache кэширует карточки курсов в Redis.
type CourseCache struct {
	rdb *redis.Client
}

// NewCourseCache создаёт кэш курсов и проверяет подключение к Redis.
func NewCourseCache(addr string) (*CourseCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &CourseCache{rdb: rdb}, nil
}

func courseKey(id int64) string {
	return fmt.Sprintf("course:%d", id)
}

// Get возвращает курс из кэша либо ErrCacheMiss.
func (c *CourseCache) Get(ctx context.Context, id int64) (*model.Course, error) {
	data, err := c.rdb.Get(ctx, courseKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get course from cache: %w", err)
	}

	var course model.Course
	if err := json.Unmarshal(data, &course); err != nil {
		return nil, fmt.Errorf("unmarshal cached course: %w", err)
	}

	return &course, nil
}

// Set сохраняет курс в кэш с коротким TTL.
func (c *CourseCache) Set(ctx context.Context, course *model.Course) error {
	data, err := json.Marshal(course)
	if err != nil {
		return fmt.Errorf("marshal course: %w", err)
	}
	if err := c.rdb.Set(ctx, courseKey(course.ID), data, courseTTL).Err(); err != nil {
		return fmt.Errorf("set course in cache: %w", err)
	}
	return nil
}

// Invalidate удаляет курс из кэша.
func (c *CourseCache) Invalidate(ctx context.Context, id int64) error {
	if err := c.rdb.Del(ctx, courseKey(id)).Err(); err != nil {
		return fmt.Errorf("delete course from cache: %w", err)
	}
	return nil
}

// Close закрывает подключение к Redis.
func (c *CourseCache) Close() error {
	return c.rdb.Close()
}
