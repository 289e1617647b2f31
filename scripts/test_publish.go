//go:build ignore

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// hubsChangedEvent повторяет формат события stream:hubs:changed
type hubsChangedEvent struct {
	EventID      uuid.UUID `json:"event_id"`
	Municipality string    `json:"municipality"`
	Action       string    `json:"action"`
	GeographyIDs []string  `json:"geography_ids"`
	OccurredAt   time.Time `json:"occurred_at"`
}

func main() {
	redisAddr := flag.String("redis", "localhost:6379", "Redis address for streams")
	municipality := flag.String("municipality", "GM0599", "Municipality code")
	action := flag.String("action", "commit", "Action name")
	ids := flag.String("ids", "", "Comma separated geography ids")
	flag.Parse()

	client := redis.NewClient(&redis.Options{
		Addr: *redisAddr,
	})
	defer client.Close()

	ctx := context.Background()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	counterKey := "hubs:refetch:" + *municipality
	before, err := client.Get(ctx, counterKey).Int64()
	if err != nil && err != redis.Nil {
		log.Fatalf("Failed to read refetch counter: %v", err)
	}

	event := hubsChangedEvent{
		EventID:      uuid.New(),
		Municipality: *municipality,
		Action:       *action,
		GeographyIDs: []string{},
		OccurredAt:   time.Now().UTC(),
	}
	if *ids != "" {
		event.GeographyIDs = strings.Split(*ids, ",")
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Fatalf("Failed to marshal event: %v", err)
	}

	result, err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: "stream:hubs:changed",
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		log.Fatalf("Failed to publish event: %v", err)
	}

	fmt.Printf("Event published\n")
	fmt.Printf("   Stream: stream:hubs:changed\n")
	fmt.Printf("   Message ID: %s\n", result)
	fmt.Printf("   Municipality: %s, action: %s\n", event.Municipality, event.Action)
	fmt.Printf("\nWaiting for %s to move past %d...\n", counterKey, before)

	timeout := time.After(30 * time.Second)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			fmt.Println("Timeout: is the invalidation worker running?")
			return
		case <-ticker.C:
			current, err := client.Get(ctx, counterKey).Int64()
			if err != nil {
				continue
			}
			if current > before {
				fmt.Printf("Hub list invalidated, refetch_count=%d\n", current)
				return
			}
		}
	}
}
