package invalidation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/domain/repository"
	"github.com/policyhub-service/internal/metrics"
	"github.com/policyhub-service/internal/worker"
)

const errorPause = time.Second

// MunicipalityInvalidator - локальные справочники, которые надо пометить
// устаревшими (реестр рабочих пространств API)
type MunicipalityInvalidator interface {
	InvalidateMunicipality(municipality string) bool
}

// Options - параметры воркера инвалидации
type Options struct {
	ConsumerGroup string
	ConsumerName  string
	BatchSize     int
	MaxRetries    int
	IdlePause     time.Duration
	RetryBackoff  time.Duration
}

// HubInvalidationWorker читает stream:hubs:changed, сбрасывает кеш списков
// хабов и увеличивает счётчик перезагрузки муниципалитета
type HubInvalidationWorker struct {
	*worker.BaseWorker
	streamRepo   repository.StreamRepository
	cache        repository.CacheRepository
	directories  MunicipalityInvalidator
	consumerName string
	opts         Options
}

// NewHubInvalidationWorker создает воркер. directories может быть nil
// (отдельный процесс воркера без рабочих пространств).
func NewHubInvalidationWorker(
	streamRepo repository.StreamRepository,
	cache repository.CacheRepository,
	directories MunicipalityInvalidator,
	opts Options,
	logger *zap.Logger,
) *HubInvalidationWorker {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.IdlePause <= 0 {
		opts.IdlePause = 100 * time.Millisecond
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 200 * time.Millisecond
	}

	return &HubInvalidationWorker{
		BaseWorker:   worker.NewBaseWorker("hub-invalidation", domain.StreamHubsChanged, opts.ConsumerGroup, logger),
		streamRepo:   streamRepo,
		cache:        cache,
		directories:  directories,
		consumerName: opts.ConsumerName,
		opts:         opts,
	}
}

// Start запускает воркер
func (w *HubInvalidationWorker) Start(ctx context.Context) error {
	logger := w.Logger()
	logger.Info("Starting HubInvalidationWorker",
		zap.String("consumer_group", w.ConsumerGroup()),
		zap.String("consumer_name", w.consumerName),
		zap.Int("batch_size", w.opts.BatchSize))

	if err := w.streamRepo.CreateConsumerGroup(ctx, w.Stream(), w.ConsumerGroup()); err != nil {
		logger.Error("Failed to create consumer group", zap.Error(err))
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	for {
		select {
		case <-w.StopChan():
			logger.Info("Worker stopped")
			return nil

		case <-ctx.Done():
			logger.Info("Context cancelled")
			return ctx.Err()

		default:
			processed, err := w.processBatch(ctx)
			if err != nil {
				logger.Error("Failed to process batch", zap.Error(err))
				w.pause(ctx, errorPause)
				continue
			}
			if processed == 0 {
				w.pause(ctx, w.opts.IdlePause)
			}
		}
	}
}

func (w *HubInvalidationWorker) pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	case <-w.StopChan():
	}
}

// processBatch обрабатывает сообщения и возвращает их количество.
// Каждое прочитанное сообщение подтверждается: ">" не перечитывает PEL.
func (w *HubInvalidationWorker) processBatch(ctx context.Context) (int, error) {
	logger := w.Logger()

	messages, err := w.streamRepo.ConsumeBatch(ctx, w.Stream(), w.ConsumerGroup(), w.consumerName, w.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to consume batch: %w", err)
	}
	if len(messages) == 0 {
		return 0, nil
	}

	ack := make([]string, 0, len(messages))
	// одно событие на муниципалитет достаточно для всего батча
	done := make(map[string]bool)

	for _, msg := range messages {
		event, err := parseMessage(msg)
		if err != nil {
			logger.Warn("Failed to parse message, skipping",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			metrics.StreamEventsTotal.WithLabelValues("malformed").Inc()
			ack = append(ack, msg.ID)
			continue
		}

		if done[event.Municipality] {
			metrics.StreamEventsTotal.WithLabelValues("coalesced").Inc()
			ack = append(ack, msg.ID)
			continue
		}

		if err := w.invalidateWithRetry(ctx, event); err != nil {
			// Кеш всё равно истечёт по TTL
			logger.Error("Invalidation failed, dropping event",
				zap.String("message_id", msg.ID),
				zap.String("municipality", event.Municipality),
				zap.Error(err))
			metrics.StreamEventsTotal.WithLabelValues("dropped").Inc()
			ack = append(ack, msg.ID)
			continue
		}

		done[event.Municipality] = true
		metrics.StreamEventsTotal.WithLabelValues("processed").Inc()
		ack = append(ack, msg.ID)
	}

	if len(ack) > 0 {
		if err := w.streamRepo.AckMessages(ctx, w.Stream(), w.ConsumerGroup(), ack); err != nil {
			// Не критично: повторная инвалидация идемпотентна
			logger.Error("Failed to ack messages", zap.Error(err))
		}
	}

	logger.Debug("Batch processed",
		zap.Int("messages", len(messages)),
		zap.Int("acked", len(ack)),
		zap.Int("municipalities", len(done)))
	return len(messages), nil
}

// invalidateWithRetry делает до MaxRetries попыток с линейной паузой
func (w *HubInvalidationWorker) invalidateWithRetry(ctx context.Context, event *domain.HubsChangedEvent) error {
	var err error
	for attempt := 1; attempt <= w.opts.MaxRetries; attempt++ {
		if err = w.invalidate(ctx, event); err == nil {
			return nil
		}
		if attempt < w.opts.MaxRetries {
			metrics.StreamEventsTotal.WithLabelValues("retry").Inc()
			w.Logger().Warn("Invalidation failed, retrying",
				zap.String("municipality", event.Municipality),
				zap.Int("attempt", attempt),
				zap.Error(err))
			w.pause(ctx, time.Duration(attempt)*w.opts.RetryBackoff)
		}
	}
	return err
}

func (w *HubInvalidationWorker) invalidate(ctx context.Context, event *domain.HubsChangedEvent) error {
	count, err := w.cache.InvalidateHubs(ctx, event.Municipality)
	if err != nil {
		return err
	}
	metrics.InvalidationsTotal.WithLabelValues("stream").Inc()

	local := false
	if w.directories != nil {
		local = w.directories.InvalidateMunicipality(event.Municipality)
	}

	w.Logger().Info("Hub list invalidated",
		zap.String("municipality", event.Municipality),
		zap.String("action", event.Action),
		zap.Strings("geography_ids", event.GeographyIDs),
		zap.Int64("refetch_count", count),
		zap.Bool("local_directory", local))
	return nil
}

func parseMessage(msg domain.StreamMessage) (*domain.HubsChangedEvent, error) {
	var event domain.HubsChangedEvent
	if err := json.Unmarshal([]byte(msg.Data), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	if !event.Valid() {
		return nil, fmt.Errorf("event misses municipality or action")
	}
	return &event, nil
}
