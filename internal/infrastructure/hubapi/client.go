package hubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/policyhub-service/internal/config"
	"github.com/policyhub-service/internal/domain"
	"github.com/policyhub-service/internal/domain/repository"
	"github.com/policyhub-service/internal/metrics"
	"github.com/policyhub-service/internal/pkg/errors"
	"github.com/policyhub-service/internal/usecase"
)

// ActorHeader передаёт автора изменения удалённому сервису
const ActorHeader = "X-Actor"

type client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *zap.Logger
}

// NewClient создаёт HubRepository поверх удалённого API хабов
func NewClient(cfg *config.HubAPIConfig, logger *zap.Logger) repository.HubRepository {
	return &client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		logger:  logger,
	}
}

// envelope - формат ответа сервиса: {"data": ..., "error": {...}}
type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *errors.AppError `json:"error"`
}

type geographyIDsRequest struct {
	GeographyIDs []string `json:"geography_ids"`
}

type importRequest struct {
	Municipality string             `json:"municipality"`
	Zones        []domain.DraftZone `json:"zones"`
}

func (c *client) FetchHubs(ctx context.Context, municipality string) ([]domain.Hub, error) {
	path := "/api/v1/hubs?municipality=" + url.QueryEscape(municipality)

	var hubs []domain.Hub
	if err := c.do(ctx, http.MethodGet, path, "", nil, &hubs); err != nil {
		return nil, err
	}
	if hubs == nil {
		hubs = []domain.Hub{}
	}
	return hubs, nil
}

func (c *client) Commit(ctx context.Context, geographyIDs []string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/hubs/commit", geographyIDsRequest{GeographyIDs: geographyIDs}, nil)
}

func (c *client) MakeConcept(ctx context.Context, geographyIDs []string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/hubs/make-concept", geographyIDsRequest{GeographyIDs: geographyIDs}, nil)
}

func (c *client) DeriveConcept(ctx context.Context, geographyIDs []string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/hubs/derive-concept", geographyIDsRequest{GeographyIDs: geographyIDs}, nil)
}

func (c *client) ProposeRetirement(ctx context.Context, geographyIDs []string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/hubs/propose-retirement", geographyIDsRequest{GeographyIDs: geographyIDs}, nil)
}

func (c *client) SaveHub(ctx context.Context, hub domain.Hub) (*domain.Hub, error) {
	var saved domain.Hub
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/hubs", hub, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (c *client) PreprocessGeometryPackage(ctx context.Context, municipality string, file []byte) ([]domain.DraftImportZone, error) {
	path := "/api/v1/hubs/import/preprocess?municipality=" + url.QueryEscape(municipality)

	var drafts []domain.DraftImportZone
	if err := c.do(ctx, http.MethodPost, path, "application/geo+json", file, &drafts); err != nil {
		return nil, err
	}
	return drafts, nil
}

func (c *client) ImportGeometryPackage(ctx context.Context, municipality string, zones []domain.DraftZone) (*domain.ImportResult, error) {
	result := domain.NewImportResult()
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/hubs/import", importRequest{
		Municipality: municipality,
		Zones:        zones,
	}, result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.ErrInvalidRequest.WithMessage("failed to encode request: %v", err)
	}
	return c.do(ctx, method, path, "application/json", payload, out)
}

// do выполняет запрос и раскладывает ответ. Ошибки сервиса восстанавливаются
// в сентинелы по коду, транспортные сбои становятся ErrUpstreamError.
func (c *client) do(ctx context.Context, method, path, contentType string, body []byte, out interface{}) error {
	start := time.Now()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		c.logger.Error("Failed to create request", zap.String("path", path), zap.Error(err))
		return errors.ErrUpstreamError.WithMessage("failed to create request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(ActorHeader, usecase.ActorFromContext(ctx))
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("Calling hub API",
		zap.String("method", method),
		zap.String("path", path))

	metrics.HubAPIRequestsTotal.WithLabelValues("sent").Inc()
	resp, err := c.httpClient.Do(req)
	metrics.HubAPIDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.HubAPIRequestsTotal.WithLabelValues("transport_error").Inc()
		c.logger.Error("Hub API request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return errors.ErrUpstreamError.WithMessage("hub API request failed: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.ErrUpstreamError.WithMessage("failed to read hub API response: %v", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Error("Hub API returned non-JSON response",
			zap.Int("status_code", resp.StatusCode),
			zap.String("body", truncate(raw, 512)))
		return errors.ErrUpstreamError.WithMessage("hub API error: status %d", resp.StatusCode)
	}

	if resp.StatusCode >= http.StatusBadRequest || env.Error != nil {
		metrics.HubAPIRequestsTotal.WithLabelValues("rejected").Inc()
		appErr := remoteError(resp.StatusCode, env.Error)
		c.logger.Warn("Hub API returned error",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("code", appErr.Code))
		return appErr
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			c.logger.Error("Failed to decode hub API response", zap.String("path", path), zap.Error(err))
			return errors.ErrUpstreamError.WithMessage("failed to decode response: %v", err)
		}
	}

	metrics.HubAPIRequestsTotal.WithLabelValues("ok").Inc()
	c.logger.Debug("Hub API call successful",
		zap.String("path", path),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	return nil
}

// remoteError восстанавливает ошибку сервиса так, чтобы errors.Is совпадал
// с локальными сентинелами
func remoteError(status int, remote *errors.AppError) *errors.AppError {
	if remote == nil {
		return errors.ErrUpstreamError.WithMessage("hub API error: status %d", status)
	}
	sentinel, ok := errors.Lookup(remote.Code)
	if !ok {
		return errors.ErrUpstreamError.WithMessage("%s: %s", remote.Code, remote.Message)
	}
	out := sentinel.WithDetails(remote.Details)
	if remote.Message != "" {
		out = out.WithMessage("%s", remote.Message)
	}
	return out
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return fmt.Sprintf("%s...", b[:n])
}
