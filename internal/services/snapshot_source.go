package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jaredcannon/clusterview/internal/models"
	"github.com/jaredcannon/clusterview/internal/snapshot"
)

// Monitoring endpoint paths
const (
	NodeInfoPath   = "/api/node_info"
	RayletInfoPath = "/api/raylet_info"
)

// SnapshotSource fetches the two snapshots a polling tick reconciles
type SnapshotSource interface {
	FetchInventory(ctx context.Context) (*models.NodeInfoResponse, error)
	FetchRegistry(ctx context.Context) (*models.RayletInfoResponse, error)
}

// HTTPSnapshotSource reads snapshots from a monitoring endpoint over HTTP
type HTTPSnapshotSource struct {
	baseURL     string
	timeout     time.Duration
	credService *CredentialService
}

// NewHTTPSnapshotSource creates a source for the endpoint at baseURL.
// credService may be nil when the endpoint needs no authentication.
func NewHTTPSnapshotSource(baseURL string, timeout time.Duration, credService *CredentialService) *HTTPSnapshotSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSnapshotSource{
		baseURL:     strings.TrimRight(baseURL, "/"),
		timeout:     timeout,
		credService: credService,
	}
}

// BaseURL returns the endpoint the source reads from
func (s *HTTPSnapshotSource) BaseURL() string {
	return s.baseURL
}

// FetchInventory fetches and decodes the node/worker inventory
func (s *HTTPSnapshotSource) FetchInventory(ctx context.Context) (*models.NodeInfoResponse, error) {
	result, err := s.get(ctx, NodeInfoPath)
	if err != nil {
		return nil, err
	}
	return snapshot.ParseInventory(result)
}

// FetchRegistry fetches and decodes the process registry
func (s *HTTPSnapshotSource) FetchRegistry(ctx context.Context) (*models.RayletInfoResponse, error) {
	result, err := s.get(ctx, RayletInfoPath)
	if err != nil {
		return nil, err
	}
	return snapshot.ParseRegistry(result)
}

// get performs a GET and returns the unwrapped result payload
func (s *HTTPSnapshotSource) get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var authorization string
	if s.credService != nil {
		header, err := s.credService.AuthorizationFor(s.baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to load endpoint credentials: %w", err)
		}
		authorization = header
	}

	url := s.baseURL + path
	agent := fiber.Get(url)
	agent.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if authorization != "" {
		agent.Set(fiber.HeaderAuthorization, authorization)
	}
	agent.Timeout(s.requestTimeout(ctx))

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, models.NewUpstreamError(url, fmt.Errorf("request failed: %w", errs[0]))
	}
	if code != fiber.StatusOK {
		return nil, models.NewUpstreamError(url, fmt.Errorf("unexpected status %d", code))
	}

	result, _, err := snapshot.DecodeEnvelope(body)
	if err != nil {
		return nil, models.NewUpstreamError(url, err)
	}
	return result, nil
}

// requestTimeout is the configured timeout, shortened to the context deadline
func (s *HTTPSnapshotSource) requestTimeout(ctx context.Context) time.Duration {
	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	return timeout
}
