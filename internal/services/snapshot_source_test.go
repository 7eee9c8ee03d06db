package services

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jaredcannon/clusterview/internal/models"
	"github.com/jaredcannon/clusterview/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNodeInfoBody = `{
	"result": {
		"clients": [
			{"ip": "10.0.0.1", "hostname": "head", "workers": [{"pid": 1}, {"pid": 2}]}
		],
		"log_counts": {"10.0.0.1": {"1": 3}},
		"error_counts": {}
	},
	"timestamp": 1700000000.5,
	"error": null
}`

const testRayletInfoBody = `{
	"result": {
		"nodes": {
			"10.0.0.1": {"nodeId": "abc", "workersStats": [{"pid": 1}]}
		}
	},
	"timestamp": 1700000000.5,
	"error": null
}`

// startMonitorEndpoint serves the given handlers on a random local port
func startMonitorEndpoint(t *testing.T, setup func(app *fiber.App)) string {
	app := fiber.New(fiber.Config{DisableStartupMessage: true, Immutable: true})
	setup(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go app.Listener(ln)
	t.Cleanup(func() {
		app.Shutdown()
	})

	return "http://" + ln.Addr().String()
}

func TestHTTPSnapshotSource_Fetch(t *testing.T) {
	var gotAuth string
	baseURL := startMonitorEndpoint(t, func(app *fiber.App) {
		app.Get(NodeInfoPath, func(c *fiber.Ctx) error {
			gotAuth = c.Get(fiber.HeaderAuthorization)
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.SendString(testNodeInfoBody)
		})
		app.Get(RayletInfoPath, func(c *fiber.Ctx) error {
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.SendString(testRayletInfoBody)
		})
	})

	credService := setupCredService(t)
	require.NoError(t, credService.StoreCredentials(baseURL, &EndpointCredentials{
		Type:  CredentialTypeToken,
		Token: "secret-token",
	}))

	source := NewHTTPSnapshotSource(baseURL+"/", time.Second, credService)
	assert.Equal(t, baseURL, source.BaseURL())

	inventory, err := source.FetchInventory(context.Background())
	require.NoError(t, err)
	require.Len(t, inventory.Clients, 1)
	assert.Equal(t, "head", inventory.Clients[0].Hostname)
	assert.Len(t, inventory.Clients[0].Workers, 2)
	assert.Equal(t, 3, inventory.LogCounts["10.0.0.1"]["1"])
	assert.Equal(t, "Bearer secret-token", gotAuth)

	registry, err := source.FetchRegistry(context.Background())
	require.NoError(t, err)
	require.Contains(t, registry.Nodes, "10.0.0.1")
	assert.Equal(t, "abc", registry.Nodes["10.0.0.1"].NodeID)
}

func TestHTTPSnapshotSource_UpstreamErrors(t *testing.T) {
	baseURL := startMonitorEndpoint(t, func(app *fiber.App) {
		app.Get(NodeInfoPath, func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusServiceUnavailable).SendString("down")
		})
		app.Get(RayletInfoPath, func(c *fiber.Ctx) error {
			return c.SendString(`{"result": null, "timestamp": 0, "error": "raylet unreachable"}`)
		})
	})

	source := NewHTTPSnapshotSource(baseURL, time.Second, nil)

	_, err := source.FetchInventory(context.Background())
	require.Error(t, err)
	var apiErr *models.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, models.ErrCodeUpstreamUnavailable, apiErr.Code)
	assert.Contains(t, err.Error(), "unexpected status 503")

	_, err = source.FetchRegistry(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, snapshot.ErrUpstream))
}

func TestHTTPSnapshotSource_Unreachable(t *testing.T) {
	// Grab a free port and close it so nothing is listening
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	source := NewHTTPSnapshotSource("http://"+addr, 200*time.Millisecond, nil)

	_, err = source.FetchInventory(context.Background())
	require.Error(t, err)
	var apiErr *models.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, models.ErrCodeUpstreamUnavailable, apiErr.Code)
}

func TestHTTPSnapshotSource_CancelledContext(t *testing.T) {
	source := NewHTTPSnapshotSource("http://127.0.0.1:1", time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := source.FetchRegistry(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestHTTPSnapshotSource_DefaultTimeout(t *testing.T) {
	source := NewHTTPSnapshotSource("http://127.0.0.1:8265", 0, nil)
	assert.Equal(t, 5*time.Second, source.timeout)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.LessOrEqual(t, source.requestTimeout(ctx), 100*time.Millisecond)
}
