package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jaredcannon/clusterview/internal/aggregate"
	"github.com/jaredcannon/clusterview/internal/metrics"
	"github.com/jaredcannon/clusterview/internal/models"
	"gorm.io/gorm"
)

// Websocket channel and event used for view updates
const (
	ClusterChannel          = "cluster"
	EventClusterViewUpdated = "cluster_view_updated"
)

// ErrTickSuperseded is returned when a newer tick published first
var ErrTickSuperseded = errors.New("polling tick superseded by a newer one")

// ClusterMonitorService polls the monitoring endpoint and publishes the
// reconciled cluster view
type ClusterMonitorService struct {
	db              *gorm.DB
	source          SnapshotSource
	pollInterval    time.Duration
	fetchTimeout    time.Duration
	retentionPeriod time.Duration
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	running         bool
	mu              sync.RWMutex
	broadcastFunc   func(channel, event string, data interface{})

	// Ticks are numbered when they start; only a tick newer than the last
	// applied one may publish. publishMu is held from apply through broadcast
	// so publications leave in tick order.
	tickSeq    atomic.Uint64
	publishMu  sync.Mutex
	viewMu     sync.RWMutex
	view       *models.ClusterView
	appliedSeq uint64

	// Observability
	lastPollTime        time.Time
	lastPollDuration    time.Duration
	lastSuccessTime     time.Time
	lastError           string
	consecutiveFailures int
	totalPollsRun       int64
	totalApplied        int64
	totalSuperseded     int64
	totalErrors         int64
	metricsMu           sync.RWMutex
}

// ClusterMonitorConfig holds configuration for the monitor
type ClusterMonitorConfig struct {
	PollInterval    time.Duration // How often to poll the endpoint (default: 2s)
	FetchTimeout    time.Duration // Deadline for both snapshot fetches (default: 5s)
	RetentionPeriod time.Duration // How long to keep samples (default: 24h)
}

// NewClusterMonitorService creates a new cluster monitor
func NewClusterMonitorService(db *gorm.DB, source SnapshotSource, config *ClusterMonitorConfig) *ClusterMonitorService {
	if config == nil {
		config = &ClusterMonitorConfig{}
	}

	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	fetchTimeout := config.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 5 * time.Second
	}
	retention := config.RetentionPeriod
	if retention <= 0 {
		retention = 24 * time.Hour
	}

	return &ClusterMonitorService{
		db:              db,
		source:          source,
		pollInterval:    pollInterval,
		fetchTimeout:    fetchTimeout,
		retentionPeriod: retention,
	}
}

// SetBroadcastFunc sets the WebSocket broadcast function
func (cms *ClusterMonitorService) SetBroadcastFunc(fn func(channel, event string, data interface{})) {
	cms.mu.Lock()
	defer cms.mu.Unlock()
	cms.broadcastFunc = fn
}

// Start begins polling
func (cms *ClusterMonitorService) Start() error {
	cms.mu.Lock()
	defer cms.mu.Unlock()

	if cms.running {
		return fmt.Errorf("cluster monitor is already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cms.cancel = cancel
	cms.running = true

	cms.wg.Add(1)
	go cms.monitoringLoop(ctx)

	log.Printf("[ClusterMonitor] Started (interval %v, fetch timeout %v)", cms.pollInterval, cms.fetchTimeout)
	return nil
}

// Stop cancels the loop and waits for the in-flight tick
func (cms *ClusterMonitorService) Stop() error {
	cms.mu.Lock()
	defer cms.mu.Unlock()

	if !cms.running {
		return fmt.Errorf("cluster monitor is not running")
	}

	if cms.cancel != nil {
		cms.cancel()
	}

	done := make(chan struct{})
	go func() {
		cms.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[ClusterMonitor] Stopped")
	case <-time.After(10 * time.Second):
		return fmt.Errorf("timeout waiting for cluster monitor to stop")
	}

	cms.running = false
	return nil
}

// IsRunning returns whether the poll loop is active
func (cms *ClusterMonitorService) IsRunning() bool {
	cms.mu.RLock()
	defer cms.mu.RUnlock()
	return cms.running
}

// MonitoringStatus represents the health and counters of the monitor
type MonitoringStatus struct {
	Running             bool       `json:"running"`
	LastPollTime        *time.Time `json:"last_poll_time,omitempty"`
	LastPollDuration    string     `json:"last_poll_duration,omitempty"`
	LastSuccessTime     *time.Time `json:"last_success_time,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	TotalPollsRun       int64      `json:"total_polls_run"`
	TotalApplied        int64      `json:"total_applied"`
	TotalSuperseded     int64      `json:"total_superseded"`
	TotalErrors         int64      `json:"total_errors"`
	SuccessRate         float64    `json:"success_rate"`
	TimeSinceLastPoll   string     `json:"time_since_last_poll,omitempty"`
	Healthy             bool       `json:"healthy"` // Running, recently applied and not failing
	HealthMessage       string     `json:"health_message,omitempty"`
}

// GetStatus returns detailed status and counters for the monitor
func (cms *ClusterMonitorService) GetStatus() *MonitoringStatus {
	cms.mu.RLock()
	running := cms.running
	cms.mu.RUnlock()

	cms.metricsMu.RLock()
	defer cms.metricsMu.RUnlock()

	status := &MonitoringStatus{
		Running:             running,
		LastError:           cms.lastError,
		ConsecutiveFailures: cms.consecutiveFailures,
		TotalPollsRun:       cms.totalPollsRun,
		TotalApplied:        cms.totalApplied,
		TotalSuperseded:     cms.totalSuperseded,
		TotalErrors:         cms.totalErrors,
	}

	if !cms.lastPollTime.IsZero() {
		lastPoll := cms.lastPollTime
		status.LastPollTime = &lastPoll
		status.LastPollDuration = cms.lastPollDuration.String()
		status.TimeSinceLastPoll = time.Since(lastPoll).String()
	}
	if !cms.lastSuccessTime.IsZero() {
		lastSuccess := cms.lastSuccessTime
		status.LastSuccessTime = &lastSuccess
	}

	// Superseded ticks fetched fine, they just lost the race
	if cms.totalPollsRun > 0 {
		succeeded := cms.totalPollsRun - cms.totalErrors
		status.SuccessRate = float64(succeeded) / float64(cms.totalPollsRun) * 100
	}

	if !running {
		status.Healthy = false
		status.HealthMessage = "Cluster monitor is not running"
	} else if cms.lastSuccessTime.IsZero() {
		status.Healthy = false
		if cms.lastError != "" {
			status.HealthMessage = "No view published yet: " + cms.lastError
		} else {
			status.HealthMessage = "No polls completed yet"
		}
	} else {
		maxAge := cms.pollInterval * 2
		if maxAge < cms.fetchTimeout {
			maxAge = cms.fetchTimeout
		}
		age := time.Since(cms.lastSuccessTime)

		if age > maxAge {
			status.Healthy = false
			status.HealthMessage = fmt.Sprintf("Last view was published %v ago (expected every %v)", age.Round(time.Second), cms.pollInterval)
		} else if cms.consecutiveFailures >= 3 {
			status.Healthy = false
			status.HealthMessage = fmt.Sprintf("%d consecutive polls failed", cms.consecutiveFailures)
		} else {
			status.Healthy = true
			status.HealthMessage = "Cluster monitor is healthy"
		}
	}

	return status
}

// monitoringLoop is the main polling loop
func (cms *ClusterMonitorService) monitoringLoop(ctx context.Context) {
	defer cms.wg.Done()

	cms.pollOnce(ctx)
	cms.cleanupOldSamples()

	ticker := time.NewTicker(cms.pollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[ClusterMonitor] Poll loop stopped")
			return
		case <-ticker.C:
			cms.pollOnce(ctx)
		case <-cleanupTicker.C:
			cms.cleanupOldSamples()
		}
	}
}

// pollOnce runs a tick from the loop, where errors are only logged
func (cms *ClusterMonitorService) pollOnce(ctx context.Context) {
	if _, err := cms.poll(ctx); err != nil && !errors.Is(err, ErrTickSuperseded) && ctx.Err() == nil {
		log.Printf("[ClusterMonitor] Poll failed, keeping previous view: %v", err)
	}
}

// Refresh runs one tick now and returns the published view. When a newer tick
// won the race its view is returned instead.
func (cms *ClusterMonitorService) Refresh(ctx context.Context) (*models.ClusterView, error) {
	view, err := cms.poll(ctx)
	if errors.Is(err, ErrTickSuperseded) {
		return cms.GetView(), nil
	}
	return view, err
}

// poll fetches both snapshots, assembles the view and publishes it
func (cms *ClusterMonitorService) poll(ctx context.Context) (*models.ClusterView, error) {
	seq := cms.tickSeq.Add(1)
	startTime := time.Now()

	inventory, registry, err := cms.fetchSnapshots(ctx)
	if err != nil {
		cms.recordFailure(startTime, err)
		return nil, err
	}

	view := aggregate.Assemble(inventory, registry)
	view.GeneratedAt = startTime

	if !cms.publish(seq, startTime, view) {
		cms.recordSuperseded(startTime)
		log.Printf("[ClusterMonitor] Dropping result of tick %d, a newer tick already published", seq)
		return nil, ErrTickSuperseded
	}
	return view, nil
}

// publish applies view and, when it is still the newest tick, records and
// broadcasts it before any later tick can
func (cms *ClusterMonitorService) publish(seq uint64, startTime time.Time, view *models.ClusterView) bool {
	cms.publishMu.Lock()
	defer cms.publishMu.Unlock()

	if !cms.apply(seq, view) {
		return false
	}
	cms.recordSample(view)
	cms.recordSuccess(startTime, view)
	cms.broadcastView(view)
	return true
}

// fetchSnapshots fetches inventory and registry concurrently under the fetch timeout
func (cms *ClusterMonitorService) fetchSnapshots(ctx context.Context) (*models.NodeInfoResponse, *models.RayletInfoResponse, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, cms.fetchTimeout)
	defer cancel()

	var (
		wg           sync.WaitGroup
		inventory    *models.NodeInfoResponse
		registry     *models.RayletInfoResponse
		inventoryErr error
		registryErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		inventory, inventoryErr = cms.source.FetchInventory(fetchCtx)
	}()
	go func() {
		defer wg.Done()
		registry, registryErr = cms.source.FetchRegistry(fetchCtx)
	}()
	wg.Wait()

	if inventoryErr != nil {
		metrics.SnapshotFetchErrorsTotal.WithLabelValues("inventory").Inc()
	}
	if registryErr != nil {
		metrics.SnapshotFetchErrorsTotal.WithLabelValues("registry").Inc()
	}

	if err := errors.Join(wrapFetchError("inventory", inventoryErr), wrapFetchError("registry", registryErr)); err != nil {
		return nil, nil, err
	}
	return inventory, registry, nil
}

func wrapFetchError(snapshot string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to fetch %s: %w", snapshot, err)
}

// apply publishes view if seq is newer than the last applied tick
func (cms *ClusterMonitorService) apply(seq uint64, view *models.ClusterView) bool {
	cms.viewMu.Lock()
	defer cms.viewMu.Unlock()

	if seq <= cms.appliedSeq {
		return false
	}
	cms.appliedSeq = seq
	cms.view = view
	return true
}

func (cms *ClusterMonitorService) recordSuccess(startTime time.Time, view *models.ClusterView) {
	duration := time.Since(startTime)

	cms.metricsMu.Lock()
	cms.lastPollTime = startTime
	cms.lastPollDuration = duration
	cms.lastSuccessTime = startTime
	cms.lastError = ""
	cms.consecutiveFailures = 0
	cms.totalPollsRun++
	cms.totalApplied++
	cms.metricsMu.Unlock()

	summary := view.Summary
	metrics.PollsTotal.WithLabelValues("applied").Inc()
	metrics.PollDurationSeconds.Observe(duration.Seconds())
	metrics.ClusterNodes.Set(float64(summary.NodeCount))
	metrics.ClusterWorkers.Set(float64(summary.WorkerCount))
	metrics.ClusterGPUs.Set(float64(summary.GPUCount))
	metrics.ClusterLogLines.Set(float64(summary.LogTotal))
	metrics.ClusterErrors.Set(float64(summary.ErrorTotal))
	metrics.ClusterActors.Set(float64(summary.ActorCount))
	if summary.GPUUtilization != nil {
		metrics.ClusterGPUUtilization.Set(*summary.GPUUtilization)
	} else {
		metrics.ClusterGPUUtilization.Set(math.NaN())
	}
}

func (cms *ClusterMonitorService) recordFailure(startTime time.Time, err error) {
	duration := time.Since(startTime)

	cms.metricsMu.Lock()
	cms.lastPollTime = startTime
	cms.lastPollDuration = duration
	cms.lastError = err.Error()
	cms.consecutiveFailures++
	cms.totalPollsRun++
	cms.totalErrors++
	cms.metricsMu.Unlock()

	metrics.PollsTotal.WithLabelValues("failed").Inc()
	metrics.PollDurationSeconds.Observe(duration.Seconds())
}

func (cms *ClusterMonitorService) recordSuperseded(startTime time.Time) {
	cms.metricsMu.Lock()
	cms.totalPollsRun++
	cms.totalSuperseded++
	cms.metricsMu.Unlock()

	metrics.PollsTotal.WithLabelValues("superseded").Inc()
	metrics.PollDurationSeconds.Observe(time.Since(startTime).Seconds())
}

// recordSample stores the view's summary; a storage error never blocks publishing
func (cms *ClusterMonitorService) recordSample(view *models.ClusterView) {
	if cms.db == nil {
		return
	}
	sample := models.NewClusterSample(view.Summary, view.GeneratedAt)
	if err := cms.db.Create(sample).Error; err != nil {
		log.Printf("[ClusterMonitor] Error storing cluster sample: %v", err)
	}
}

// broadcastView sends the published view to websocket subscribers
func (cms *ClusterMonitorService) broadcastView(view *models.ClusterView) {
	cms.mu.RLock()
	broadcastFunc := cms.broadcastFunc
	cms.mu.RUnlock()

	if broadcastFunc == nil {
		return
	}
	broadcastFunc(ClusterChannel, EventClusterViewUpdated, view)
}

// cleanupOldSamples removes samples older than the retention period
func (cms *ClusterMonitorService) cleanupOldSamples() {
	if cms.db == nil {
		return
	}

	cutoff := time.Now().Add(-cms.retentionPeriod)
	result := cms.db.Where("recorded_at < ?", cutoff).Delete(&models.ClusterSample{})

	if result.Error != nil {
		log.Printf("[ClusterMonitor] Error cleaning up old samples: %v", result.Error)
		return
	}

	if result.RowsAffected > 0 {
		log.Printf("[ClusterMonitor] Cleaned up %d old cluster samples", result.RowsAffected)
	}
}

// GetView returns the last published view, or nil before the first one
func (cms *ClusterMonitorService) GetView() *models.ClusterView {
	cms.viewMu.RLock()
	defer cms.viewMu.RUnlock()
	return cms.view
}

// GetNode returns the node with the given address from the last published view
func (cms *ClusterMonitorService) GetNode(address string) (*models.NodeView, error) {
	node, ok := cms.GetView().FindNode(address)
	if !ok {
		return nil, models.NewNotFoundError("Node " + address)
	}
	return node, nil
}

// GetHistory retrieves the samples recorded since the given time, oldest first
func (cms *ClusterMonitorService) GetHistory(since time.Time) ([]models.ClusterSample, error) {
	if cms.db == nil {
		return nil, models.NewNotConfiguredError("History")
	}

	var samples []models.ClusterSample
	err := cms.db.Where("recorded_at >= ?", since).
		Order("recorded_at ASC").
		Find(&samples).Error

	if err != nil {
		return nil, fmt.Errorf("failed to load cluster history: %w", err)
	}

	return samples, nil
}
