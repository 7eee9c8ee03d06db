package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClusterSample is the cluster summary recorded for one applied polling tick
type ClusterSample struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	NodeCount      int       `gorm:"not null" json:"node_count"`
	WorkerCount    int       `gorm:"not null" json:"worker_count"`
	GPUCount       int       `gorm:"not null" json:"gpu_count"`
	LogTotal       int       `gorm:"not null" json:"log_total"`
	ErrorTotal     int       `gorm:"not null" json:"error_total"`
	GPUUtilization *float64  `json:"gpu_utilization"` // nil when no node had a GPU
	GPUAllocated   float64   `gorm:"not null" json:"gpu_allocated"`
	RecordedAt     time.Time `gorm:"not null;index" json:"recorded_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// BeforeCreate hook to generate UUID
func (cs *ClusterSample) BeforeCreate(tx *gorm.DB) error {
	if cs.ID == uuid.Nil {
		cs.ID = uuid.New()
	}
	if cs.RecordedAt.IsZero() {
		cs.RecordedAt = time.Now()
	}
	return nil
}

// TableName overrides the default table name
func (ClusterSample) TableName() string {
	return "cluster_samples"
}

// NewClusterSample captures a summary at the given time
func NewClusterSample(summary ClusterSummary, at time.Time) *ClusterSample {
	return &ClusterSample{
		NodeCount:      summary.NodeCount,
		WorkerCount:    summary.WorkerCount,
		GPUCount:       summary.GPUCount,
		LogTotal:       summary.LogTotal,
		ErrorTotal:     summary.ErrorTotal,
		GPUUtilization: summary.GPUUtilization,
		GPUAllocated:   summary.GPUAllocated,
		RecordedAt:     at,
	}
}

// WorkersPerNode returns the average number of live workers per node
func (cs *ClusterSample) WorkersPerNode() float64 {
	if cs.NodeCount == 0 {
		return 0
	}
	return float64(cs.WorkerCount) / float64(cs.NodeCount)
}
