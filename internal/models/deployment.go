package models

import (
	"time"

	"gorm.io/gorm"
)

// Deployment records one pull-and-run of the service image
type Deployment struct {
	ID            string           `json:"id" gorm:"primaryKey"`
	Image         string           `json:"image" gorm:"not null"`
	ContainerName string           `json:"container_name" gorm:"index"`
	ContainerID   string           `json:"container_id" gorm:"index"`
	HostPort      int              `json:"host_port"`
	ContainerPort int              `json:"container_port"`
	EnvFile       string           `json:"env_file"`
	Detached      bool             `json:"detached"`
	Status        DeploymentStatus `json:"status" gorm:"type:varchar(20)"`
	ExitCode      *int64           `json:"exit_code,omitempty"`
	Error         string           `json:"error,omitempty"`
	FinishedAt    *time.Time       `json:"finished_at,omitempty"`
	CreatedAt     time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt     gorm.DeletedAt   `json:"-" gorm:"index"`
}
