package models

// DeploymentStatus is the lifecycle state of a deployed container.
type DeploymentStatus string

const (
	StatusCreating DeploymentStatus = "creating"
	StatusRunning  DeploymentStatus = "running"
	StatusExited   DeploymentStatus = "exited"
	StatusStopped  DeploymentStatus = "stopped"
	StatusError    DeploymentStatus = "error"
)
