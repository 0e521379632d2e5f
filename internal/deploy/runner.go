// Package deploy builds, pulls and runs the service image on a Docker host.
//
// A run publishes exactly one port, injects an environment file and removes
// the container when it exits. Before anything starts, the published
// container port is checked against the port the service actually binds;
// a mismatch is reported as a *PortMismatchError rather than deployed.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mlhmz/hubspot-booking-api/internal/models"
	"github.com/mlhmz/hubspot-booking-api/internal/service"
)

// DefaultStopTimeout is how long a container gets to exit after SIGTERM.
const DefaultStopTimeout = 10 * time.Second

// ErrHostPortInUse is returned when the host side of the mapping is already bound.
var ErrHostPortInUse = errors.New("host port already in use")

// Runtime is the subset of the container engine the runner drives.
type Runtime interface {
	PullImage(ctx context.Context, image string, always bool) error
	BuildImage(ctx context.Context, opts service.BuildOptions) error
	ExposedPorts(ctx context.Context, image string) ([]int, error)
	StartContainer(ctx context.Context, opts service.RunOptions) (string, error)
	WaitContainer(ctx context.Context, containerID string) (int64, error)
	StopContainer(ctx context.Context, containerID string, timeout time.Duration) error
	FollowLogs(ctx context.Context, containerID string, stdout, stderr io.Writer) error
	GetContainerState(ctx context.Context, containerID string) (*service.ContainerState, error)
}

// Repository stores deployment records.
type Repository interface {
	Create(d *models.Deployment) error
	FindByID(id string) (*models.Deployment, error)
	FindAll() ([]*models.Deployment, error)
	Update(d *models.Deployment) error
}

// Request describes one pull-and-run.
type Request struct {
	Image       string
	Name        string
	EnvFile     string
	HostIP      string
	Mapping     PortMapping
	SkipPull    bool
	Detach      bool
	StopTimeout time.Duration
	Stdout      io.Writer // container output; nil disables log following
	Stderr      io.Writer
}

// CheckReport is the outcome of the pre-run checks.
type CheckReport struct {
	Image    ImageRef
	Mapping  PortMapping
	AppPort  int
	Exposed  []int
	Env      Env
	HostFree bool
}

// Result is the outcome of a run.
type Result struct {
	Deployment *models.Deployment
	ExitCode   int64
}

// BuildRequest describes an image build.
type BuildRequest struct {
	ContextDir string
	Dockerfile string
	Tags       []string
	BuildArgs  map[string]*string
	NoCache    bool
	Output     io.Writer
}

// Runner deploys the service image.
type Runner struct {
	runtime Runtime
	repo    Repository
	ports   PortChecker
	logger  *slog.Logger
}

// NewRunner creates a new Runner.
func NewRunner(runtime Runtime, repo Repository, ports PortChecker, logger *slog.Logger) *Runner {
	return &Runner{
		runtime: runtime,
		repo:    repo,
		ports:   ports,
		logger:  logger,
	}
}

// Build builds the image from a context directory.
func (r *Runner) Build(ctx context.Context, req BuildRequest) error {
	if req.Dockerfile == "" {
		req.Dockerfile = "Dockerfile"
	}
	if _, err := os.Stat(filepath.Join(req.ContextDir, req.Dockerfile)); err != nil {
		return fmt.Errorf("dockerfile not found in build context: %w", err)
	}
	if len(req.Tags) == 0 {
		return fmt.Errorf("at least one image tag is required")
	}

	tags := make([]string, 0, len(req.Tags))
	for _, t := range req.Tags {
		ref, err := ParseImageRef(t)
		if err != nil {
			return err
		}
		tags = append(tags, ref.Familiar())
	}

	return r.runtime.BuildImage(ctx, service.BuildOptions{
		ContextDir: req.ContextDir,
		Dockerfile: req.Dockerfile,
		Tags:       tags,
		BuildArgs:  req.BuildArgs,
		NoCache:    req.NoCache,
		Output:     req.Output,
	})
}

// Check pulls the image (unless SkipPull) and verifies the port mapping and
// environment file without starting anything.
func (r *Runner) Check(ctx context.Context, req Request) (*CheckReport, error) {
	ref, err := ParseImageRef(req.Image)
	if err != nil {
		return nil, err
	}
	if err := req.Mapping.Validate(); err != nil {
		return nil, err
	}

	report := &CheckReport{Image: ref, Mapping: req.Mapping, Env: Env{}}

	if req.EnvFile != "" {
		env, err := LoadEnvFile(req.EnvFile)
		if err != nil {
			return report, err
		}
		report.Env = env
	}
	report.AppPort, err = report.Env.AppPort()
	if err != nil {
		return report, err
	}

	if err := r.runtime.PullImage(ctx, ref.String(), !req.SkipPull); err != nil {
		return report, err
	}

	report.Exposed, err = r.runtime.ExposedPorts(ctx, ref.String())
	if err != nil {
		return report, err
	}

	if err := CheckPorts(req.Mapping, report.Exposed, report.AppPort); err != nil {
		return report, err
	}

	report.HostFree = r.ports.IsPortAvailable(req.HostIP, req.Mapping.HostPort)
	if !report.HostFree {
		return report, fmt.Errorf("%w: %d", ErrHostPortInUse, req.Mapping.HostPort)
	}

	if _, ok := report.Env["HUBSPOT_API_KEY"]; !ok {
		r.logger.WarnContext(ctx, "HUBSPOT_API_KEY is not set in the environment file, the service will answer 500", "env_file", req.EnvFile)
	}

	return report, nil
}

// Run checks, starts and (unless detached) waits for the container. When ctx
// is cancelled the container is stopped and its exit is still recorded.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	report, err := r.Check(ctx, req)
	if err != nil {
		return nil, err
	}

	stopTimeout := req.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}

	d := &models.Deployment{
		ID:            uuid.New().String(),
		Image:         report.Image.String(),
		ContainerName: req.Name,
		HostPort:      req.Mapping.HostPort,
		ContainerPort: req.Mapping.ContainerPort,
		EnvFile:       req.EnvFile,
		Detached:      req.Detach,
		Status:        models.StatusCreating,
	}
	if err := r.repo.Create(d); err != nil {
		return &Result{Deployment: d, ExitCode: -1}, fmt.Errorf("failed to record deployment: %w", err)
	}

	containerID, err := r.runtime.StartContainer(ctx, service.RunOptions{
		Image:         report.Image.String(),
		Name:          req.Name,
		Env:           report.Env.List(),
		HostIP:        req.HostIP,
		HostPort:      req.Mapping.HostPort,
		ContainerPort: req.Mapping.ContainerPort,
		AutoRemove:    true,
		Labels: map[string]string{
			"hubspot-booking-api.deployment-id": d.ID,
		},
	})
	if err != nil {
		r.finish(d, models.StatusError, nil, err)
		return &Result{Deployment: d, ExitCode: -1}, err
	}

	d.ContainerID = containerID
	d.Status = models.StatusRunning
	if err := r.repo.Update(d); err != nil {
		r.logger.ErrorContext(ctx, "Failed to record running deployment", "id", d.ID, "error", err)
	}

	r.logger.InfoContext(ctx, "Deployment running",
		"id", d.ID,
		"container_id", containerID,
		"image", d.Image,
		"ports", req.Mapping.String(),
	)

	if req.Detach {
		return &Result{Deployment: d}, nil
	}

	logsDone := make(chan struct{})
	if req.Stdout != nil {
		stderr := req.Stderr
		if stderr == nil {
			stderr = req.Stdout
		}
		go func() {
			defer close(logsDone)
			if err := r.runtime.FollowLogs(context.WithoutCancel(ctx), containerID, req.Stdout, stderr); err != nil {
				r.logger.WarnContext(ctx, "Log streaming ended with error", "container_id", containerID, "error", err)
			}
		}()
	} else {
		close(logsDone)
	}

	code, err := r.runtime.WaitContainer(ctx, containerID)
	status := models.StatusExited

	if err != nil && ctx.Err() != nil {
		r.logger.InfoContext(ctx, "Stopping container", "container_id", containerID, "timeout", stopTimeout)

		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout+5*time.Second)
		defer cancel()

		if stopErr := r.runtime.StopContainer(stopCtx, containerID, stopTimeout); stopErr != nil {
			r.finish(d, models.StatusError, nil, stopErr)
			return &Result{Deployment: d, ExitCode: -1}, stopErr
		}
		code, err = r.runtime.WaitContainer(stopCtx, containerID)
		status = models.StatusStopped
	}

	<-logsDone

	if err != nil {
		r.finish(d, models.StatusError, nil, err)
		return &Result{Deployment: d, ExitCode: code}, err
	}

	r.finish(d, status, &code, nil)
	r.logger.Info("Container exited", "id", d.ID, "container_id", containerID, "exit_code", code)

	return &Result{Deployment: d, ExitCode: code}, nil
}

// Stop stops a detached deployment. A container that is already gone
// (auto-removed after exiting on its own) only has its record closed.
func (r *Runner) Stop(ctx context.Context, id string, timeout time.Duration) (*models.Deployment, error) {
	d, err := r.repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if d.ContainerID == "" {
		return d, fmt.Errorf("deployment %s has no container", id)
	}
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}

	state, err := r.runtime.GetContainerState(ctx, d.ContainerID)
	if err != nil {
		return d, err
	}
	if !state.Exists {
		r.logger.InfoContext(ctx, "Container already removed", "id", d.ID, "container_id", d.ContainerID)
		if d.Status == models.StatusRunning || d.Status == models.StatusCreating {
			r.finish(d, models.StatusExited, nil, nil)
		}
		return d, nil
	}

	if err := r.runtime.StopContainer(ctx, d.ContainerID, timeout); err != nil {
		return d, err
	}

	r.finish(d, models.StatusStopped, nil, nil)
	return d, nil
}

// History lists recorded deployments, newest first. Records still marked
// running are reconciled with the container engine first.
func (r *Runner) History(ctx context.Context) ([]*models.Deployment, error) {
	deployments, err := r.repo.FindAll()
	if err != nil {
		return nil, err
	}

	for _, d := range deployments {
		if d.Status != models.StatusRunning || d.ContainerID == "" {
			continue
		}
		state, err := r.runtime.GetContainerState(ctx, d.ContainerID)
		if err != nil {
			r.logger.WarnContext(ctx, "Could not refresh deployment status", "id", d.ID, "error", err)
			continue
		}
		switch {
		case !state.Exists:
			r.finish(d, models.StatusExited, nil, nil)
		case !state.Running && !state.Restarting:
			code := int64(state.ExitCode)
			r.finish(d, models.StatusExited, &code, nil)
		}
	}

	return deployments, nil
}

func (r *Runner) finish(d *models.Deployment, status models.DeploymentStatus, code *int64, err error) {
	now := time.Now()
	d.Status = status
	d.ExitCode = code
	d.FinishedAt = &now
	if err != nil {
		d.Error = err.Error()
	}
	if updateErr := r.repo.Update(d); updateErr != nil {
		r.logger.Error("Failed to record deployment result", "id", d.ID, "error", updateErr)
	}
}
