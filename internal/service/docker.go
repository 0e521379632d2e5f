package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
)

// DockerService handles Docker operations
type DockerService struct {
	client *client.Client
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingWait
}

// pendingWait is a ContainerWait registered before the container was started,
// so an auto-removed container cannot exit unobserved.
type pendingWait struct {
	statusCh <-chan container.WaitResponse
	errCh    <-chan error
	cancel   context.CancelFunc
}

// BuildOptions describes an image build
type BuildOptions struct {
	ContextDir string
	Dockerfile string // relative to ContextDir
	Tags       []string
	BuildArgs  map[string]*string
	NoCache    bool
	Output     io.Writer // build progress; nil discards it
}

// RunOptions describes a container with a single published TCP port
type RunOptions struct {
	Image         string
	Name          string
	Env           []string
	HostIP        string
	HostPort      int
	ContainerPort int
	AutoRemove    bool
	Labels        map[string]string
}

// NewDockerService creates a new Docker service
func NewDockerService(logger *slog.Logger) (*DockerService, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	return &DockerService{
		client:  cli,
		logger:  logger,
		pending: make(map[string]*pendingWait),
	}, nil
}

// Close closes the Docker client connection
func (s *DockerService) Close() error {
	s.mu.Lock()
	for id, p := range s.pending {
		p.cancel()
		delete(s.pending, id)
	}
	s.mu.Unlock()
	return s.client.Close()
}

// Ping checks if Docker daemon is accessible
func (s *DockerService) Ping(ctx context.Context) error {
	if _, err := s.client.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect to Docker daemon: %w", err)
	}
	return nil
}

// PullImage pulls a Docker image. Unless always is set, an image that
// already exists locally is not pulled again.
func (s *DockerService) PullImage(ctx context.Context, imageName string, always bool) error {
	if !always {
		if _, _, err := s.client.ImageInspectWithRaw(ctx, imageName); err == nil {
			s.logger.InfoContext(ctx, "Image already exists locally", "image", imageName)
			return nil
		}
	}

	s.logger.InfoContext(ctx, "Pulling Docker image", "image", imageName)
	reader, err := s.client.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to pull image", "image", imageName, "error", err)
		return fmt.Errorf("failed to pull image %s: %w", imageName, err)
	}
	defer reader.Close()

	// The pull only completes once the progress stream is drained
	if _, err := io.Copy(io.Discard, reader); err != nil {
		s.logger.ErrorContext(ctx, "Error reading image pull output", "image", imageName, "error", err)
		return fmt.Errorf("error reading image pull output: %w", err)
	}

	s.logger.InfoContext(ctx, "Successfully pulled image", "image", imageName)
	return nil
}

// BuildImage builds an image from a local context directory
func (s *DockerService) BuildImage(ctx context.Context, opts BuildOptions) error {
	buildContext, err := archive.TarWithOptions(opts.ContextDir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("failed to archive build context %s: %w", opts.ContextDir, err)
	}
	defer buildContext.Close()

	s.logger.InfoContext(ctx, "Building Docker image", "context", opts.ContextDir, "dockerfile", opts.Dockerfile, "tags", opts.Tags)

	resp, err := s.client.ImageBuild(ctx, buildContext, types.ImageBuildOptions{
		Dockerfile: opts.Dockerfile,
		Tags:       opts.Tags,
		BuildArgs:  opts.BuildArgs,
		NoCache:    opts.NoCache,
		Remove:     true,
	})
	if err != nil {
		return fmt.Errorf("failed to build image: %w", err)
	}
	defer resp.Body.Close()

	out := opts.Output
	if out == nil {
		out = io.Discard
	}

	// Build step failures arrive as error messages inside the stream
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, out, 0, false, nil); err != nil {
		return fmt.Errorf("image build failed: %w", err)
	}

	s.logger.InfoContext(ctx, "Successfully built image", "tags", opts.Tags)
	return nil
}

// ExposedPorts returns the TCP ports an image declares with EXPOSE, sorted
func (s *DockerService) ExposedPorts(ctx context.Context, imageName string) ([]int, error) {
	inspect, _, err := s.client.ImageInspectWithRaw(ctx, imageName)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect image %s: %w", imageName, err)
	}
	if inspect.Config == nil {
		return nil, nil
	}

	var ports []int
	for p := range inspect.Config.ExposedPorts {
		port := nat.Port(p)
		if port.Proto() != "tcp" {
			continue
		}
		ports = append(ports, port.Int())
	}
	sort.Ints(ports)
	return ports, nil
}

// StartContainer creates and starts a container and returns its ID.
// The exit is observed through WaitContainer.
func (s *DockerService) StartContainer(ctx context.Context, opts RunOptions) (string, error) {
	containerPort, err := nat.NewPort("tcp", strconv.Itoa(opts.ContainerPort))
	if err != nil {
		return "", fmt.Errorf("invalid container port %d: %w", opts.ContainerPort, err)
	}

	containerConfig := &container.Config{
		Image: opts.Image,
		Env:   opts.Env,
		ExposedPorts: nat.PortSet{
			containerPort: struct{}{},
		},
		Labels: opts.Labels,
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			containerPort: []nat.PortBinding{
				{HostIP: opts.HostIP, HostPort: strconv.Itoa(opts.HostPort)},
			},
		},
		AutoRemove: opts.AutoRemove,
	}

	resp, err := s.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, opts.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}
	for _, w := range resp.Warnings {
		s.logger.WarnContext(ctx, "Container create warning", "container_id", resp.ID, "warning", w)
	}

	waitCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	statusCh, errCh := s.client.ContainerWait(waitCtx, resp.ID, container.WaitConditionNextExit)

	if err := s.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		cancel()
		if removeErr := s.client.ContainerRemove(context.WithoutCancel(ctx), resp.ID, container.RemoveOptions{Force: true}); removeErr != nil {
			s.logger.ErrorContext(ctx, "Failed to remove container after start failure", "container_id", resp.ID, "error", removeErr)
		}
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	s.mu.Lock()
	s.pending[resp.ID] = &pendingWait{statusCh: statusCh, errCh: errCh, cancel: cancel}
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Container started",
		"container_id", resp.ID,
		"image", opts.Image,
		"host_port", opts.HostPort,
		"container_port", opts.ContainerPort,
	)
	return resp.ID, nil
}

// WaitContainer blocks until the container exits and returns its exit code.
// If ctx ends first, ctx.Err() is returned and a later call can still
// collect the exit.
func (s *DockerService) WaitContainer(ctx context.Context, containerID string) (int64, error) {
	s.mu.Lock()
	p, ok := s.pending[containerID]
	s.mu.Unlock()

	if !ok {
		statusCh, errCh := s.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
		p = &pendingWait{statusCh: statusCh, errCh: errCh, cancel: func() {}}
	}

	select {
	case res := <-p.statusCh:
		s.forget(containerID)
		if res.Error != nil && res.Error.Message != "" {
			return res.StatusCode, fmt.Errorf("container exited with error: %s", res.Error.Message)
		}
		return res.StatusCode, nil
	case err := <-p.errCh:
		s.forget(containerID)
		return -1, fmt.Errorf("failed to wait for container: %w", err)
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

func (s *DockerService) forget(containerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pending[containerID]; ok {
		p.cancel()
		delete(s.pending, containerID)
	}
}

// StopContainer stops a running container
func (s *DockerService) StopContainer(ctx context.Context, containerID string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	if err := s.client.ContainerStop(ctx, containerID, container.StopOptions{
		Timeout: &seconds,
	}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	s.logger.InfoContext(ctx, "Container stopped", "container_id", containerID)
	return nil
}

// FollowLogs copies the container's demultiplexed output until it exits or ctx ends
func (s *DockerService) FollowLogs(ctx context.Context, containerID string, stdout, stderr io.Writer) error {
	logs, err := s.client.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		return fmt.Errorf("failed to get container logs: %w", err)
	}
	defer logs.Close()

	if _, err := stdcopy.StdCopy(stdout, stderr, logs); err != nil && err != io.EOF {
		return fmt.Errorf("error demultiplexing logs: %w", err)
	}
	return nil
}

// ContainerState represents the state of a Docker container
type ContainerState struct {
	Exists     bool // Whether the container exists in Docker
	Running    bool // Whether the container is running
	Restarting bool // Whether the container is restarting
	Dead       bool // Whether the container is dead
	OOMKilled  bool // Whether the container was killed due to OOM
	ExitCode   int
}

// GetContainerState inspects a container and returns its current state
func (s *DockerService) GetContainerState(ctx context.Context, containerID string) (*ContainerState, error) {
	if containerID == "" {
		return &ContainerState{Exists: false}, nil
	}

	containerJSON, err := s.client.ContainerInspect(ctx, containerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return &ContainerState{Exists: false}, nil
		}
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}
	if containerJSON.State == nil {
		return &ContainerState{Exists: true}, nil
	}

	return &ContainerState{
		Exists:     true,
		Running:    containerJSON.State.Running,
		Restarting: containerJSON.State.Restarting,
		Dead:       containerJSON.State.Dead,
		OOMKilled:  containerJSON.State.OOMKilled,
		ExitCode:   containerJSON.State.ExitCode,
	}, nil
}
