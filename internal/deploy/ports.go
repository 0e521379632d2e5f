package deploy

import (
	"fmt"
	"net"
	"slices"
	"strconv"
)

const maxPort = 65535

// PortMapping publishes ContainerPort on HostPort.
type PortMapping struct {
	HostPort      int
	ContainerPort int
}

func (m PortMapping) String() string {
	return fmt.Sprintf("%d:%d", m.HostPort, m.ContainerPort)
}

// Validate checks both ports are in range.
func (m PortMapping) Validate() error {
	if m.HostPort < 1 || m.HostPort > maxPort {
		return fmt.Errorf("host port %d out of range (1-%d)", m.HostPort, maxPort)
	}
	if m.ContainerPort < 1 || m.ContainerPort > maxPort {
		return fmt.Errorf("container port %d out of range (1-%d)", m.ContainerPort, maxPort)
	}
	return nil
}

// PortMismatchError reports a published container port that nothing inside
// the container listens on.
type PortMismatchError struct {
	Mapping PortMapping
	AppPort int   // port the entry point binds
	Exposed []int // ports declared by the image, may be empty
}

func (e *PortMismatchError) Error() string {
	if e.Mapping.ContainerPort != e.AppPort {
		return fmt.Sprintf("port mismatch: mapping %s publishes container port %d but the service listens on %d",
			e.Mapping, e.Mapping.ContainerPort, e.AppPort)
	}
	return fmt.Sprintf("port mismatch: mapping %s publishes container port %d but the image exposes %v",
		e.Mapping, e.Mapping.ContainerPort, e.Exposed)
}

// CheckPorts verifies that the container side of mapping is the port the
// service binds and, when the image declares any, one it exposes.
func CheckPorts(mapping PortMapping, exposed []int, appPort int) error {
	if err := mapping.Validate(); err != nil {
		return err
	}
	if mapping.ContainerPort != appPort {
		return &PortMismatchError{Mapping: mapping, AppPort: appPort, Exposed: exposed}
	}
	if len(exposed) > 0 && !slices.Contains(exposed, mapping.ContainerPort) {
		return &PortMismatchError{Mapping: mapping, AppPort: appPort, Exposed: exposed}
	}
	return nil
}

// PortChecker reports whether a host port can be bound on hostIP. An empty
// hostIP means all interfaces.
type PortChecker interface {
	IsPortAvailable(hostIP string, port int) bool
}

// Scanner checks host TCP port availability by binding to it.
type Scanner struct{}

// NewScanner creates a new Scanner.
func NewScanner() *Scanner {
	return &Scanner{}
}

// IsPortAvailable binds hostIP:port, the address Docker will publish on,
// and releases it immediately.
func (s *Scanner) IsPortAvailable(hostIP string, port int) bool {
	if port < 1 || port > maxPort {
		return false
	}
	listener, err := net.Listen("tcp", net.JoinHostPort(hostIP, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = listener.Close()
	return true
}
