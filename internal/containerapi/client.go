// Package containerapi wraps the Docker Engine API for the narrow set of
// operations the health waiter and preflight stages need: pinging the
// daemon, inspecting a container's reported status and declared health, and
// pulling the tail of its logs for timeout reports. Podman's Docker-compatible
// REST socket (when capabilities.podman_socket is set) speaks the same API,
// so this client serves both runtimes without a runtime-specific branch.
package containerapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

type Client struct {
	api *client.Client
}

// NewClient connects using the environment (DOCKER_HOST, or the default
// socket), falling back to an auto-detected alternate host (e.g. Colima,
// rootless podman) when the default is unreachable and DOCKER_HOST was not
// explicitly pinned.
func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	firstErr := pingClient(cli)
	if firstErr == nil {
		return &Client{api: cli}, nil
	}
	_ = cli.Close()
	if hostPinned() {
		return nil, firstErr
	}
	if host, ok := AutoDockerHost(); ok {
		alt, altErr := client.NewClientWithOpts(client.WithHost(host), client.WithAPIVersionNegotiation())
		if altErr != nil {
			return nil, firstErr
		}
		if pingErr := pingClient(alt); pingErr == nil {
			return &Client{api: alt}, nil
		}
		_ = alt.Close()
	}
	return nil, firstErr
}

// NewClientWithHost connects to an explicit host URI, used once the
// capability detector has resolved the podman/docker socket location.
func NewClientWithHost(host string) (*Client, error) {
	cli, err := client.NewClientWithOpts(client.WithHost(host), client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	if err := pingClient(cli); err != nil {
		_ = cli.Close()
		return nil, err
	}
	return &Client{api: cli}, nil
}

func pingClient(cli *client.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := cli.Ping(ctx)
	return err
}

func (c *Client) Close() error {
	if c == nil || c.api == nil {
		return nil
	}
	return c.api.Close()
}

// ContainerStatus is the subset of container state the health waiter
// evaluates per spec.md's layered probe hierarchy.
type ContainerStatus struct {
	ID        string
	Name      string
	Running   bool
	Status    string // docker's free-text status, e.g. "Up 2 minutes"
	Health    string // "starting", "healthy", "unhealthy", "" when undeclared
	StartedAt time.Time
}

// ContainerByName inspects a single container. A not-found container
// returns a zero ContainerStatus and ok=false, not an error — the caller
// decides whether that is a failure (container never created) or a
// transient race (compose up still in flight).
func (c *Client) ContainerByName(ctx context.Context, name string) (ContainerStatus, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return ContainerStatus{}, false, errors.New("container name required")
	}
	info, err := c.api.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return ContainerStatus{}, false, nil
		}
		return ContainerStatus{}, false, err
	}
	status := ContainerStatus{
		ID:   info.ID,
		Name: strings.TrimPrefix(info.Name, "/"),
	}
	if info.State != nil {
		status.Running = info.State.Running
		status.Status = info.State.Status
		if info.State.Health != nil {
			status.Health = info.State.Health.Status
		}
		if t, err := time.Parse(time.RFC3339Nano, info.State.StartedAt); err == nil {
			status.StartedAt = t
		}
	}
	return status, true, nil
}

// ListByLabels returns running and stopped containers carrying all of the
// given labels, used to enumerate a compose project's services without
// depending on the compose implementation's own `ps --format json`.
func (c *Client) ListByLabels(ctx context.Context, labels map[string]string) ([]ContainerStatus, error) {
	args := filters.NewArgs()
	for k, v := range labels {
		if k == "" {
			continue
		}
		if v == "" {
			args.Add("label", k)
		} else {
			args.Add("label", k+"="+v)
		}
	}
	list, err := c.api.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, err
	}
	out := make([]ContainerStatus, 0, len(list))
	for _, item := range list {
		name := ""
		if len(item.Names) > 0 {
			name = strings.TrimPrefix(item.Names[0], "/")
		}
		health := ""
		if item.State == "running" && strings.Contains(item.Status, "(healthy)") {
			health = "healthy"
		} else if strings.Contains(item.Status, "(unhealthy)") {
			health = "unhealthy"
		} else if strings.Contains(item.Status, "(health: starting)") {
			health = "starting"
		}
		out = append(out, ContainerStatus{
			ID:      item.ID,
			Name:    name,
			Running: item.State == "running",
			Status:  item.Status,
			Health:  health,
		})
	}
	return out, nil
}

// Logs returns the tail of a container's combined stdout/stderr, used by
// the health waiter's timeout report.
func (c *Client) Logs(ctx context.Context, containerID string, tailLines int) (string, error) {
	containerID = strings.TrimSpace(containerID)
	if containerID == "" {
		return "", errors.New("container id required")
	}
	tail := ""
	if tailLines > 0 {
		tail = fmt.Sprintf("%d", tailLines)
	}
	reader, err := c.api.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       tail,
	})
	if err != nil {
		return "", err
	}
	defer reader.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, reader); err != nil && !errors.Is(err, io.EOF) {
		_, _ = io.Copy(&buf, reader)
	}
	return buf.String(), nil
}
