package health

import (
	"context"

	"splunkctl/internal/containerapi"
)

// ClientAdapter wraps *containerapi.Client to satisfy ContainerInspector,
// translating containerapi.ContainerStatus to this package's narrower
// ContainerStatus so the waiter's exported surface never has to import the
// Docker SDK types.
type ClientAdapter struct {
	Client *containerapi.Client
}

func (a ClientAdapter) ContainerByName(ctx context.Context, name string) (ContainerStatus, bool, error) {
	cs, found, err := a.Client.ContainerByName(ctx, name)
	if err != nil || !found {
		return ContainerStatus{}, found, err
	}
	return ContainerStatus{ID: cs.ID, Running: cs.Running, Health: cs.Health}, true, nil
}

func (a ClientAdapter) Logs(ctx context.Context, containerID string, tailLines int) (string, error) {
	return a.Client.Logs(ctx, containerID, tailLines)
}
