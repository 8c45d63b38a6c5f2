package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeInspector struct {
	byName map[string]ContainerStatus
	found  map[string]bool
	logs   map[string]string
}

func (f fakeInspector) ContainerByName(ctx context.Context, name string) (ContainerStatus, bool, error) {
	if !f.found[name] {
		return ContainerStatus{}, false, nil
	}
	return f.byName[name], true, nil
}

func (f fakeInspector) Logs(ctx context.Context, containerID string, tailLines int) (string, error) {
	return f.logs[containerID], nil
}

func TestEvaluateHealthyFromDeclaredHealthcheck(t *testing.T) {
	insp := fakeInspector{
		found:  map[string]bool{"app": true},
		byName: map[string]ContainerStatus{"app": {ID: "c1", Running: true, Health: "healthy"}},
	}
	st := evaluate(context.Background(), insp, ServiceSpec{Name: "app", ContainerName: "app"}, time.Second)
	if !st.Healthy {
		t.Fatalf("expected healthy, got %+v", st)
	}
}

func TestEvaluateUnhealthyFromDeclaredHealthcheck(t *testing.T) {
	insp := fakeInspector{
		found:  map[string]bool{"app": true},
		byName: map[string]ContainerStatus{"app": {ID: "c1", Running: true, Health: "unhealthy"}},
	}
	st := evaluate(context.Background(), insp, ServiceSpec{Name: "app", ContainerName: "app"}, time.Second)
	if st.Healthy {
		t.Fatalf("expected unhealthy, got %+v", st)
	}
}

func TestEvaluateNotRunningFails(t *testing.T) {
	insp := fakeInspector{found: map[string]bool{"app": false}}
	st := evaluate(context.Background(), insp, ServiceSpec{Name: "app", ContainerName: "app"}, time.Second)
	if st.Healthy || st.Running {
		t.Fatalf("expected not-running failure, got %+v", st)
	}
}

func TestEvaluateRunningNoDeclaredHealthUsesEndpointProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	insp := fakeInspector{
		found:  map[string]bool{"app": true},
		byName: map[string]ContainerStatus{"app": {ID: "c1", Running: true}},
	}
	st := evaluate(context.Background(), insp, ServiceSpec{Name: "app", ContainerName: "app", Endpoint: srv.URL}, 2*time.Second)
	if !st.Healthy || !st.EndpointOK {
		t.Fatalf("expected healthy via endpoint probe, got %+v", st)
	}
}

func TestEvaluateRunningNoEndpointDeclaredPassesThrough(t *testing.T) {
	insp := fakeInspector{
		found:  map[string]bool{"redis": true},
		byName: map[string]ContainerStatus{"redis": {ID: "c2", Running: true}},
	}
	st := evaluate(context.Background(), insp, ServiceSpec{Name: "redis", ContainerName: "redis"}, time.Second)
	if !st.Healthy {
		t.Fatalf("expected a service with no declared health or endpoint to pass when running, got %+v", st)
	}
}

func TestEvaluateRunningWithFailingEndpointFails(t *testing.T) {
	insp := fakeInspector{
		found:  map[string]bool{"app": true},
		byName: map[string]ContainerStatus{"app": {ID: "c1", Running: true}},
	}
	st := evaluate(context.Background(), insp, ServiceSpec{Name: "app", ContainerName: "app", Endpoint: "http://127.0.0.1:1"}, 100*time.Millisecond)
	if st.Healthy {
		t.Fatalf("expected failure when endpoint is unreachable, got %+v", st)
	}
}
