// Package dockerrt wraps the Docker Engine API behind a narrow Runtime
// interface so the container runner and orchestrator can be tested without
// a live daemon.
package dockerrt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/docker/docker/pkg/stdcopy"
)

// VolumeBinding mounts a host path into a container.
type VolumeBinding struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

// ContainerSpec describes a container to create. It intentionally exposes
// only what skill evaluation needs, not the full Docker API surface.
type ContainerSpec struct {
	Image       string
	Env         map[string]string
	Command     []string
	Entrypoint  []string
	WorkingDir  string
	MemoryBytes int64
	Volumes     []VolumeBinding
	Labels      map[string]string
}

// WaitResult is the outcome of waiting for a container to leave the running
// state, or a timeout if it didn't in time.
type WaitResult struct {
	ExitCode int
	TimedOut bool
}

// StatsSnapshot is a single point-in-time memory reading.
type StatsSnapshot struct {
	UsageBytes int64
	LimitBytes int64
}

// InspectResult is the subset of container inspect state callers need to
// classify a terminal container.
type InspectResult struct {
	Running   bool
	OOMKilled bool
	ExitCode  int
}

// Runtime is the container-runtime contract every component in this module
// depends on, never the Docker SDK client directly.
type Runtime interface {
	ContainerCreate(ctx context.Context, spec ContainerSpec, name string) (id string, err error)
	ContainerStart(ctx context.Context, id string) error
	ContainerStop(ctx context.Context, id string, timeout time.Duration) error
	ContainerKill(ctx context.Context, id string, signal string) error
	ContainerWait(ctx context.Context, id string, timeout time.Duration) (WaitResult, error)
	ContainerLogs(ctx context.Context, id string) (stdout, stderr string, err error)
	ContainerStats(ctx context.Context, id string) (StatsSnapshot, error)
	ContainerInspect(ctx context.Context, id string) (InspectResult, error)
	ContainerRemove(ctx context.Context, id string) error
	HostMemTotal(ctx context.Context) (int64, error)
}

// DockerRuntime implements Runtime against a live Docker daemon.
type DockerRuntime struct {
	cli *client.Client
}

// New connects to the Docker daemon using the standard DOCKER_HOST
// environment, negotiating the API version like the daemon expects.
func New() (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("dockerrt: create client: %w", err)
	}
	return &DockerRuntime{cli: cli}, nil
}

// Close releases the underlying client connection.
func (d *DockerRuntime) Close() error {
	if d.cli != nil {
		return d.cli.Close()
	}
	return nil
}

func (d *DockerRuntime) ContainerCreate(ctx context.Context, spec ContainerSpec, name string) (string, error) {
	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, k+"="+v)
	}

	cfg := &container.Config{
		Image:      spec.Image,
		Env:        env,
		Cmd:        spec.Command,
		Entrypoint: spec.Entrypoint,
		WorkingDir: spec.WorkingDir,
		Labels:     spec.Labels,
	}

	binds := make([]string, 0, len(spec.Volumes))
	for _, v := range spec.Volumes {
		mode := "rw"
		if v.ReadOnly {
			mode = "ro"
		}
		binds = append(binds, fmt.Sprintf("%s:%s:%s", v.HostPath, v.ContainerPath, mode))
	}

	hostCfg := &container.HostConfig{
		Binds:       binds,
		NetworkMode: "bridge",
		Resources: container.Resources{
			Memory:     spec.MemoryBytes,
			MemorySwap: spec.MemoryBytes,
		},
	}

	resp, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, &network.NetworkingConfig{}, (*specs.Platform)(nil), name)
	if err != nil {
		return "", fmt.Errorf("dockerrt: create container: %w", err)
	}
	return resp.ID, nil
}

func (d *DockerRuntime) ContainerStart(ctx context.Context, id string) error {
	if err := d.cli.ContainerStart(ctx, id, types.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("dockerrt: start container %s: %w", id, err)
	}
	return nil
}

func (d *DockerRuntime) ContainerStop(ctx context.Context, id string, timeout time.Duration) error {
	secs := int(timeout.Seconds())
	if err := d.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &secs}); err != nil {
		return fmt.Errorf("dockerrt: stop container %s: %w", id, err)
	}
	return nil
}

func (d *DockerRuntime) ContainerKill(ctx context.Context, id string, signal string) error {
	if err := d.cli.ContainerKill(ctx, id, signal); err != nil {
		return fmt.Errorf("dockerrt: kill container %s: %w", id, err)
	}
	return nil
}

func (d *DockerRuntime) ContainerWait(ctx context.Context, id string, timeout time.Duration) (WaitResult, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	statusCh, errCh := d.cli.ContainerWait(waitCtx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if waitCtx.Err() != nil {
			return WaitResult{TimedOut: true}, nil
		}
		return WaitResult{}, fmt.Errorf("dockerrt: wait container %s: %w", id, err)
	case status := <-statusCh:
		return WaitResult{ExitCode: int(status.StatusCode)}, nil
	case <-waitCtx.Done():
		return WaitResult{TimedOut: true}, nil
	}
}

func (d *DockerRuntime) ContainerLogs(ctx context.Context, id string) (string, string, error) {
	rc, err := d.cli.ContainerLogs(ctx, id, types.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", fmt.Errorf("dockerrt: logs for container %s: %w", id, err)
	}
	defer rc.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, rc); err != nil && err != io.EOF {
		return "", "", fmt.Errorf("dockerrt: demux logs for container %s: %w", id, err)
	}
	return stdout.String(), stderr.String(), nil
}

// statsResponse mirrors the subset of the Docker stats JSON payload this
// module needs; decoding a local struct avoids coupling to a particular
// docker/docker typed-stats version.
type statsResponse struct {
	MemoryStats struct {
		Usage uint64 `json:"usage"`
		Limit uint64 `json:"limit"`
	} `json:"memory_stats"`
}

func (d *DockerRuntime) ContainerStats(ctx context.Context, id string) (StatsSnapshot, error) {
	resp, err := d.cli.ContainerStats(ctx, id, false)
	if err != nil {
		return StatsSnapshot{}, fmt.Errorf("dockerrt: stats for container %s: %w", id, err)
	}
	defer resp.Body.Close()

	var s statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return StatsSnapshot{}, fmt.Errorf("dockerrt: decode stats for container %s: %w", id, err)
	}
	return StatsSnapshot{UsageBytes: int64(s.MemoryStats.Usage), LimitBytes: int64(s.MemoryStats.Limit)}, nil
}

func (d *DockerRuntime) ContainerInspect(ctx context.Context, id string) (InspectResult, error) {
	info, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		return InspectResult{}, fmt.Errorf("dockerrt: inspect container %s: %w", id, err)
	}
	if info.State == nil {
		return InspectResult{}, nil
	}
	return InspectResult{
		Running:   info.State.Running,
		OOMKilled: info.State.OOMKilled,
		ExitCode:  info.State.ExitCode,
	}, nil
}

func (d *DockerRuntime) ContainerRemove(ctx context.Context, id string) error {
	err := d.cli.ContainerRemove(ctx, id, types.ContainerRemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil {
		return fmt.Errorf("dockerrt: remove container %s: %w", id, err)
	}
	return nil
}

func (d *DockerRuntime) HostMemTotal(ctx context.Context) (int64, error) {
	info, err := d.cli.Info(ctx)
	if err != nil {
		return 0, fmt.Errorf("dockerrt: host info: %w", err)
	}
	return info.MemTotal, nil
}
