package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	logx "mediafetch/pkg/logx"
)

const containerDir = "/downloads"

// DockerRunner runs each fetch in a fresh container whose entrypoint is
// yt-dlp. The fetch directory is bind-mounted into the container.
type DockerRunner struct {
	cli     *client.Client
	image   string
	network string
	log     logx.Logger
}

func NewDockerRunner(image, network string, log logx.Logger) (*DockerRunner, error) {
	if strings.TrimSpace(image) == "" {
		return nil, errors.New("docker runner: image is required")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &DockerRunner{cli: cli, image: image, network: network, log: log}, nil
}

func (r *DockerRunner) Close() error { return r.cli.Close() }

func (r *DockerRunner) Run(ctx context.Context, dir string, args []string) ([]byte, error) {
	cmd := append([]string{"-P", containerDir}, args...)
	hostCfg := &container.HostConfig{
		Binds: []string{dir + ":" + containerDir},
	}
	if r.network != "" {
		hostCfg.NetworkMode = container.NetworkMode(r.network)
	}
	resp, err := r.cli.ContainerCreate(ctx, &container.Config{
		Image:      r.image,
		Cmd:        cmd,
		WorkingDir: containerDir,
		User:       fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
		Tty:        false,
	}, hostCfg, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	defer func() {
		rmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.cli.ContainerRemove(rmCtx, resp.ID, container.RemoveOptions{Force: true}); err != nil {
			r.log.Warn("container remove failed", logx.String("container", shortID(resp.ID)), logx.Err(err))
		}
	}()

	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}
	r.log.Debug("fetch container started", logx.String("container", shortID(resp.ID)), logx.String("image", r.image))

	var exitCode int64
	statusCh, errCh := r.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("wait container: %w", err)
		}
	case st := <-statusCh:
		exitCode = st.StatusCode
		if st.Error != nil && st.Error.Message != "" {
			return nil, fmt.Errorf("wait container: %s", st.Error.Message)
		}
	}

	logs, err := r.cli.ContainerLogs(ctx, resp.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, fmt.Errorf("container logs: %w", err)
	}
	defer logs.Close()
	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return nil, fmt.Errorf("read container output: %w", err)
	}
	if exitCode != 0 {
		return stdout.Bytes(), &RunError{Err: fmt.Errorf("exit status %d", exitCode), Stderr: stderr.String()}
	}
	return stdout.Bytes(), nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
