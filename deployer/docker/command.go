package docker

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/ethereum/go-ethereum/log"
)

var (
	ErrNonzeroExit  = errors.New("nonzero exit code")
	ErrFileNotFound = errors.New("file not found in tar")
	ErrNoContainer  = errors.New("container not created")
)

const LinuxAMD64Platform = "linux/amd64"

// Command wraps a single container. With a command set, Run creates, starts
// and waits for it. Without one, Create only creates it so that files baked
// into the image can be copied out.
type Command struct {
	image      string
	platform   string
	cmd        []string
	stdout     io.Writer
	stderr     io.Writer
	dkr        *client.Client
	lgr        log.Logger
	id         string
	logsClosed chan struct{}
}

type CommandOpt func(d *Command)

func WithCmd(cmd ...string) CommandOpt {
	return func(d *Command) {
		d.cmd = cmd
	}
}

func WithImagePlatform(platform string) CommandOpt {
	return func(d *Command) {
		d.platform = platform
	}
}

func NewCommand(lgr log.Logger, image string, opts ...CommandOpt) (*Command, error) {
	dkr, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	d := &Command{
		image:      image,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		dkr:        dkr,
		lgr:        lgr,
		logsClosed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Create pulls the image if needed and creates the container without
// starting it.
func (d *Command) Create(ctx context.Context) error {
	if d.id != "" {
		return nil
	}

	if err := d.ensureImage(ctx); err != nil {
		return err
	}

	resp, err := d.dkr.ContainerCreate(ctx, &container.Config{
		Image: d.image,
		Cmd:   d.cmd,
	}, &container.HostConfig{}, nil, nil, "")
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	d.id = resp.ID
	d.lgr.Debug("container created", "id", d.id, "image", d.image)
	return nil
}

// Run creates the container, starts it and blocks until it exits.
func (d *Command) Run(ctx context.Context) error {
	if err := d.Create(ctx); err != nil {
		return err
	}

	if err := d.dkr.ContainerStart(ctx, d.id, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	go d.streamLogs(ctx)

	d.lgr.Info("container started", "id", d.id)

	return d.awaitContainerExit(ctx)
}

func (d *Command) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if d.id == "" {
		return nil, ErrNoContainer
	}

	stream, _, err := d.dkr.CopyFromContainer(ctx, d.id, path)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrFileNotFound)
		}
		return nil, fmt.Errorf("failed to copy file from container: %w", err)
	}
	defer stream.Close()

	return readTarFile(stream, filepath.Base(path))
}

// Remove deletes the container. It is a no-op if none was created.
func (d *Command) Remove(ctx context.Context) error {
	if d.id == "" {
		return nil
	}
	if err := d.dkr.ContainerRemove(ctx, d.id, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("failed to remove container %s: %w", d.id, err)
	}
	d.lgr.Debug("container removed", "id", d.id)
	d.id = ""
	return nil
}

func readTarFile(r io.Reader, filename string) ([]byte, error) {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil, ErrFileNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar header: %w", err)
		}
		if header.Name == filename {
			return io.ReadAll(tr)
		}
	}
}

func (d *Command) ensureImage(ctx context.Context) error {
	exists, err := d.imageExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check if image exists: %w", err)
	}

	if !exists {
		if err := d.pullImage(ctx); err != nil {
			return fmt.Errorf("failed to pull image: %w", err)
		}
	}

	return nil
}

func (d *Command) imageExists(ctx context.Context) (bool, error) {
	images, err := d.dkr.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return false, fmt.Errorf("failed to list images: %w", err)
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == d.image {
				d.lgr.Debug("image found in cache", "image", d.image)
				return true, nil
			}
		}
	}

	return false, nil
}

func (d *Command) pullImage(ctx context.Context) error {
	d.lgr.Info("pulling image", "image", d.image)
	reader, err := d.dkr.ImagePull(ctx, d.image, image.PullOptions{
		Platform: d.platform,
	})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	if _, err := io.Copy(d.stderr, reader); err != nil {
		return fmt.Errorf("failed to copy image pull output: %w", err)
	}
	return nil
}

func (d *Command) streamLogs(ctx context.Context) {
	logs, err := d.dkr.ContainerLogs(ctx, d.id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	defer close(d.logsClosed)
	if err != nil {
		d.lgr.Error("failed to stream logs", "err", err)
		return
	}
	defer logs.Close()

	_, _ = stdcopy.StdCopy(d.stdout, d.stderr, logs)
}

func (d *Command) awaitContainerExit(ctx context.Context) error {
	statusCh, errCh := d.dkr.ContainerWait(ctx, d.id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if errors.Is(err, context.Canceled) {
			return err
		}

		<-d.logsClosed

		return fmt.Errorf("error in container: %w", err)
	case <-ctx.Done():
		d.lgr.Info("context cancelled, stopping container", "id", d.id)
		timeout := 0
		if err := d.dkr.ContainerStop(context.Background(), d.id, container.StopOptions{
			Timeout: &timeout,
		}); err != nil {
			d.lgr.Error("error stopping container", "id", d.id, "err", err)
		}

		<-d.logsClosed

		return ctx.Err()
	case status := <-statusCh:
		if status.StatusCode != 0 {
			return fmt.Errorf("container %s exited with %d: %w", d.id, status.StatusCode, ErrNonzeroExit)
		}

		<-d.logsClosed

		return nil
	}
}
