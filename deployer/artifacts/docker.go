package artifacts

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ace-quest/ace-pozk/deployer/docker"
)

type DockerSourceOpts struct {
	// Image is the full image reference, including the tag.
	Image string
	// Dir is the artifacts directory inside the image. Artifacts are read
	// from <Dir>/<Contract>.sol/<Contract>.json, as Foundry writes them, or
	// from <Dir>/contracts/<Contract>.sol/<Contract>.json, as Hardhat does
	// for sources directly under contracts/.
	Dir string
	// BuildCmd, when set, is run in the container before any artifact is
	// read, e.g. "forge build".
	BuildCmd []string
	Platform string
	Logger   log.Logger
}

// DockerSource reads artifacts out of a contracts image. The container is
// created on first use and removed by Close.
type DockerSource struct {
	opts  DockerSourceOpts
	cmd   *docker.Command
	cache map[string]*Artifact
}

func NewDockerSource(opts DockerSourceOpts) *DockerSource {
	if opts.Platform == "" {
		opts.Platform = docker.LinuxAMD64Platform
	}
	return &DockerSource{opts: opts, cache: make(map[string]*Artifact)}
}

// ArtifactPaths lists the paths tried for name, in order.
func (d *DockerSource) ArtifactPaths(name string) []string {
	file := path.Join(name+".sol", name+".json")
	return []string{
		path.Join(d.opts.Dir, file),
		path.Join(d.opts.Dir, "contracts", file),
	}
}

func (d *DockerSource) Load(ctx context.Context, name string) (*Artifact, error) {
	if a, ok := d.cache[name]; ok {
		return a, nil
	}

	if err := d.ensureContainer(ctx); err != nil {
		return nil, err
	}

	data, err := d.read(ctx, name)
	if err != nil {
		return nil, err
	}

	a, err := Parse(name, data)
	if err != nil {
		return nil, err
	}
	d.cache[name] = a
	return a, nil
}

func (d *DockerSource) read(ctx context.Context, name string) ([]byte, error) {
	for _, p := range d.ArtifactPaths(name) {
		data, err := d.cmd.ReadFile(ctx, p)
		if errors.Is(err, docker.ErrFileNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read artifact %s from image: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s in image %s: %w", name, d.opts.Image, ErrArtifactNotFound)
}

func (d *DockerSource) ensureContainer(ctx context.Context) error {
	if d.cmd != nil {
		return nil
	}

	lgr := d.opts.Logger.New("image", d.opts.Image)
	opts := []docker.CommandOpt{docker.WithImagePlatform(d.opts.Platform)}
	if len(d.opts.BuildCmd) > 0 {
		opts = append(opts, docker.WithCmd(d.opts.BuildCmd...))
	}

	cmd, err := docker.NewCommand(lgr, d.opts.Image, opts...)
	if err != nil {
		return fmt.Errorf("failed to create artifacts command: %w", err)
	}

	if len(d.opts.BuildCmd) > 0 {
		lgr.Info("building contract artifacts", "cmd", d.opts.BuildCmd)
		err = cmd.Run(ctx)
	} else {
		err = cmd.Create(ctx)
	}
	if err != nil {
		_ = cmd.Remove(context.Background())
		return fmt.Errorf("failed to prepare artifacts container: %w", err)
	}

	d.cmd = cmd
	return nil
}

func (d *DockerSource) Close() error {
	if d.cmd == nil {
		return nil
	}
	return d.cmd.Remove(context.Background())
}
