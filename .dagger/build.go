package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/recall/internal/dagger"
)

// Build compiles the recall binary for every release platform.
//
// The sqlite drivers need cgo, so each target is built natively inside a
// container of its own architecture.
func (r *Recall) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	outputs := dag.Directory()

	for _, goarch := range []string{"amd64", "arm64"} {
		path := fmt.Sprintf("linux/%s/", goarch)

		build := dag.Container(dagger.ContainerOpts{Platform: dagger.Platform("linux/" + goarch)}).
			From("golang:1.25-bookworm").
			WithExec([]string{"apt-get", "update"}).
			WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
			WithEnvVariable("CGO_ENABLED", "1").
			WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod-"+goarch)).
			WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-"+goarch)).
			WithDirectory("/src", r.Source).
			WithWorkdir("/src").
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/recall"})

		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	return outputs
}

// BuildRelease compiles release binaries stamped with version information.
func (r *Recall) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	const pkg = "github.com/papercomputeco/recall/pkg/utils"

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X '%s.Version=%s'", pkg, version),
		fmt.Sprintf("-X '%s.Sha=%s'", pkg, commit),
		fmt.Sprintf("-X '%s.Buildtime=%s'", pkg, time.Now().UTC().Format(time.RFC3339)),
	}

	return r.Build(ctx, strings.Join(ldflags, " "))
}
