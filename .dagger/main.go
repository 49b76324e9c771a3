// Recall CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub
// actions.
package main

import (
	"context"

	"dagger/recall/internal/dagger"
)

// Recall is the CI/CD pipeline for the recall module.
type Recall struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a Recall pipeline over source.
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", "build", "tmp", ".recall"]
	source *dagger.Directory,
) *Recall {
	return &Recall{
		Source: source,
	}
}

// goContainer is a Debian Go container with gcc and the sqlite headers the
// sqlite store and sqlite-vec bindings link against.
func (r *Recall) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
		WithEnvVariable("CGO_ENABLED", "1").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", r.Source)
}

// Test runs the unit tests with the race detector.
func (r *Recall) Test(ctx context.Context) (string, error) {
	return r.goContainer().
		WithExec([]string{"go", "test", "-race", "./..."}).
		Stdout(ctx)
}

// TestPostgres runs the postgres store tests against a throwaway database.
func (r *Recall) TestPostgres(ctx context.Context) (string, error) {
	db := dag.Container().
		From("postgres:17-alpine").
		WithEnvVariable("POSTGRES_PASSWORD", "recall").
		WithEnvVariable("POSTGRES_DB", "recall").
		WithExposedPort(5432).
		AsService()

	return r.goContainer().
		WithServiceBinding("db", db).
		WithEnvVariable("RECALL_TEST_POSTGRES_DSN", "postgres://postgres:recall@db:5432/recall?sslmode=disable").
		WithExec([]string{"go", "test", "./pkg/storage/postgres/..."}).
		Stdout(ctx)
}
