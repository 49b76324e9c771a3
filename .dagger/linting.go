package main

import (
	"context"
	"fmt"

	"dagger/recall/internal/dagger"
)

const golangciLintVersion = "v2.8.0"

// lintOpts layers golangci-lint on goContainer so cgo and the module cache
// are already in place.
func (r *Recall) lintOpts() dagger.GolangcilintOpts {
	base := r.goContainer().
		WithExec([]string{
			"go", "install",
			fmt.Sprintf("github.com/golangci/golangci-lint/v2/cmd/golangci-lint@%s", golangciLintVersion),
		})

	return dagger.GolangcilintOpts{
		BaseCtr: base,
		Config:  r.Source.File(".golangci.yml"),
	}
}

// CheckLint reports lint findings without fixing them.
func (r *Recall) CheckLint(ctx context.Context) (string, error) {
	return dag.Golangcilint(r.Source, r.lintOpts()).Check(ctx)
}

// FixLint applies golangci-lint fixes and returns the modified source.
func (r *Recall) FixLint(ctx context.Context) *dagger.Directory {
	return dag.Golangcilint(r.Source, r.lintOpts()).Lint()
}
