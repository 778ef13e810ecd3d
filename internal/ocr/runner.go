package ocr

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner lets us stub the external recognition binary in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.Bytes(), errb.Bytes(), err
}

// LookPath resolves a binary on PATH; indirected for tests.
type lookPathFunc func(file string) (string, error)

var lookPath lookPathFunc = exec.LookPath
