package execext

import (
	"context"
	"fmt"
	"io"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// interpret runs line with the embedded POSIX shell interpreter so pipes,
// redirections and quoting behave the same on every platform
func (r *Runner) interpret(ctx context.Context, line string, stdout, stderr io.Writer) error {
	file, err := syntax.NewParser().Parse(strings.NewReader(line), "")
	if err != nil {
		return fmt.Errorf("failed to parse command %q: %w", line, err)
	}

	runner, err := interp.New(
		interp.Dir(r.opts.Dir),
		interp.Env(expand.ListEnviron(r.Environ()...)),
		interp.StdIO(nil, stdout, stderr),
	)
	if err != nil {
		return fmt.Errorf("failed to create shell: %w", err)
	}
	return runner.Run(ctx, file)
}

func shellExitStatus(err error) (uint8, bool) {
	return interp.IsExitStatus(err)
}
