// Package entrypoint maps a command line to a process exit code.
package entrypoint

import (
	"context"
	"errors"
	"io"
	"os"

	"mdspider/internal/cli"
)

// Execute runs the command line in args (args[0] is the program name). The
// returned error, if any, has not been printed yet.
func Execute(args []string) (int, error) {
	return run(context.Background(), args, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) (int, error) {
	cmd := cli.NewRootCmd(stdout, stderr)
	rest := []string{}
	if len(args) > 1 {
		rest = args[1:]
	}
	cmd.SetArgs(rest)

	if err := cmd.ExecuteContext(ctx); err != nil {
		var exitErr cli.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code, exitErr.Err
		}
		return 1, err
	}
	return 0, nil
}
