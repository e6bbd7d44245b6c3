package cli

import "github.com/spf13/cobra"

// ExitError carries a process exit code to the entrypoint. A nil Err exits
// quietly with Code.
type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return "error"
}

func (e ExitError) Unwrap() error {
	return e.Err
}

// usageArgs turns argument count errors into exit code 2.
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

func usageError(err error) error {
	return ExitError{Code: 2, Err: err}
}
