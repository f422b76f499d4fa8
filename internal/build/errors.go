package build

import (
	"fmt"

	"git.home.luguber.info/inful/selfheal/internal/foundation/errors"
)

// AsError converts a failed result into a classified build error carrying
// the exit code. It returns nil for successful results.
func AsError(command string, r Result) error {
	if r.Succeeded() {
		return nil
	}
	return errors.BuildError(fmt.Sprintf("command %q exited with code %d", command, r.ExitCode)).
		WithContext("exit_code", r.ExitCode).
		WithContext("command", command).
		Build()
}
