// Package iocli abstracts terminal input/output so commands can be tested
// with scripted input.
package iocli

// IO is the terminal surface used by CLI commands.
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)

	// ReadInput prompts and reads one trimmed line.
	ReadInput(prompt string) (string, error)

	// ReadPassword prompts and reads a line without echo.
	ReadPassword(prompt string) (string, error)
}
