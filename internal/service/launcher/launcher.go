package launcher

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/oshokin/steam-launcher/internal/config"
	"github.com/oshokin/steam-launcher/internal/logger"
)

var (
	// ErrUnsupportedOS indicates the client cannot run on this operating system.
	ErrUnsupportedOS = errors.New("unsupported operating system")
	// ErrDispatch marks a failure to start the client.
	ErrDispatch = errors.New("unable to start the client")
)

// crashReportingFlags turn off the client's own crash reporters.
//
//nolint:gochecknoglobals // Fixed argument list.
var crashReportingFlags = []string{"-nominidumps", "-nobreakpad"}

// Dispatcher starts the client.
type Dispatcher interface {
	// Dispatch runs entry with argv and environ. On success it does not return.
	Dispatch(ctx context.Context, entry string, argv, environ []string) error
}

// CheckPlatform returns ErrUnsupportedOS unless the client can run here.
func CheckPlatform() error {
	return checkPlatform(runtime.GOOS)
}

func checkPlatform(goos string) error {
	if strings.EqualFold(goos, "linux") {
		return nil
	}

	return fmt.Errorf("%s: %w", goos, ErrUnsupportedOS)
}

// Command returns the argument vector for the client: entry, the fixed flags,
// then args unchanged.
func Command(entry string, args []string) []string {
	argv := make([]string, 0, 1+len(crashReportingFlags)+len(args))
	argv = append(argv, entry)
	argv = append(argv, crashReportingFlags...)

	return append(argv, args...)
}

// ChildEnvironment returns environ with LANG forced to the default locale
// when the user configured none.
func ChildEnvironment(environ []string, env *config.Environment) []string {
	result := make([]string, 0, len(environ)+1)

	for _, entry := range environ {
		if env.NeedsLocale() && strings.HasPrefix(entry, "LANG=") {
			continue
		}

		result = append(result, entry)
	}

	if env.NeedsLocale() {
		result = append(result, "LANG="+config.DefaultLocale)
	}

	return result
}

// Launch builds the client command for entry and hands it to dispatcher.
func Launch(ctx context.Context, dispatcher Dispatcher, entry string, args, environ []string) error {
	argv := Command(entry, args)

	logger.InfoKV(logger.WithName(ctx, "launcher"), "Starting the client", "argv", argv)

	if err := dispatcher.Dispatch(ctx, entry, argv, environ); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDispatch, entry, err)
	}

	return nil
}

// ExecDispatcher replaces the current process with the client.
type ExecDispatcher struct{}

// Dispatch calls execve. Buffered logs are flushed first since no deferred
// function runs after a successful exec.
func (ExecDispatcher) Dispatch(_ context.Context, entry string, argv, environ []string) error {
	logger.Sync()

	return unix.Exec(entry, argv, environ)
}
