package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fmueller/ytscribe/internal/cli"
	"github.com/fmueller/ytscribe/internal/pipeline"
	"github.com/spf13/cobra"
)

const (
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// run executes the root command and maps its error to an exit code. Pipeline
// failures are already logged as [ERROR] lines; stderr gets the bare cause.
func run(args []string, stderr io.Writer) int {
	root := cli.NewRootCmd()
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return 0
	}

	fmt.Fprintln(stderr, err)
	if !isUsageError(err) {
		return exitFailure
	}
	fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", helpHintTarget(root, args))
	return exitUsage
}

// cobra reports argument and flag problems as plain errors, so those are
// recognised by message.
var cobraUsagePatterns = []string{
	"unknown command",
	"unknown flag",
	"unknown shorthand flag",
	"accepts ",
	"requires at least",
	"requires at most",
	"requires between",
	"required flag",
	"invalid argument \"",
}

// isUsageError reports whether err means the invocation itself was wrong,
// as opposed to a download, transcription or write failure.
func isUsageError(err error) bool {
	if err == nil {
		return false
	}
	switch pipeline.KindOf(err) {
	case pipeline.KindValidation:
		return true
	case "":
	default:
		return false
	}

	message := strings.ToLower(err.Error())
	for _, pattern := range cobraUsagePatterns {
		if strings.Contains(message, pattern) {
			return true
		}
	}
	return false
}

// helpHintTarget names the subcommand the user was invoking, or the root
// when args start with a URL or a flag.
func helpHintTarget(root *cobra.Command, args []string) string {
	if root == nil {
		return "ytscribe"
	}
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return root.CommandPath()
	}

	found, _, err := root.Find(args)
	if err != nil || found == nil {
		return root.CommandPath()
	}
	return found.CommandPath()
}
