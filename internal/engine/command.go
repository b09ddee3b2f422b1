package engine

import (
	"fmt"
	"os"

	"github.com/wagiedev/formlink-go/internal/config"
)

// PipeFDs are the child descriptors carrying statements and results in
// config.LayoutPipeFD. They follow stdin, stdout and stderr.
const PipeFDs = "3,4"

// BuildArgs constructs the engine arguments.
//
// The order is: flags from the configured command, Options.Args, the layout
// flags, and the init script last since FORM treats the final argument as
// the program to run.
func BuildArgs(commandArgs []string, options *config.Options, initFile string) []string {
	args := make([]string, 0, len(commandArgs)+len(options.Args)+4)
	args = append(args, commandArgs...)
	args = append(args, options.Args...)

	if options.Layout == config.LayoutPipeFD {
		args = append(args, "-M", "-pipe", PipeFDs)
	}

	if initFile != "" {
		args = append(args, initFile)
	}

	return args
}

// BuildEnvironment constructs the environment variables for the engine process.
func BuildEnvironment(options *config.Options) []string {
	env := os.Environ()

	for key, value := range options.Env {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	return env
}
