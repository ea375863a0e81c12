package cmd

import (
	"os"

	"github.com/dotcommander/courtside/internal/config"
	"github.com/dotcommander/courtside/internal/errs"
)

// Execute wires commands, runs Cobra and exits with the code of the error.
func Execute(build BuildInfo, cfg config.Config, cfgErr error) {
	defer maybeWriteMemProfile()

	root := NewRootCmd(build, cfg, cfgErr)
	if err := root.Execute(); err != nil {
		handleError(err)
		os.Exit(errs.ExitCode(err)) //nolint:gocritic
	}
}
