package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dotcommander/courtside/internal/errs"
)

const installModule = "github.com/dotcommander/courtside"

func newUpgradeCmd(rt *runtime) *cobra.Command {
	var version string
	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade courtside with go install",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			pkg, err := installTarget(version)
			if err != nil {
				return err
			}
			if !rt.cfg.Quiet {
				fmt.Fprintf(os.Stderr, "Current version: %s\n", rt.build.Version)
				fmt.Fprintf(os.Stderr, "Running go install %s ...\n", pkg)
			}

			gobin, err := exec.LookPath("go")
			if err != nil {
				return errs.Wrap(err, "The Go toolchain is needed to upgrade.")
			}
			install := exec.Command(gobin, "install", pkg) //nolint:gosec
			install.Stdout = os.Stdout
			install.Stderr = os.Stderr
			if err := install.Run(); err != nil {
				return errs.Wrap(err, "go install failed.")
			}

			if !rt.cfg.Quiet {
				fmt.Fprintln(os.Stderr, "Upgrade complete.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&version, "version", "latest", "Release to install, e.g. v0.4.0")
	return cmd
}

// installTarget returns the go install argument for version.
func installTarget(version string) (string, error) {
	version = strings.TrimSpace(version)
	switch {
	case version == "" || version == "latest":
		return installModule + "@latest", nil
	case strings.ContainsAny(version, " @/"):
		return "", errs.Error{Reason: fmt.Sprintf("Invalid version %q.", version), Code: errs.CodeUsage}
	case !strings.HasPrefix(version, "v"):
		version = "v" + version
	}
	return installModule + "@" + version, nil
}
