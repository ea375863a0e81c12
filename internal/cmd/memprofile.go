package cmd

import (
	"fmt"
	"os"
	"runtime/pprof"
)

// memprofile is the hidden --memprofile flag.
var memprofile bool

// maybeWriteMemProfile writes courtside_<profile>.profile for the heap and
// allocs profiles to the current directory.
func maybeWriteMemProfile() {
	if !memprofile {
		return
	}
	for _, name := range []string{"heap", "allocs"} {
		if err := writeProfile(name); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
	}
}

func writeProfile(name string) error {
	f, err := os.Create("courtside_" + name + ".profile")
	if err != nil {
		return fmt.Errorf("create %s profile: %w", name, err)
	}
	defer f.Close() //nolint:errcheck
	if err := pprof.Lookup(name).WriteTo(f, 0); err != nil {
		return fmt.Errorf("write %s profile: %w", name, err)
	}
	return nil
}
