package cmd

import (
	"fmt"
	goruntime "runtime"
	"runtime/debug"

	"github.com/dotcommander/courtside/internal/storage"
)

// BuildInfo is set through -ldflags by release builds.
type BuildInfo struct {
	Version   string
	CommitSHA string
}

func (b BuildInfo) shortSHA() string {
	if len(b.CommitSHA) < storage.IDShort {
		return ""
	}
	return b.CommitSHA[:storage.IDShort]
}

func versionTemplate(b BuildInfo) string {
	v := "{{.Name}} {{.Version}}"
	if sha := b.shortSHA(); sha != "" {
		v += " (" + sha + ")"
	}
	return v + fmt.Sprintf(" %s %s/%s\n", goruntime.Version(), goruntime.GOOS, goruntime.GOARCH)
}

// normalizeBuildInfo fills what ldflags left empty from the module and VCS
// data go build embeds. Untagged local builds become dev-<sha>[-dirty].
func normalizeBuildInfo(b BuildInfo) BuildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		if b.Version == "" {
			b.Version = "unknown"
		}
		return b
	}
	vcs := map[string]string{}
	for _, s := range info.Settings {
		vcs[s.Key] = s.Value
	}
	if b.CommitSHA == "" {
		b.CommitSHA = vcs["vcs.revision"]
	}
	switch {
	case b.Version != "":
	case info.Main.Version != "" && info.Main.Version != "(devel)":
		b.Version = info.Main.Version
	default:
		b.Version = "dev"
		if sha := b.shortSHA(); sha != "" {
			b.Version += "-" + sha
		}
		if vcs["vcs.modified"] == "true" {
			b.Version += "-dirty"
		}
	}
	return b
}
