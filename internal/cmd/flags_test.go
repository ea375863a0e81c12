package cmd

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/courtside/internal/config"
	"github.com/dotcommander/courtside/internal/errs"
)

var flagParseErrorTests = []struct {
	in     string
	flag   string
	reason string
}{
	{
		"unknown flag: --nope",
		"--nope",
		"Flag %s is missing.",
	},
	{
		"flag needs an argument: --date",
		"--date",
		"Flag %s needs an argument.",
	},
	{
		"flag needs an argument: 'd' in -d",
		"-d",
		"Flag %s needs an argument.",
	},
	{
		`invalid argument "20dd" for "--older-than" flag: time: unknown unit "dd" in duration "20dd"`,
		"--older-than",
		"Flag %s have an invalid argument.",
	},
	{
		`invalid argument "wide" for "--word-wrap" flag: strconv.ParseInt: parsing "wide": invalid syntax`,
		"--word-wrap",
		"Flag %s have an invalid argument.",
	},
	{
		`invalid argument "nope" for "-r, --raw" flag: strconv.ParseBool: parsing "nope": invalid syntax`,
		"-r, --raw",
		"Flag %s have an invalid argument.",
	},
}

func TestFlagParseError(t *testing.T) {
	for _, tf := range flagParseErrorTests {
		t.Run(tf.in, func(t *testing.T) {
			err := newFlagParseError(errors.New(tf.in))
			require.Equal(t, tf.flag, err.Flag())
			require.Equal(t, tf.reason, err.ReasonFormat())
			require.Equal(t, tf.in, err.Error())
			require.Equal(t, errs.CodeUsage, errs.ExitCode(err))
		})
	}
}

func TestReportFlags(t *testing.T) {
	t.Run("game flags are registered and parsed", func(t *testing.T) {
		cmd := NewRootCmd(BuildInfo{}, config.Config{}, nil)

		err := cmd.ParseFlags([]string{"-d", "20250115", "--home-team", "HOU", "--away-team", "DAL", "--no-save"})
		require.NoError(t, err)

		require.Equal(t, "20250115", cmd.Flag("date").Value.String())
		require.Equal(t, "HOU", cmd.Flag("home-team").Value.String())
		require.Equal(t, "DAL", cmd.Flag("away-team").Value.String())
		require.Equal(t, "true", cmd.Flag("no-save").Value.String())
	})

	t.Run("provider flag is persistent", func(t *testing.T) {
		cmd := NewRootCmd(BuildInfo{}, config.Config{}, nil)
		require.NotNil(t, cmd.PersistentFlags().Lookup("provider"))
		require.NotNil(t, cmd.PersistentFlags().Lookup("reasoning-provider"))
	})
}

func TestDurationFlag(t *testing.T) {
	var d time.Duration
	f := newDurationFlag(0, &d)
	require.NoError(t, f.Set("7d"))
	require.Equal(t, 7*24*time.Hour, d)
	require.Error(t, f.Set("20dd"))
}

func TestTeamCodes(t *testing.T) {
	codes := teamCodes("ho")
	require.Len(t, codes, 1)
	require.Contains(t, codes[0], "HOU\t")
}

func TestMaskDSN(t *testing.T) {
	require.Equal(t, "postgres://courtside:********@db:5432/courtside",
		maskDSN("postgres://courtside:secret@db:5432/courtside"))
	require.Equal(t, "file:memory.db", maskDSN("file:memory.db"))
	require.Equal(t, "redis://localhost:6379/0", maskDSN("redis://localhost:6379/0"))
}

func TestErrorHint(t *testing.T) {
	require.Contains(t, errorHint(errs.CodeFetch), "--browser")
	require.Contains(t, errorHint(errs.CodeParse), "--home-team")
	require.Contains(t, errorHint(errs.CodeConfig), "config show")
	require.Empty(t, errorHint(errs.CodeGeneric))
	require.Empty(t, errorHint(errs.CodeNarration))
}

func TestInstallTarget(t *testing.T) {
	for in, want := range map[string]string{
		"":       "github.com/dotcommander/courtside@latest",
		"latest": "github.com/dotcommander/courtside@latest",
		"v0.4.0": "github.com/dotcommander/courtside@v0.4.0",
		"0.4.0":  "github.com/dotcommander/courtside@v0.4.0",
	} {
		t.Run(in, func(t *testing.T) {
			got, err := installTarget(in)
			require.NoError(t, err)
			require.Equal(t, want, got)
		})
	}

	_, err := installTarget("v1 @evil")
	require.Equal(t, errs.CodeUsage, errs.ExitCode(err))
}

func TestVersionTemplate(t *testing.T) {
	require.Contains(t, versionTemplate(BuildInfo{CommitSHA: "0123456789abcdef"}), "{{.Version}} (")
	require.NotContains(t, versionTemplate(BuildInfo{CommitSHA: "abc"}), "(abc")
	require.Equal(t, "v1.2.0", normalizeBuildInfo(BuildInfo{Version: "v1.2.0"}).Version)
}
