package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unsetEnv clears keys for the test and restores them afterwards.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func testCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "", "")
	return cmd
}

func TestLoad_EnvFileAndFlags(t *testing.T) {
	unsetEnv(t, "EXTRACT_LISTING_CAP", "REGION_DEFAULT", "LOG_LEVEL")

	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("EXTRACT_LISTING_CAP=7\nREGION_DEFAULT=EG\nLOG_LEVEL=warn\n"), 0o644))

	opts := &rootOptions{envFile: envFile}
	cmd := testCommand(opts)
	require.NoError(t, cmd.Flags().Set("log-level", "debug"))

	require.NoError(t, opts.load(cmd))

	assert.Equal(t, 7, opts.cfg.Extraction.ListingCap)
	assert.Equal(t, "EG", opts.cfg.Regions.DefaultCode)
	assert.Equal(t, "debug", opts.cfg.Logging.Level)
	assert.NotNil(t, opts.logger)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	opts := &rootOptions{envFile: filepath.Join(t.TempDir(), "absent.env")}

	require.NoError(t, opts.load(testCommand(opts)))
	assert.NotNil(t, opts.cfg)
}

func TestLoad_InvalidConfig(t *testing.T) {
	t.Setenv("EXTRACT_MAX_ATTEMPTS", "0")
	opts := &rootOptions{}

	err := opts.load(testCommand(opts))
	assert.ErrorContains(t, err, "EXTRACT_MAX_ATTEMPTS")
}

func TestRootCommandTree(t *testing.T) {
	cmd := newRootCmd()

	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "extract")
	assert.Contains(t, names, "serve")

	extract, _, err := cmd.Find([]string{"extract"})
	require.NoError(t, err)
	assert.NotNil(t, extract.Flags().Lookup("region"))
	assert.NotNil(t, extract.Flags().Lookup("listing-cap"))
	assert.Error(t, extract.Args(extract, nil))
}
