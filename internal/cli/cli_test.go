package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stix2 "github.com/threatline/stix2"
)

// testEnv lays out a filesystem store config and returns its path.
func testEnv(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "stores.yaml")
	content := fmt.Sprintf("stores:\n  - kind: filesystem\n    path: %s\n", filepath.Join(tmp, "data"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))
	return cfgPath
}

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestImportGetRoundTrip(t *testing.T) {
	cfgPath := testEnv(t)
	rootOpts := &RootOptions{Format: "text", Config: cfgPath}

	rec, err := stix2.NewIndicator(stix2.Properties{
		"labels":  []string{"malicious-activity"},
		"pattern": "[ipv4-addr:value = '198.51.100.1']",
	})
	require.NoError(t, err)
	data, err := rec.Serialize()
	require.NoError(t, err)

	input := filepath.Join(t.TempDir(), "indicator.json")
	require.NoError(t, os.WriteFile(input, data, 0o644))

	out, err := runCommand(t, NewImportCommand(rootOpts), input)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 object(s)")

	out, err = runCommand(t, NewGetCommand(rootOpts), rec.ID())
	require.NoError(t, err)
	assert.Contains(t, out, rec.ID())
	assert.Contains(t, out, "malicious-activity")
}

func TestImportBundleUnpacksMembers(t *testing.T) {
	cfgPath := testEnv(t)
	rootOpts := &RootOptions{Format: "text", Config: cfgPath}

	ind, err := stix2.NewIndicator(stix2.Properties{
		"labels":  []string{"malicious-activity"},
		"pattern": "[ipv4-addr:value = '198.51.100.1']",
	})
	require.NoError(t, err)
	mal, err := stix2.NewMalware(stix2.Properties{
		"labels": []string{"ransomware"},
		"name":   "Cryptolocker",
	})
	require.NoError(t, err)
	bundle, err := stix2.NewBundle([]*stix2.Record{ind, mal})
	require.NoError(t, err)

	data, err := bundle.Serialize()
	require.NoError(t, err)
	input := filepath.Join(t.TempDir(), "bundle.json")
	require.NoError(t, os.WriteFile(input, data, 0o644))

	out, err := runCommand(t, NewImportCommand(rootOpts), input)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 object(s)")

	// Each member is retrievable on its own.
	for _, id := range []string{ind.ID(), mal.ID()} {
		out, err := runCommand(t, NewGetCommand(rootOpts), id)
		require.NoError(t, err)
		assert.Contains(t, out, id)
	}
}

func TestQueryCommand(t *testing.T) {
	cfgPath := testEnv(t)
	rootOpts := &RootOptions{Format: "text", Config: cfgPath}

	ind, err := stix2.NewIndicator(stix2.Properties{
		"labels":  []string{"malicious-activity"},
		"pattern": "[ipv4-addr:value = '198.51.100.1']",
	})
	require.NoError(t, err)
	mal, err := stix2.NewMalware(stix2.Properties{
		"labels": []string{"ransomware"},
		"name":   "Cryptolocker",
	})
	require.NoError(t, err)

	for _, rec := range []*stix2.Record{ind, mal} {
		data, err := rec.Serialize()
		require.NoError(t, err)
		input := filepath.Join(t.TempDir(), "in.json")
		require.NoError(t, os.WriteFile(input, data, 0o644))
		_, err = runCommand(t, NewImportCommand(rootOpts), input)
		require.NoError(t, err)
	}

	out, err := runCommand(t, NewQueryCommand(rootOpts), "type = indicator")
	require.NoError(t, err)
	assert.Contains(t, out, ind.ID())
	assert.NotContains(t, out, mal.ID())

	out, err = runCommand(t, NewQueryCommand(rootOpts), "labels contains ransomware")
	require.NoError(t, err)
	assert.Contains(t, out, mal.ID())
	assert.NotContains(t, out, ind.ID())
}

func TestExportWrapsInBundle(t *testing.T) {
	cfgPath := testEnv(t)
	rootOpts := &RootOptions{Format: "text", Config: cfgPath}

	rec, err := stix2.NewMalware(stix2.Properties{
		"labels": []string{"ransomware"},
		"name":   "Cryptolocker",
	})
	require.NoError(t, err)
	data, err := rec.Serialize()
	require.NoError(t, err)
	input := filepath.Join(t.TempDir(), "malware.json")
	require.NoError(t, os.WriteFile(input, data, 0o644))
	_, err = runCommand(t, NewImportCommand(rootOpts), input)
	require.NoError(t, err)

	out, err := runCommand(t, NewExportCommand(rootOpts), rec.ID())
	require.NoError(t, err)
	assert.Contains(t, out, `"type": "bundle"`)
	assert.Contains(t, out, `"spec_version": "2.0"`)
	assert.Contains(t, out, rec.ID())
}

func TestGetNotFound(t *testing.T) {
	cfgPath := testEnv(t)
	rootOpts := &RootOptions{Format: "text", Config: cfgPath}

	out, err := runCommand(t, NewGetCommand(rootOpts), "indicator--01234567-89ab-cdef-0123-456789abcdef")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestCommandsRejectBadConfig(t *testing.T) {
	rootOpts := &RootOptions{Format: "text", Config: filepath.Join(t.TempDir(), "absent.yaml")}

	_, err := runCommand(t, NewQueryCommand(rootOpts))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
