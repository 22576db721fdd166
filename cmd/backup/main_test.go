package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmdReportsErrorsOnce(t *testing.T) {
	// The error is printed by main's single "backup failed:" line, so
	// cobra must not also print it.
	cmd := newRootCmd()
	assert.True(t, cmd.SilenceErrors)
	assert.True(t, cmd.SilenceUsage)
}

func TestRootCmdRejectsConflictingFormatFlags(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--sql-only", "--json-only"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
	assert.Empty(t, out.String(), "cobra itself stays silent on failure")
}

func TestRootCmdFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"incremental", "sql-only", "json-only", "no-cleanup"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
}
