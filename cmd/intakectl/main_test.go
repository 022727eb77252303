package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/config"
)

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"migrate", "up"}, {"migrate", "status"}, {"approvals", "import"}, {"archive", "list"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestArchiveListRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"archive", "list", "--query", "wdb"})
	err := root.Execute()
	assert.ErrorIs(t, err, config.ErrNoDatabase)
}

func TestApprovalsImportNeedsFile(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"approvals", "import"})
	assert.Error(t, root.Execute())
}
