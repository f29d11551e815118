package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/recoverd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeNodesFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nodes")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadNodesFile_AssignsPNNByLineOrder(t *testing.T) {
	path := writeNodesFile(t, "10.0.0.1:4242\n10.0.0.2:4242\n10.0.0.3:4242\n")

	nodes, err := loadNodesFile(path)
	require.NoError(t, err)
	require.Len(t, nodes.Nodes, 3)
	assert.Equal(t, types.PNN(0), nodes.Nodes[0].PNN)
	assert.Equal(t, types.PNN(1), nodes.Nodes[1].PNN)
	assert.Equal(t, types.PNN(2), nodes.Nodes[2].PNN)
	assert.Equal(t, "10.0.0.2:4242", nodes.Nodes[1].Address)
}

func TestLoadNodesFile_SkipsBlankAndCommentLinesWithoutConsumingPNN(t *testing.T) {
	path := writeNodesFile(t, "10.0.0.1:4242\n\n# a decommissioned node\n10.0.0.2:4242\n")

	nodes, err := loadNodesFile(path)
	require.NoError(t, err)
	require.Len(t, nodes.Nodes, 2)
	assert.Equal(t, types.PNN(1), nodes.Nodes[1].PNN)
}

func TestLoadNodesFile_GrantsDefaultCapabilities(t *testing.T) {
	path := writeNodesFile(t, "10.0.0.1:4242\n")

	nodes, err := loadNodesFile(path)
	require.NoError(t, err)
	assert.Equal(t, defaultCapabilities, nodes.Nodes[0].Capabilities)
}

func TestLoadNodesFile_MissingFile(t *testing.T) {
	_, err := loadNodesFile(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}

func TestPnnString(t *testing.T) {
	assert.Equal(t, "0", pnnString(types.PNN(0)))
	assert.Equal(t, "42", pnnString(types.PNN(42)))
}
