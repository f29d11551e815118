package main

import (
	"testing"

	"github.com/cuemby/recoverd/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestBuildVNNMap_OnlyLmasterCapableNodes(t *testing.T) {
	active := []types.Node{
		{PNN: 0, Capabilities: types.CapLmaster | types.CapRecmaster},
		{PNN: 1, Capabilities: types.CapRecmaster},
		{PNN: 2, Capabilities: types.CapLmaster},
	}

	vnn := buildVNNMap(active, 7)

	assert.Equal(t, uint32(7), vnn.Generation)
	assert.Equal(t, []types.PNN{0, 2}, vnn.Map)
}

func TestBuildVNNMap_NoLmasterCapableNodes(t *testing.T) {
	active := []types.Node{{PNN: 0, Capabilities: types.CapRecmaster}}

	vnn := buildVNNMap(active, 1)

	assert.Empty(t, vnn.Map)
}
