package registry

import (
	"testing"

	"github.com/cuemby/recoverd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMap() types.NodeMap {
	return types.NodeMap{Nodes: []types.Node{
		{PNN: 0, Address: "10.0.0.1:4242"},
		{PNN: 1, Address: "10.0.0.2:4242", Flags: types.FlagBanned},
		{PNN: 2, Address: "10.0.0.3:4242"},
	}}
}

func TestRegistry_ReplaceAndSnapshot(t *testing.T) {
	r := New(0)
	r.Replace(sampleMap())
	snap := r.Snapshot()
	assert.Len(t, snap.Nodes, 3)
}

func TestRegistry_Node(t *testing.T) {
	r := New(0)
	r.Replace(sampleMap())
	n, ok := r.Node(2)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.3:4242", n.Address)

	_, ok = r.Node(99)
	assert.False(t, ok)
}

func TestRegistry_LocalInactive(t *testing.T) {
	r := New(1)
	r.Replace(sampleMap())
	assert.True(t, r.LocalInactive())

	r2 := New(0)
	r2.Replace(sampleMap())
	assert.False(t, r2.LocalInactive())
}

func TestRegistry_SetLocalFlags(t *testing.T) {
	r := New(0)
	r.Replace(sampleMap())
	r.SetLocalFlags(types.FlagUnhealthy)
	n, _ := r.LocalNode()
	assert.True(t, n.Flags.Has(types.FlagUnhealthy))
}

func TestRegistry_ActiveExcludesInactive(t *testing.T) {
	r := New(0)
	r.Replace(sampleMap())
	active := r.Active()
	assert.Len(t, active, 2)
}

func TestRegistry_Count(t *testing.T) {
	r := New(0)
	r.Replace(sampleMap())
	assert.Equal(t, 3, r.Count())
}

func TestRegistry_ReplacePreservesPreviouslyObservedFlags(t *testing.T) {
	r := New(0)
	r.Replace(sampleMap())
	r.SetFlags(types.PNN(2), types.FlagStopped)

	// A fresh fetch (e.g. a nodes-file reload) carries no flags of its
	// own; the BANNED/STOPPED state set above must survive it.
	r.Replace(types.NodeMap{Nodes: []types.Node{
		{PNN: 0, Address: "10.0.0.1:4242"},
		{PNN: 1, Address: "10.0.0.2:4242"},
		{PNN: 2, Address: "10.0.0.3:4242"},
	}})

	n1, ok := r.Node(1)
	require.True(t, ok)
	assert.True(t, n1.Flags.Has(types.FlagBanned), "node 1's BANNED flag set before the refresh must survive it")

	n2, ok := r.Node(2)
	require.True(t, ok)
	assert.True(t, n2.Flags.Has(types.FlagStopped), "node 2's STOPPED flag set via SetFlags must survive a refresh")
}

func TestRegistry_ReplaceDoesNotCarryFlagsToANewlyAppearingPNN(t *testing.T) {
	r := New(0)
	r.Replace(sampleMap())
	r.SetFlags(types.PNN(1), types.FlagBanned)

	r.Replace(types.NodeMap{Nodes: []types.Node{
		{PNN: 0, Address: "10.0.0.1:4242"},
		{PNN: 3, Address: "10.0.0.4:4242"},
	}})

	n3, ok := r.Node(3)
	require.True(t, ok)
	assert.Equal(t, types.NodeFlag(0), n3.Flags)
}

func TestRegistry_Addresses(t *testing.T) {
	r := New(0)
	r.Replace(sampleMap())
	addrs := r.Addresses()
	assert.Equal(t, "10.0.0.1:4242", addrs[types.PNN(0)])
	assert.Len(t, addrs, 3)
}
