package registry

import (
	"sync"

	"github.com/cuemby/recoverd/pkg/types"
)

// Registry is the process-lifetime node registry: the current node map
// plus the local node's own identity within it.
type Registry struct {
	mu       sync.RWMutex
	localPNN types.PNN
	nodes    types.NodeMap
}

// New returns a registry for the given local PNN with an empty node map.
func New(localPNN types.PNN) *Registry {
	return &Registry{localPNN: localPNN}
}

// LocalPNN returns the stable PNN of the local node.
func (r *Registry) LocalPNN() types.PNN {
	return r.localPNN
}

// Replace installs a freshly-fetched node map, carrying forward each
// node's previously-observed Flags: the nodes file and node-map RPC
// replies only ever describe identity/address/capability, never a
// node's current BANNED/STOPPED/DISABLED/DISCONNECTED/UNHEALTHY state,
// so a bare overwrite would erase flags set by SetFlags/SetLocalFlags
// on every single call. Call once per monitor iteration.
func (r *Registry) Replace(nodes types.NodeMap) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prevFlags := make(map[types.PNN]types.NodeFlag, len(r.nodes.Nodes))
	for _, n := range r.nodes.Nodes {
		prevFlags[n.PNN] = n.Flags
	}
	for i := range nodes.Nodes {
		if flags, ok := prevFlags[nodes.Nodes[i].PNN]; ok {
			nodes.Nodes[i].Flags = flags
		}
	}
	r.nodes = nodes
}

// Snapshot returns a copy of the current node map.
func (r *Registry) Snapshot() types.NodeMap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Node, len(r.nodes.Nodes))
	copy(out, r.nodes.Nodes)
	return types.NodeMap{Nodes: out}
}

// Node returns the registry entry for pnn, if present.
func (r *Registry) Node(pnn types.PNN) (types.Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nodes.ByPNN(pnn)
}

// LocalNode returns the registry entry for the local node.
func (r *Registry) LocalNode() (types.Node, bool) {
	return r.Node(r.localPNN)
}

// LocalInactive reports whether the local node currently carries any
// INACTIVE flag.
func (r *Registry) LocalInactive() bool {
	n, ok := r.LocalNode()
	return ok && n.Inactive()
}

// SetLocalFlags updates the local node's flags in place, used when a
// local condition (self-ban, disable) changes state between full node
// map refreshes.
func (r *Registry) SetLocalFlags(flags types.NodeFlag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.nodes.Nodes {
		if r.nodes.Nodes[i].PNN == r.localPNN {
			r.nodes.Nodes[i].Flags = flags
			return
		}
	}
}

// SetFlags updates pnn's flags in the cached node map, returning the
// flags it carried before the update. ok is false if pnn is not
// present in the current map.
func (r *Registry) SetFlags(pnn types.PNN, flags types.NodeFlag) (prev types.NodeFlag, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.nodes.Nodes {
		if r.nodes.Nodes[i].PNN == pnn {
			prev = r.nodes.Nodes[i].Flags
			r.nodes.Nodes[i].Flags = flags
			return prev, true
		}
	}
	return 0, false
}

// Active returns every node not currently flagged inactive.
func (r *Registry) Active() []types.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nodes.Active()
}

// Count returns the total number of nodes in the current map,
// including inactive ones — the node count used by the ban
// bookkeeper's threshold.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes.Nodes)
}

// Addresses returns the pnn -> dial address map for every node
// currently known to the registry, used by the Control RPC client to
// resolve fan-out targets.
func (r *Registry) Addresses() map[types.PNN]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[types.PNN]string, len(r.nodes.Nodes))
	for _, n := range r.nodes.Nodes {
		out[n.PNN] = n.Address
	}
	return out
}
