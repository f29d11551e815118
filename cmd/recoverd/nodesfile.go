package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cuemby/recoverd/pkg/types"
)

// defaultCapabilities is granted to every node loaded from the nodes
// file. Capabilities are not probed over RPC (the monitor's capability
// refresh returns the node map unchanged), so every node is eligible
// for every role and keeps these capabilities until the nodes file is
// loaded again.
const defaultCapabilities = types.CapRecmaster | types.CapLmaster | types.CapParallelRecovery

// loadNodesFile reads a nodes file, one "ADDRESS" per line, PNN
// assigned by line order starting at 0 - the same convention CTDB's
// own nodes file uses. Blank lines and lines starting with '#' are
// skipped without consuming a PNN.
func loadNodesFile(path string) (types.NodeMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.NodeMap{}, fmt.Errorf("nodesfile: open %s: %w", path, err)
	}
	defer f.Close()

	var nodes []types.Node
	var pnn types.PNN
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		nodes = append(nodes, types.Node{
			PNN:          pnn,
			Address:      line,
			Capabilities: defaultCapabilities,
		})
		pnn++
	}
	if err := scanner.Err(); err != nil {
		return types.NodeMap{}, fmt.Errorf("nodesfile: read %s: %w", path, err)
	}
	return types.NodeMap{Nodes: nodes}, nil
}

// pnnString formats pnn for inclusion in an event's string-keyed
// metadata map.
func pnnString(pnn types.PNN) string {
	return strconv.FormatUint(uint64(pnn), 10)
}
