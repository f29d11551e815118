/*
Package registry holds the in-memory node registry: the current node
map, the local node's own PNN and flags, and the address each PNN dials
over Control RPC. It is refreshed once per monitor iteration and the
master's copy is treated as authoritative while a recovery is in
progress.
*/
package registry
