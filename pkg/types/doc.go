/*
Package types defines the data model shared by every other package in
recoverd: node identifiers and flags, the node map, capabilities, the
VNN map and its generation id, database descriptors, and the record
header used to order competing writes during a recovery merge.

These types carry no behavior beyond the small invariants defined on
them directly (ElectionMessage.Wins, Record.NewerThan, NodeMap.SameShape
and friends) so that every package that depends on this one agrees on a
single definition of "newer record" or "which candidate wins an
election".
*/
package types
