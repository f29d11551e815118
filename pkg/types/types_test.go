package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNodeMap_SameShape(t *testing.T) {
	a := NodeMap{Nodes: []Node{{PNN: 0}, {PNN: 1}, {PNN: 2}}}
	b := NodeMap{Nodes: []Node{{PNN: 0}, {PNN: 1}, {PNN: 2}}}
	c := NodeMap{Nodes: []Node{{PNN: 0}, {PNN: 2}, {PNN: 1}}}
	d := NodeMap{Nodes: []Node{{PNN: 0}, {PNN: 1}}}

	assert.True(t, a.SameShape(b))
	assert.False(t, a.SameShape(c))
	assert.False(t, a.SameShape(d))
}

func TestNodeMap_Active(t *testing.T) {
	m := NodeMap{Nodes: []Node{
		{PNN: 0},
		{PNN: 1, Flags: FlagBanned},
		{PNN: 2, Flags: FlagUnhealthy},
		{PNN: 3},
	}}
	active := m.Active()
	assert.Len(t, active, 2)
	assert.Equal(t, PNN(0), active[0].PNN)
	assert.Equal(t, PNN(3), active[1].PNN)
}

func TestVNNMap_Equal(t *testing.T) {
	a := VNNMap{Generation: 5, Map: []PNN{0, 1, 0, 1}}
	b := VNNMap{Generation: 5, Map: []PNN{0, 1, 0, 1}}
	c := VNNMap{Generation: 6, Map: []PNN{0, 1, 0, 1}}
	d := VNNMap{Generation: 5, Map: []PNN{1, 0, 0, 1}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
}

func TestRecord_NewerThan_RSNWins(t *testing.T) {
	older := Record{Header: RecordHeader{RSN: 1, DMaster: 2}}
	newer := Record{Header: RecordHeader{RSN: 2, DMaster: 1}}
	assert.True(t, newer.NewerThan(older, 9))
	assert.False(t, older.NewerThan(newer, 9))
}

func TestRecord_NewerThan_TieBrokenByLocalDMaster(t *testing.T) {
	local := PNN(3)
	mine := Record{Header: RecordHeader{RSN: 5, DMaster: local}}
	theirs := Record{Header: RecordHeader{RSN: 5, DMaster: 7}}
	assert.True(t, mine.NewerThan(theirs, local))
	assert.False(t, theirs.NewerThan(mine, local))
}

func TestElectionMessage_Wins_CapabilityDominates(t *testing.T) {
	withCap := ElectionMessage{PNN: 5, HasRecmaster: true, NumConnected: 1}
	withoutCap := ElectionMessage{PNN: 1, HasRecmaster: false, NumConnected: 100}
	assert.True(t, withCap.Wins(withoutCap))
	assert.False(t, withoutCap.Wins(withCap))
}

func TestElectionMessage_Wins_BannedLoses(t *testing.T) {
	clean := ElectionMessage{PNN: 2, HasRecmaster: true}
	banned := ElectionMessage{PNN: 1, HasRecmaster: true, NodeFlags: FlagBanned}
	assert.True(t, clean.Wins(banned))
}

func TestElectionMessage_Wins_MoreConnectedWins(t *testing.T) {
	a := ElectionMessage{PNN: 1, HasRecmaster: true, NumConnected: 5}
	b := ElectionMessage{PNN: 2, HasRecmaster: true, NumConnected: 3}
	assert.True(t, a.Wins(b))
}

func TestElectionMessage_Wins_EarlierPriorityTimeWins(t *testing.T) {
	now := time.Now()
	early := ElectionMessage{PNN: 1, HasRecmaster: true, NumConnected: 1, PriorityTime: now}
	late := ElectionMessage{PNN: 2, HasRecmaster: true, NumConnected: 1, PriorityTime: now.Add(time.Second)}
	assert.True(t, early.Wins(late))
}

func TestElectionMessage_Wins_LowestPNNBreaksFinalTie(t *testing.T) {
	now := time.Now()
	low := ElectionMessage{PNN: 1, HasRecmaster: true, NumConnected: 1, PriorityTime: now}
	high := ElectionMessage{PNN: 2, HasRecmaster: true, NumConnected: 1, PriorityTime: now}
	assert.True(t, low.Wins(high))
	assert.False(t, high.Wins(low))
}

func TestDatabase_Persistent(t *testing.T) {
	p := Database{Flags: DBPersistent}
	np := Database{}
	assert.True(t, p.Persistent())
	assert.False(t, np.Persistent())
}
