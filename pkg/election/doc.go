/*
Package election implements the cluster's deterministic, eventually
consistent master election: a totally ordered priority key compares
competing nodes, and the node with the strictly greater key wins.

There is no leader ack and no quorum requirement. A node broadcasts its
own election message on startup or when it decides the believed master
is no longer acceptable, and optimistically records itself as master
before anyone replies. Every node that hears an election message either
concedes immediately (the message beats its own key) or debounces a
rebroadcast of its own message (it does not). An election settles when
a timer expires with no further messages received — whichever PNN is
believed master at that point stands until the next election.
*/
package election
