// Package substratetest is an in-process stand-in for core.Transport: a
// Cluster of LocalSubstrate peers wired together by Go channels rather
// than ZMQ sockets, so that the overlay and collective engine can be
// exercised deterministically without a signaling server or real
// network I/O.
package substratetest

import (
	"sort"
	"strings"
	"sync"

	"github.com/graybat-go/cage/pkg/cage/types"
)

func memberKey(members []types.VAddr) string {
	sorted := append([]types.VAddr(nil), members...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, v := range sorted {
		parts[i] = v.String()
	}
	return strings.Join(parts, ",")
}

func containsVAddr(members []types.VAddr, v types.VAddr) bool {
	for _, m := range members {
		if m == v {
			return true
		}
	}
	return false
}

type rendezvous struct {
	total   int
	waiting int
	id      types.ContextID
	done    chan struct{}
}

// Cluster owns every peer's routing table and the context-creation
// rendezvous state shared across them.
type Cluster struct {
	mu    sync.Mutex
	peers map[types.VAddr]*LocalSubstrate

	ctxCounter uint32
	ctxs       map[string]*rendezvous
}

// NewCluster builds a Cluster of n peers, all members of one initial
// context named contextName with VAddrs 0..n-1 in arrival order.
func NewCluster(n int, contextName string) *Cluster {
	cl := &Cluster{
		peers: make(map[types.VAddr]*LocalSubstrate, n),
		ctxs:  make(map[string]*rendezvous),
		// The initial context below takes ContextID 1; created contexts
		// are numbered after it.
		ctxCounter: 1,
	}
	members := make([]types.VAddr, n)
	for i := range members {
		members[i] = types.VAddr(i)
	}
	for i := range members {
		local := types.VAddr(i)
		initial := types.NewContext(1, contextName, members, local)
		cl.peers[local] = newLocalSubstrate(cl, local, initial)
	}
	return cl
}

// Peer returns the substrate for VAddr v.
func (cl *Cluster) Peer(v types.VAddr) *LocalSubstrate {
	return cl.peers[v]
}

// Peers returns every substrate in the cluster, ordered by VAddr.
func (cl *Cluster) Peers() []*LocalSubstrate {
	out := make([]*LocalSubstrate, 0, len(cl.peers))
	for v := range cl.peers {
		out = append(out, cl.peers[v])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].local < out[j].local })
	return out
}

// route delivers msg to its destination peer's dispatch table.
func (cl *Cluster) route(msg types.Message) {
	cl.mu.Lock()
	dst, ok := cl.peers[msg.Header.Destination]
	cl.mu.Unlock()
	if !ok {
		return
	}
	dst.handle(msg)
}

// rendezvousContext blocks every caller sharing the same member set
// until all of them have called in, then returns the single ContextID
// assigned to that set.
func (cl *Cluster) rendezvousContext(members []types.VAddr) types.ContextID {
	key := memberKey(members)

	cl.mu.Lock()
	r, ok := cl.ctxs[key]
	if !ok {
		r = &rendezvous{total: len(members), done: make(chan struct{})}
		cl.ctxs[key] = r
	}
	r.waiting++
	ready := r.waiting == r.total
	if ready {
		cl.ctxCounter++
		r.id = types.ContextID(cl.ctxCounter)
	}
	cl.mu.Unlock()

	if ready {
		close(r.done)
	}
	<-r.done
	return r.id
}
