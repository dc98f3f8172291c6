package router

import (
	"fmt"
	"sort"
	"sync"
)

// SuccessSet is the process-wide set of ports that answered successfully.
// It is safe for concurrent use.
type SuccessSet struct {
	mu    sync.RWMutex
	ports map[int]struct{}
}

// NewSuccessSet returns an empty SuccessSet.
func NewSuccessSet() *SuccessSet {
	return &SuccessSet{ports: make(map[int]struct{})}
}

// Add records port as having succeeded.
func (s *SuccessSet) Add(port int) {
	s.mu.Lock()
	s.ports[port] = struct{}{}
	s.mu.Unlock()
}

// Clear forgets every recorded port.
func (s *SuccessSet) Clear() {
	s.mu.Lock()
	s.ports = make(map[int]struct{})
	s.mu.Unlock()
}

// Contains reports whether port has been recorded.
func (s *SuccessSet) Contains(port int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ports[port]
	return ok
}

// Ports returns the recorded ports in ascending order.
func (s *SuccessSet) Ports() []int {
	s.mu.RLock()
	out := make([]int, 0, len(s.ports))
	for p := range s.ports {
		out = append(out, p)
	}
	s.mu.RUnlock()
	sort.Ints(out)
	return out
}

// Candidates returns the ports to try, in order: restPort when set, then
// localPort. Duplicates and non-positive ports are removed.
func Candidates(restPort, localPort int) []int {
	var out []int
	for _, p := range []int{restPort, localPort} {
		if p > 0 && !containsPort(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// Router holds the remaining candidate ports of one scrape. A Router is used
// by a single request and is not safe for concurrent use; its SuccessSet is.
type Router struct {
	protocol   string
	host       string
	candidates []int
	tried      []int
	selected   int
	successes  *SuccessSet
}

// New returns a Router over ports for host. ports must not be empty.
func New(protocol, host string, ports []int, successes *SuccessSet) *Router {
	var candidates []int
	for _, p := range ports {
		if !containsPort(candidates, p) {
			candidates = append(candidates, p)
		}
	}
	return &Router{
		protocol:   protocol,
		host:       host,
		candidates: candidates,
		successes:  successes,
	}
}

// Host returns the host the router targets.
func (r *Router) Host() string { return r.host }

// Remaining returns the ports not yet dropped, in their original order.
func (r *Router) Remaining() []int { return append([]int(nil), r.candidates...) }

// Tried returns the ports dropped after a failure, in the order they failed.
func (r *Router) Tried() []int { return append([]int(nil), r.tried...) }

// URL formats pattern with the protocol, host and the preferred remaining
// port, and remembers that port as selected.
func (r *Router) URL(pattern string) string {
	r.selected = r.preferred()
	return fmt.Sprintf(pattern, r.protocol, r.host, r.selected)
}

// preferred returns the first candidate in the success set, or the first
// candidate when none has succeeded.
func (r *Router) preferred() int {
	for _, p := range r.candidates {
		if r.successes.Contains(p) {
			return p
		}
	}
	if len(r.candidates) == 0 {
		return 0
	}
	return r.candidates[0]
}

// ReportSuccess records the selected port in the shared success set.
func (r *Router) ReportSuccess() {
	if r.selected != 0 {
		r.successes.Add(r.selected)
	}
}

// ReportFailure handles a connectivity failure on the selected port. The
// shared success set is cleared and the port dropped. When no candidate is
// left, err is returned unchanged; otherwise ReportFailure returns nil and the
// next URL call selects the next candidate.
func (r *Router) ReportFailure(err error) error {
	r.successes.Clear()
	port := r.selected
	if port == 0 {
		port = r.preferred()
	}
	for i, p := range r.candidates {
		if p == port {
			r.candidates = append(r.candidates[:i:i], r.candidates[i+1:]...)
			break
		}
	}
	r.tried = append(r.tried, port)
	r.selected = 0
	if len(r.candidates) == 0 {
		return err
	}
	return nil
}

func containsPort(ports []int, p int) bool {
	for _, v := range ports {
		if v == p {
			return true
		}
	}
	return false
}
