// ABOUTME: Host selection strategies for spreading listing requests across agents.
// ABOUTME: Random is the default; round-robin rotates through the set.

package agent

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
)

// ErrNoAgentsAvailable indicates the address set is empty.
var ErrNoAgentsAvailable = errors.New("no agents available")

// Selector picks the agent that serves the next request.
type Selector interface {
	Select(addrs []Address) (Address, error)
}

// RandomSelector picks an agent uniformly at random.
type RandomSelector struct{}

// Select returns a random address from addrs.
func (RandomSelector) Select(addrs []Address) (Address, error) {
	if len(addrs) == 0 {
		return Address{}, ErrNoAgentsAvailable
	}
	return addrs[rand.IntN(len(addrs))], nil
}

// RoundRobin selects agents in a rotating fashion. It is safe to share
// across clients.
type RoundRobin struct {
	current atomic.Uint64
}

// NewRoundRobin creates a new RoundRobin selector.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Select picks the next address in rotation.
func (r *RoundRobin) Select(addrs []Address) (Address, error) {
	if len(addrs) == 0 {
		return Address{}, ErrNoAgentsAvailable
	}

	// Atomically increment and get the index
	idx := r.current.Add(1) - 1
	return addrs[idx%uint64(len(addrs))], nil
}

// NewSelector returns the selector for a config strategy name.
func NewSelector(strategy string) (Selector, error) {
	switch strategy {
	case "", "random":
		return RandomSelector{}, nil
	case "round_robin":
		return NewRoundRobin(), nil
	default:
		return nil, fmt.Errorf("unknown selection strategy %q", strategy)
	}
}
