package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/solo"
	"github.com/arloliu/solo/internal/logger"
	"github.com/arloliu/solo/types"
)

// FastConfig returns an agent configuration for real-time integration tests.
//
// A one second lease polled every 200ms lets failover complete within about
// a second and a half.
func FastConfig(identity string) solo.Config {
	cfg := solo.DefaultConfig()
	cfg.Identity = identity
	cfg.LeaseDuration = time.Second
	cfg.PollInterval = 200 * time.Millisecond
	cfg.OperationTimeout = 150 * time.Millisecond

	return cfg
}

// AgentCluster manages a group of agents contending on one lease store.
type AgentCluster struct {
	t     *testing.T
	store types.LeaseStore

	mu      sync.Mutex
	agents  []*solo.Agent
	stopped map[int]bool
}

// NewAgentCluster creates an empty cluster on store.
//
// All agents still running when the test ends are stopped automatically.
func NewAgentCluster(t *testing.T, store types.LeaseStore) *AgentCluster {
	t.Helper()

	c := &AgentCluster{
		t:       t,
		store:   store,
		stopped: make(map[int]bool),
	}
	t.Cleanup(c.StopAll)

	return c
}

// AddAgent creates and starts an agent named "agent-<index>".
//
// Parameters:
//   - ctx: Context for the agent's first tick
//   - mutate: Optional tweaks applied to FastConfig before creation
//
// Returns:
//   - *solo.Agent: The started agent
func (c *AgentCluster) AddAgent(ctx context.Context, mutate ...func(*solo.Config)) *solo.Agent {
	c.t.Helper()

	c.mu.Lock()
	index := len(c.agents)
	c.mu.Unlock()

	cfg := FastConfig(fmt.Sprintf("agent-%d", index))
	for _, fn := range mutate {
		fn(&cfg)
	}

	agent, err := solo.NewAgent(cfg, c.store, solo.WithLogger(logger.NewTest(c.t)))
	require.NoError(c.t, err)
	require.NoError(c.t, agent.Start(ctx))

	c.mu.Lock()
	c.agents = append(c.agents, agent)
	c.mu.Unlock()

	return agent
}

// StopAgent stops the agent at index. Stopping twice is a no-op.
func (c *AgentCluster) StopAgent(index int) {
	c.t.Helper()

	c.mu.Lock()
	if c.stopped[index] {
		c.mu.Unlock()
		return
	}
	c.stopped[index] = true
	agent := c.agents[index]
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(c.t, agent.Stop(ctx))
}

// StopAgentByIdentity stops the running agent with the given identity.
func (c *AgentCluster) StopAgentByIdentity(identity string) {
	c.t.Helper()

	c.mu.Lock()
	index := -1
	for i, a := range c.agents {
		if a.Identity() == identity && !c.stopped[i] {
			index = i
		}
	}
	c.mu.Unlock()

	require.NotEqual(c.t, -1, index, "no running agent %s", identity)
	c.StopAgent(index)
}

// StopAll stops every running agent.
func (c *AgentCluster) StopAll() {
	c.mu.Lock()
	n := len(c.agents)
	c.mu.Unlock()

	for i := range n {
		c.StopAgent(i)
	}
}

// Active returns the agents that have not been stopped.
func (c *AgentCluster) Active() []*solo.Agent {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := make([]*solo.Agent, 0, len(c.agents))
	for i, a := range c.agents {
		if !c.stopped[i] {
			active = append(active, a)
		}
	}

	return active
}

// Leaders returns the identities of active agents that currently report leadership.
func (c *AgentCluster) Leaders() []string {
	var leaders []string
	for _, a := range c.Active() {
		if a.IsLeader() {
			leaders = append(leaders, a.Identity())
		}
	}

	return leaders
}

// WaitForLeader waits until exactly one active agent reports leadership
// and the lease record names it.
//
// Parameters:
//   - timeout: Maximum time to wait
//
// Returns:
//   - string: Identity of the leader
func (c *AgentCluster) WaitForLeader(timeout time.Duration) string {
	c.t.Helper()

	var leader string
	require.Eventually(c.t, func() bool {
		leaders := c.Leaders()
		if len(leaders) != 1 {
			return false
		}

		rec, err := c.store.Get(context.Background(), FastConfig("").LeaseName)
		if err != nil || rec.HolderIdentity != leaders[0] {
			return false
		}
		leader = leaders[0]

		return true
	}, timeout, 20*time.Millisecond, "expected exactly one leader")

	return leader
}
