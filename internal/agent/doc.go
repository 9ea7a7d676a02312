// Package agent is the coordinator-side client for storage agents.
//
// # Overview
//
// A Client performs one listing round trip per call: it picks an agent from
// the configured address set, opens a TCP connection, writes the request
// line, reads the response until the agent closes the connection, and
// decodes the body into directories and files.
//
//	c := agent.NewClient(agent.ClientParams{
//	    Addresses: agent.Addresses([]string{"10.0.0.5", "10.0.0.6"}, 9999),
//	    Timeout:   30 * time.Second,
//	    Logger:    logger,
//	})
//	listing, err := c.List(ctx, "/mnt/share")
//
// # Host Selection
//
// Hosts are chosen per request through a Selector. RandomSelector picks
// uniformly at random and is the default; RoundRobin rotates through the
// set. Neither tracks health: a chosen host that cannot be reached fails the
// request, and the client does not try another host.
//
// An empty address set fails immediately with ErrNoAgentsAvailable.
//
// # Errors
//
//   - ErrTransport: dial, write, read, or framing failures
//   - ErrNotFound: the agent answered 404 (the Listing is still returned, with no children)
//   - ErrUnexpectedStatus: any other status code
//
// Agent replies other than 200 are reported as *AgentError values carrying
// the status code and diagnostic body.
//
// # Last-Call Snapshot
//
// StatusCode, ContentType, Text, LastHost and LastResponseTime describe the
// most recent completed call. They are plain fields, not synchronized: a
// Client belongs to one goroutine at a time, and the walk engine gives every
// worker its own Client.
package agent
