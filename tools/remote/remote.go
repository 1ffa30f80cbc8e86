// Package remote implements the tool-invocation boundary over a websocket
// tool host. The wire protocol is a minimal request/response JSON framing:
// the orchestration core only needs list_tools and call_tool, so that is the
// whole protocol.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/emberworks/loopagent/tools"
)

const (
	methodListTools = "list_tools"
	methodCallTool  = "call_tool"
)

type request struct {
	ID     uint64                 `json:"id"`
	Method string                 `json:"method"`
	Name   string                 `json:"name,omitempty"`
	Args   map[string]interface{} `json:"args,omitempty"`
}

type response struct {
	ID     uint64             `json:"id"`
	Tools  []tools.Definition `json:"tools,omitempty"`
	Result json.RawMessage    `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// Client talks to a remote tool host over one websocket connection. Requests
// are serialized: the orchestration loop issues at most one tool call at a
// time, so a single in-flight request keeps the framing trivial.
type Client struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint64
}

// Dial connects to a tool host at the given websocket URL.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial tool host: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

func (c *Client) roundTrip(ctx context.Context, req request) (*response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	req.ID = c.nextID

	deadline, _ := ctx.Deadline()
	// A zero deadline clears any leftover from an earlier bounded call.
	c.conn.SetReadDeadline(deadline)
	c.conn.SetWriteDeadline(deadline)

	if err := c.conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("write %s: %w", req.Method, err)
	}

	for {
		// Decode into a fresh response so a skipped stale frame cannot
		// leak fields into the matched one.
		var resp response
		if err := c.conn.ReadJSON(&resp); err != nil {
			return nil, fmt.Errorf("read %s reply: %w", req.Method, err)
		}
		// Stale replies from a timed-out predecessor are skipped.
		if resp.ID == req.ID {
			return &resp, nil
		}
	}
}

// ListTools implements tools.Invoker.
func (c *Client) ListTools(ctx context.Context) ([]tools.Definition, error) {
	resp, err := c.roundTrip(ctx, request{Method: methodListTools})
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("tool host: %s", resp.Error)
	}
	return resp.Tools, nil
}

// CallTool implements tools.Invoker.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	resp, err := c.roundTrip(ctx, request{Method: methodCallTool, Name: name, Args: args})
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		if resp.Error == "unknown tool: "+name {
			return nil, fmt.Errorf("%w: %s", tools.ErrUnknownTool, name)
		}
		return nil, fmt.Errorf("tool host: %s", resp.Error)
	}
	var result interface{}
	if len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			return nil, fmt.Errorf("decode %s result: %w", name, err)
		}
	}
	return result, nil
}
