package kb

import (
	"context"
	"fmt"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/dialogue"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region client-struct
// Client is a knowledge base reached over gRPC.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewClient connects to a knowledge-base server.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn wraps an existing connection. Close is then the
// caller's responsibility.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close shuts down a connection opened by NewClient.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion constructor

// #region calls
func (c *Client) Query(ctx context.Context, cons dialogue.Constraints) (dialogue.Results, error) {
	var out queryResponse
	if err := c.invoke(ctx, methodQuery, queryRequest{Constraints: cons}, &out); err != nil {
		return nil, fmt.Errorf("query rpc: %w", err)
	}
	return out.Results, nil
}

func (c *Client) AggregateQuery(ctx context.Context, cons dialogue.Constraints, user dialogue.Action) (dialogue.Aggregate, error) {
	var out aggregateResponse
	if err := c.invoke(ctx, methodAggregate, aggregateRequest{Constraints: cons, UserAction: user}, &out); err != nil {
		return nil, fmt.Errorf("aggregate rpc: %w", err)
	}
	return out.Counts, nil
}

func (c *Client) FillInformSlot(ctx context.Context, proposed map[string]any, cons dialogue.Constraints, user dialogue.Action) (map[string]any, []dialogue.MatchObject, error) {
	var out fillResponse
	req := fillRequest{Proposed: proposed, Constraints: cons, UserAction: user}
	if err := c.invoke(ctx, methodFill, req, &out); err != nil {
		return nil, nil, fmt.Errorf("fill inform slot rpc: %w", err)
	}
	return out.Inform, out.MatchObjects, nil
}

func (c *Client) invoke(ctx context.Context, method string, req, out any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, resp); err != nil {
		return err
	}
	return fromStruct(resp, out)
}

// #endregion calls
