package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Client submits execution requests to a Service.
type Client struct {
	nc      *nats.Conn
	subject string
}

// NewClient creates a client publishing on subject (DefaultSubject when empty).
func NewClient(nc *nats.Conn, subject string) (*Client, error) {
	if nc == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if subject == "" {
		subject = DefaultSubject
	}
	return &Client{nc: nc, subject: subject}, nil
}

// Execute sends req and waits for the reply until ctx ends. The current trace
// context travels in the message headers.
func (c *Client) Execute(ctx context.Context, req *Request) (*Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	msg := nats.NewMsg(c.subject)
	msg.Data = data
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	reply, err := c.nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("execution request failed: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(reply.Data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode reply: %w", err)
	}
	return &resp, nil
}
