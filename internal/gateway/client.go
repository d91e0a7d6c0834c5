package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/twinaos/installer/internal/logger"
	"github.com/twinaos/installer/internal/nats"
)

// Client reaches the backend over NATS request/reply and reads run events
// from JetStream.
type Client struct {
	nc      *natsgo.Conn
	js      jetstream.JetStream
	timeout time.Duration
	log     *logger.Logger
}

// NewClient creates a client. Each request is bounded by timeout in addition
// to the caller's context.
func NewClient(nc *natsgo.Conn, js jetstream.JetStream, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{nc: nc, js: js, timeout: timeout, log: logger.Default.With("gateway")}
}

func (c *Client) FetchStepData(ctx context.Context, step string) (StepData, error) {
	var out StepData
	err := c.request(ctx, "fetch step data", nats.SubjectStepData, StepDataRequest{Step: step}, &out)
	return out, err
}

func (c *Client) PersistConfig(ctx context.Context, fragment map[string]any) error {
	return c.request(ctx, "persist config", nats.SubjectConfig, PersistRequest{Config: fragment}, nil)
}

func (c *Client) StartProvisioning(ctx context.Context, config map[string]any) (string, error) {
	var out StartResponse
	if err := c.request(ctx, "start provisioning", nats.SubjectInstallStart, StartRequest{Config: config}, &out); err != nil {
		return "", err
	}
	if out.RunID == "" {
		return "", &RemoteError{Op: "start provisioning", Message: "backend returned no run id"}
	}
	return out.RunID, nil
}

// ConnectNetwork returns the backend's verdict. A refused connection is a
// result with Success false, not an error.
func (c *Client) ConnectNetwork(ctx context.Context, ssid, password string) (ConnectResult, error) {
	var out ConnectResult
	err := c.request(ctx, "connect network", nats.SubjectWifiConnect, ConnectRequest{SSID: ssid, Password: password}, &out)
	if err != nil && IsRemote(err) {
		return ConnectResult{SSID: ssid, Message: err.(*RemoteError).Message}, nil
	}
	return out, err
}

func (c *Client) RequestReboot(ctx context.Context) error {
	return c.request(ctx, "reboot", nats.SubjectReboot, struct{}{}, nil)
}

func (c *Client) request(ctx context.Context, op, subject string, req, out any) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%s: encoding request: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	msg, err := c.nc.RequestWithContext(ctx, subject, data)
	if err != nil {
		c.log.Warn("%s failed after %s: %v", op, time.Since(start), err)
		return fmt.Errorf("%s: %w", op, err)
	}

	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return fmt.Errorf("%s: decoding reply: %w", op, err)
	}
	if !reply.Success {
		return &RemoteError{Op: op, Message: reply.Error}
	}
	if out != nil && len(reply.Data) > 0 {
		if err := json.Unmarshal(reply.Data, out); err != nil {
			return fmt.Errorf("%s: decoding reply data: %w", op, err)
		}
	}
	c.log.Debug("%s ok in %s", op, time.Since(start))
	return nil
}

// Subscribe opens an ordered consumer over every event of the run, starting
// from the first one, so events published before the call are replayed.
func (c *Client) Subscribe(ctx context.Context, runID string) (EventStream, error) {
	stream, err := c.js.Stream(ctx, nats.StreamName)
	if err != nil {
		return nil, fmt.Errorf("subscribe: looking up stream: %w", err)
	}
	cons, err := stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{nats.SubjectForRun(runID)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe: creating consumer: %w", err)
	}

	sub := &subscription{
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	cc, err := cons.Consume(func(msg jetstream.Msg) {
		subject := msg.Subject()
		kind := subject[strings.LastIndexByte(subject, '.')+1:]
		ev, err := DecodeEvent(kind, msg.Data())
		if err != nil {
			c.log.Warn("dropping event on %s: %v", subject, err)
			return
		}
		select {
		case sub.events <- ev:
		case <-sub.done:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe: consuming: %w", err)
	}
	sub.cc = cc
	c.log.Debug("subscribed to run %s", runID)
	return sub, nil
}

type subscription struct {
	events chan Event
	done   chan struct{}
	cc     jetstream.ConsumeContext
	once   sync.Once
}

func (s *subscription) Events() <-chan Event {
	return s.events
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.cc.Stop()
	})
	return nil
}
