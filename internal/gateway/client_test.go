package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	natsgo "github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"github.com/twinaos/installer/internal/nats"
	"github.com/twinaos/installer/internal/nats/natstest"
)

func respond(t *testing.T, nc *natsgo.Conn, subject string, fn func(data []byte) []byte) {
	t.Helper()
	sub, err := nc.Subscribe(subject, func(m *natsgo.Msg) {
		_ = m.Respond(fn(m.Data))
	})
	require.NoError(t, err)
	require.NoError(t, nc.Flush())
	t.Cleanup(func() { _ = sub.Unsubscribe() })
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent(KindProgress, []byte(`{"progress":30,"message":"Installing base system..."}`))
	require.NoError(t, err)
	require.Equal(t, Event{Kind: KindProgress, Percent: 30, Message: "Installing base system..."}, ev)

	ev, err = DecodeEvent(KindError, []byte(`{"error":"disk busy"}`))
	require.NoError(t, err)
	require.Equal(t, "disk busy", ev.Message)

	ev, err = DecodeEvent(KindStatus, []byte(`{"status":"installing"}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"installing"}`, string(ev.Status))

	_, err = DecodeEvent("heartbeat", nil)
	require.Error(t, err)

	_, err = DecodeEvent(KindProgress, []byte(`not json`))
	require.Error(t, err)
}

func TestClient_FetchStepData(t *testing.T) {
	env := natstest.Start(t)
	backend := env.Dial(t, "backend")
	respond(t, backend, nats.SubjectStepData, func(data []byte) []byte {
		var req StepDataRequest
		require.NoError(t, json.Unmarshal(data, &req))
		out, _ := OK(StepData{Step: req.Step, Disks: []Disk{{Name: "sda", Path: "/dev/sda", SizeBytes: 1 << 30}}})
		return out
	})

	c := NewClient(env.Conn, env.JS, time.Second)
	sd, err := c.FetchStepData(context.Background(), "disk")
	require.NoError(t, err)
	require.Equal(t, "disk", sd.Step)
	require.Len(t, sd.Disks, 1)
	require.Equal(t, uint64(1<<30), sd.Disks[0].SizeBytes)
}

func TestClient_RemoteAndTransportErrors(t *testing.T) {
	env := natstest.Start(t)
	backend := env.Dial(t, "backend")
	respond(t, backend, nats.SubjectInstallStart, func([]byte) []byte {
		return Fail(errString("installation already running"))
	})

	c := NewClient(env.Conn, env.JS, 200*time.Millisecond)

	_, err := c.StartProvisioning(context.Background(), map[string]any{"disk": "/dev/sda"})
	require.Error(t, err)
	require.True(t, IsRemote(err))
	require.Contains(t, err.Error(), "installation already running")

	// Nobody answers on the reboot subject.
	err = c.RequestReboot(context.Background())
	require.Error(t, err)
	require.False(t, IsRemote(err))
}

func TestClient_ConnectNetworkRefusalIsAResult(t *testing.T) {
	env := natstest.Start(t)
	backend := env.Dial(t, "backend")
	respond(t, backend, nats.SubjectWifiConnect, func([]byte) []byte {
		return Fail(errString("invalid password"))
	})

	c := NewClient(env.Conn, env.JS, time.Second)
	res, err := c.ConnectNetwork(context.Background(), "twina-lab", "nope")
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, "twina-lab", res.SSID)
	require.Equal(t, "invalid password", res.Message)
}

func TestClient_SubscribeReplaysEarlierEvents(t *testing.T) {
	env := natstest.Start(t)
	ctx := context.Background()

	publish := func(kind string, v any) {
		data, err := json.Marshal(v)
		require.NoError(t, err)
		_, err = env.JS.Publish(ctx, nats.SubjectForRunEvent("r1", kind), data)
		require.NoError(t, err)
	}
	publish(KindProgress, ProgressPayload{Progress: 10, Message: "Partitioning disk..."})
	publish(KindProgress, ProgressPayload{Progress: 90, Message: "Finalizing installation..."})
	// Belongs to another run and must be filtered out.
	_, err := env.JS.Publish(ctx, nats.SubjectForRunEvent("r2", KindProgress), []byte(`{"progress":50}`))
	require.NoError(t, err)

	c := NewClient(env.Conn, env.JS, time.Second)
	stream, err := c.Subscribe(ctx, "r1")
	require.NoError(t, err)
	defer stream.Close()

	publish(KindError, ErrorPayload{Error: "Finalize failed"})

	var got []Event
	timeout := time.After(5 * time.Second)
	for len(got) < 3 {
		select {
		case ev := <-stream.Events():
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("timed out, got %d events", len(got))
		}
	}
	require.Equal(t, 10, got[0].Percent)
	require.Equal(t, 90, got[1].Percent)
	require.Equal(t, KindError, got[2].Kind)
	require.Equal(t, "Finalize failed", got[2].Message)

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())
}

type errString string

func (e errString) Error() string { return string(e) }
