package progress

import (
	"context"
	"testing"
	"time"

	"github.com/amber-sync/amber-sub000/internal/snapshot"
)

func newTestClient(topics []string) *Client {
	return &Client{
		send:   make(chan Message, sendBufferSize),
		topics: topics,
	}
}

func TestPublish_DeliversToSubscribedTopicOnly(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := newTestClient([]string{JobTopic("job-1")})
	h.Subscribe(c)

	waitForCount(t, h, 1)

	h.Publish(JobTopic("job-1"), Message{Type: MsgJobStatus, Topic: JobTopic("job-1")})
	h.Publish(JobTopic("job-2"), Message{Type: MsgJobStatus, Topic: JobTopic("job-2")})

	select {
	case msg := <-c.send:
		if msg.Topic != JobTopic("job-1") {
			t.Fatalf("received message for unexpected topic %q", msg.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("expected to receive the job-1 message")
	}

	select {
	case msg := <-c.send:
		t.Fatalf("did not expect a second message, got %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsubscribe_StopsDelivery(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := newTestClient([]string{JobTopic("job-1")})
	h.Subscribe(c)
	waitForCount(t, h, 1)

	h.Unsubscribe(c)
	waitForCount(t, h, 0)

	h.Publish(JobTopic("job-1"), Message{Type: MsgJobStatus})
	select {
	case _, ok := <-c.send:
		if ok {
			t.Fatal("did not expect a message after unsubscribe")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected send channel to be closed after unsubscribe")
	}
}

func TestReportStatusAndSendLog(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := newTestClient([]string{JobTopic("job-1")})
	h.Subscribe(c)
	waitForCount(t, h, 1)

	h.ReportStatus("job-1", snapshot.StatusRunning, "starting backup")
	msg := recvOrFail(t, c)
	payload, ok := msg.Payload.(JobStatusPayload)
	if !ok || payload.Status != string(snapshot.StatusRunning) {
		t.Fatalf("unexpected status payload: %+v", msg)
	}

	h.SendLog("job-1", "info", "rsync: building file list")
	msg = recvOrFail(t, c)
	logPayload, ok := msg.Payload.(JobLogPayload)
	if !ok || logPayload.Line != "rsync: building file list" {
		t.Fatalf("unexpected log payload: %+v", msg)
	}
}

func waitForCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if h.ConnectedCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("ConnectedCount never reached %d (last = %d)", want, h.ConnectedCount())
}

func recvOrFail(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("expected a message")
		return Message{}
	}
}
