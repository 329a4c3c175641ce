package download

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"
)

func TestTaskFinishesOnce(t *testing.T) {
	task := NewTask("https://example.com/a.pdf", "/tmp/a.pdf")
	if task.Err() != nil {
		t.Fatalf("pending task should report nil error")
	}

	first := errors.New("first")
	if !task.Finish(first) {
		t.Fatalf("first Finish should resolve the task")
	}
	if task.Finish(nil) {
		t.Fatalf("second Finish must be ignored")
	}

	select {
	case <-task.Done():
	default:
		t.Fatalf("done channel should be closed")
	}
	if !errors.Is(task.Err(), first) {
		t.Fatalf("expected first error, got %v", task.Err())
	}
}

func TestTaskWaitHonoursContext(t *testing.T) {
	task := NewTask("https://example.com/a.pdf", "/tmp/a.pdf")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := task.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	task.Finish(nil)
	if err := task.Wait(context.Background()); err != nil {
		t.Fatalf("expected completed task, got %v", err)
	}
}

func TestNewClientTimeout(t *testing.T) {
	client := NewClient(45 * time.Second)
	if client.Timeout != 45*time.Second {
		t.Fatalf("expected timeout 45s, got %s", client.Timeout)
	}
	if NewClient(0).Timeout != 60*time.Second {
		t.Fatalf("zero timeout should fall back to 60s")
	}
}

func TestSplitObjectURL(t *testing.T) {
	cases := []struct {
		raw     string
		bucket  string
		object  string
		wantErr bool
	}{
		{raw: "gs://docs/reports/q1.pdf", bucket: "docs", object: "reports/q1.pdf"},
		{raw: "gs://docs/", wantErr: true},
		{raw: "gs:///q1.pdf", wantErr: true},
		{raw: "https://docs/q1.pdf", wantErr: true},
	}
	for _, tc := range cases {
		u, err := url.Parse(tc.raw)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.raw, err)
		}
		bucket, object, err := splitObjectURL(u)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.raw, err)
		}
		if bucket != tc.bucket || object != tc.object {
			t.Fatalf("%s: got %s/%s", tc.raw, bucket, object)
		}
	}
}
