package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/learnsphere/learnsphere-backend/pkg/logger"
)

func testService(t *testing.T) *Service {
	t.Helper()
	return &Service{
		logg: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	}
}

func TestServiceSuperviseDrainsConsumerOnShutdown(t *testing.T) {
	s := testService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errCh := make(chan error)
	done := make(chan error, 1)
	go func() {
		done <- s.supervise(ctx, errCh)
	}()

	select {
	case err := <-done:
		t.Fatalf("supervise returned before consumer drained: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	errCh <- context.Canceled
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("supervise did not return after consumer exit")
	}
}

func TestServiceSuperviseReturnsConsumerError(t *testing.T) {
	s := testService(t)

	errCh := make(chan error, 1)
	wantErr := errors.New("claim loop broke")
	errCh <- wantErr

	if err := s.supervise(context.Background(), errCh); !errors.Is(err, wantErr) {
		t.Fatalf("expected consumer error, got %v", err)
	}
}
