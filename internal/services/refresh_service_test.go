package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"indicadores/internal/amqp"
	"indicadores/internal/core"
	"indicadores/internal/storage"
)

type fakePublisher struct {
	sent   []*amqp.RefreshMessage
	err    error
	closed bool
}

func (p *fakePublisher) PublishRefresh(_ context.Context, msg *amqp.RefreshMessage) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

type fakeRuns struct{ limit int }

func (r *fakeRuns) RecentRefreshes(_ context.Context, limit int) ([]storage.RefreshRun, error) {
	r.limit = limit
	return []storage.RefreshRun{{JobID: "j", Dataset: core.DatasetSeguranca}}, nil
}

func TestRequestRefresh(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewRefreshService(core.DefaultCatalog(), pub, nil)

	in := []string{core.DatasetSeguranca, core.DatasetCNPJTotal, core.DatasetSeguranca}
	msg, err := svc.RequestRefresh(context.Background(), "manual", in)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !reflect.DeepEqual(in, []string{core.DatasetSeguranca, core.DatasetCNPJTotal, core.DatasetSeguranca}) {
		t.Fatalf("caller slice modified: %v", in)
	}
	if len(pub.sent) != 1 || pub.sent[0] != msg {
		t.Fatalf("sent = %+v", pub.sent)
	}
	want := []string{core.DatasetCNPJTotal, core.DatasetSeguranca}
	if !reflect.DeepEqual(msg.Datasets, want) || msg.Reason != "manual" || msg.JobID == "" {
		t.Fatalf("msg = %+v", msg)
	}
}

func TestRequestRefreshRejectsUnknownDataset(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewRefreshService(core.DefaultCatalog(), pub, nil)

	_, err := svc.RequestRefresh(context.Background(), "", []string{"turismo"})
	if !errors.Is(err, core.ErrUnknownDataset) {
		t.Fatalf("err = %v", err)
	}
	if len(pub.sent) != 0 {
		t.Fatal("published an invalid request")
	}
}

func TestRequestRefreshWithoutBroker(t *testing.T) {
	svc := NewRefreshService(core.DefaultCatalog(), nil, nil)
	if svc.Available() {
		t.Fatal("available without publisher")
	}
	if _, err := svc.RequestRefresh(context.Background(), "", nil); !errors.Is(err, ErrRefreshUnavailable) {
		t.Fatalf("err = %v", err)
	}
	runs, err := svc.RecentRuns(context.Background(), 5)
	if err != nil || runs != nil {
		t.Fatalf("runs = %v, %v", runs, err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestRequestRefreshPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("circuit breaker is open")}
	svc := NewRefreshService(core.DefaultCatalog(), pub, nil)
	if _, err := svc.RequestRefresh(context.Background(), "", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestRecentRunsDefaultLimit(t *testing.T) {
	runs := &fakeRuns{}
	pub := &fakePublisher{}
	svc := NewRefreshService(core.DefaultCatalog(), pub, runs)

	got, err := svc.RecentRuns(context.Background(), 0)
	if err != nil || len(got) != 1 || runs.limit != 20 {
		t.Fatalf("runs = %v, limit=%d, err=%v", got, runs.limit, err)
	}
	if err := svc.Close(); err != nil || !pub.closed {
		t.Fatalf("close: %v", err)
	}
}
