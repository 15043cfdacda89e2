package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	refund := &stubJob{name: "credit-refund"}
	reconcile := &stubJob{name: "ledger-reconcile"}
	registry, err := NewRegistry(refund, nil, reconcile)
	require.NoError(t, err)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, refund, jobs[0])
	assert.Same(t, reconcile, jobs[1])
	assert.Equal(t, []string{"credit-refund", "ledger-reconcile"}, registry.Names())

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "internal slice leaked")
}

func TestRegistryRejectsDuplicateAndUnnamedJobs(t *testing.T) {
	_, err := NewRegistry(&stubJob{name: "outbox-retention"}, &stubJob{name: "outbox-retention"})
	require.Error(t, err)

	registry, err := NewRegistry()
	require.NoError(t, err)
	require.Error(t, registry.Register(&stubJob{}))
	require.Error(t, registry.Register(nil))
	require.NoError(t, registry.Register(&stubJob{name: "notification-cleanup"}))
	assert.Len(t, registry.Jobs(), 1)
}

func TestJobConstructorsNameEveryMissingDependency(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{})
	if err == nil || err.Error() != "outbox retention: missing logger, db runner, outbox repository" {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := NewCreditRefundJob(CreditRefundJobParams{}); err == nil {
		t.Fatal("expected credit refund job to require dependencies")
	}
}
