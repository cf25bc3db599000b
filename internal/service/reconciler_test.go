package service

import (
	"context"
	"testing"
	"time"

	"github.com/aniladanir/sms-campaign-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedInterrupted(t *testing.T, ledger *memLedger, kind domain.CampaignKind, numbers []string) *domain.Campaign {
	t.Helper()
	c := &domain.Campaign{
		OwnerID:   1,
		Kind:      kind,
		Body:      "hello",
		Status:    domain.CampaignProcessing,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}
	_, err := ledger.CreateCampaign(context.Background(), c, numbers)
	require.NoError(t, err)
	return c
}

func TestReconcile_FinalizesInterruptedCampaigns(t *testing.T) {
	ledger := newMemLedger()
	pub := &recordingPublisher{}

	bulk := seedInterrupted(t, ledger, domain.KindBulk, phones(3))
	// one recipient made it out before the crash
	recs, err := ledger.ListRecipients(context.Background(), bulk.ID)
	require.NoError(t, err)
	_, err = ledger.SettleRecipient(context.Background(), &recs[0], domain.Settlement{Status: domain.DeliverySent, GatewayReference: "a"})
	require.NoError(t, err)

	single := seedInterrupted(t, ledger, domain.KindSingle, phones(1))

	r := NewReconciler(ledger, pub, ReconcilerConfig{StaleAfter: time.Minute}, discardLogger())
	n, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	c, err := ledger.GetCampaign(context.Background(), bulk.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignCompleted, c.Status)
	assert.Equal(t, 1, c.SuccessfulCount)
	assert.Equal(t, 2, c.FailedCount)

	c, err = ledger.GetCampaign(context.Background(), single.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignFailed, c.Status)

	recs, err = ledger.ListRecipients(context.Background(), bulk.ID)
	require.NoError(t, err)
	for _, rec := range recs[1:] {
		assert.Equal(t, domain.DeliveryFailed, rec.DeliveryStatus)
		require.NotNil(t, rec.ErrorDetail)
		assert.Contains(t, *rec.ErrorDetail, "interrupted")
	}

	assert.Len(t, pub.published(), 2)

	// nothing left to do on the next pass
	n, err = r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReconcile_LeavesFreshCampaignsAlone(t *testing.T) {
	ledger := newMemLedger()
	c := &domain.Campaign{OwnerID: 1, Kind: domain.KindBulk, Status: domain.CampaignProcessing}
	_, err := ledger.CreateCampaign(context.Background(), c, phones(2))
	require.NoError(t, err)

	r := NewReconciler(ledger, nil, ReconcilerConfig{StaleAfter: time.Hour}, discardLogger())
	n, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	stored, err := ledger.GetCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignProcessing, stored.Status)
}

func TestReconcile_BatchesLargeBacklogs(t *testing.T) {
	ledger := newMemLedger()
	c := seedInterrupted(t, ledger, domain.KindBulk, phones(5))

	r := NewReconciler(ledger, nil, ReconcilerConfig{StaleAfter: time.Minute, BatchSize: 3}, discardLogger())

	n, err := r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	stored, err := ledger.GetCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignProcessing, stored.Status)

	n, err = r.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	stored, err = ledger.GetCampaign(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignCompleted, stored.Status)
}

func TestReconciler_StartStop(t *testing.T) {
	ledger := newMemLedger()
	c := seedInterrupted(t, ledger, domain.KindBulk, phones(2))

	r := NewReconciler(ledger, nil, ReconcilerConfig{
		Interval:   10 * time.Millisecond,
		StaleAfter: time.Minute,
	}, discardLogger())

	r.Start()
	r.Start()

	require.Eventually(t, func() bool {
		stored, err := ledger.GetCampaign(context.Background(), c.ID)
		return err == nil && stored.Status == domain.CampaignCompleted
	}, time.Second, 5*time.Millisecond)

	r.Stop()
	r.Stop()
}
