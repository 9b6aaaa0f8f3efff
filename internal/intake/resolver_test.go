package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/znz-systems/leadbridge/internal/models"
	"github.com/znz-systems/leadbridge/internal/store"
	"github.com/znz-systems/leadbridge/internal/store/memory"
)

func TestResolver_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	gw := memory.NewGateway()
	r := NewResolver(time.Second)
	contact := ContactParams{TenantID: testTenant, FirstName: "Jane", Email: "jane@example.com"}

	first, created, err := r.Resolve(ctx, gw, contact)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.SourceExternalNotification, first.Source)

	contact.Email = " Jane@Example.com"
	second, created, err := r.Resolve(ctx, gw, contact)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	n, err := gw.CountCustomers(ctx, testTenant)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestResolver_SkipsWithoutEmail(t *testing.T) {
	gw := memory.NewGateway()
	c, created, err := NewResolver(time.Second).Resolve(context.Background(), gw, ContactParams{TenantID: testTenant, FirstName: "Anon"})
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.False(t, created)
	assert.Empty(t, gw.Customers(testTenant))
}

func TestResolver_TenantsAreIsolated(t *testing.T) {
	ctx := context.Background()
	gw := memory.NewGateway()
	r := NewResolver(0)

	a, _, err := r.Resolve(ctx, gw, ContactParams{TenantID: "a", Email: "same@example.com"})
	require.NoError(t, err)
	b, created, err := r.Resolve(ctx, gw, ContactParams{TenantID: "b", Email: "same@example.com"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, a.ID, b.ID)
}

// lookupFailingGateway fails every customer lookup.
type lookupFailingGateway struct {
	store.Gateway
	err error
}

func (g lookupFailingGateway) FindCustomerByEmail(context.Context, string, string) (*models.Customer, error) {
	return nil, g.err
}

func TestResolver_PropagatesLookupErrors(t *testing.T) {
	boom := errors.New("connection reset")
	gw := lookupFailingGateway{Gateway: memory.NewGateway(), err: boom}

	_, _, err := NewResolver(time.Second).Resolve(context.Background(), gw, ContactParams{TenantID: testTenant, Email: "jane@example.com"})
	assert.ErrorIs(t, err, boom)
}

// slowGateway blocks lookups until the context gives up.
type slowGateway struct {
	store.Gateway
}

func (slowGateway) FindCustomerByEmail(ctx context.Context, _, _ string) (*models.Customer, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResolver_BoundsEachCall(t *testing.T) {
	start := time.Now()
	_, _, err := NewResolver(20*time.Millisecond).Resolve(context.Background(), slowGateway{memory.NewGateway()}, ContactParams{TenantID: testTenant, Email: "jane@example.com"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}
