package registry

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/driftbyte/hookline/internal/errors"
	"github.com/driftbyte/hookline/internal/models"
	"github.com/driftbyte/hookline/internal/testutil"
)

func setupRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(testutil.SetupStore(t), zerolog.Nop())
}

func TestCreateAppliesDefaults(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	ep, secret, err := reg.Create(ctx, CreateInput{
		OrgID: "org_1",
		Name:  "billing hooks",
		URL:   "https://example.com/hooks",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ep.ID, "ep_"))
	assert.True(t, strings.HasPrefix(secret, "whsec_"))
	assert.GreaterOrEqual(t, len(secret), len("whsec_")+64, "32 random bytes hex-encoded")
	assert.Equal(t, models.DefaultMaxRetries, ep.MaxRetries)
	assert.True(t, ep.Active)
	assert.NotNil(t, ep.EventTypes)
	assert.NotNil(t, ep.Headers)
}

func TestCreateKeepsCallerSecret(t *testing.T) {
	reg := setupRegistry(t)

	_, secret, err := reg.Create(context.Background(), CreateInput{
		OrgID:  "org_1",
		Name:   "custom",
		URL:    "https://example.com/hooks",
		Secret: "whsec_caller_chosen",
	})
	require.NoError(t, err)
	assert.Equal(t, "whsec_caller_chosen", secret)
}

func TestCreateValidation(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"missing org", CreateInput{Name: "n", URL: "https://example.com"}},
		{"missing url", CreateInput{OrgID: "org_1", Name: "n"}},
		{"bad scheme", CreateInput{OrgID: "org_1", Name: "n", URL: "ftp://example.com"}},
		{"no host", CreateInput{OrgID: "org_1", Name: "n", URL: "https://"}},
		{"not a url", CreateInput{OrgID: "org_1", Name: "n", URL: "not a url"}},
		{"retries too high", CreateInput{OrgID: "org_1", Name: "n", URL: "https://example.com", MaxRetries: 11}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := reg.Create(ctx, tt.in)
			assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput), "got %v", err)
		})
	}
}

func TestUpdatePatchSemantics(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	ep, _, err := reg.Create(ctx, CreateInput{
		OrgID:      "org_1",
		Name:       "original",
		URL:        "https://example.com/hooks",
		EventTypes: []string{"order.created"},
	})
	require.NoError(t, err)

	newURL := "https://example.org/v2/hooks"
	updated, err := reg.Update(ctx, ep.ID, UpdateInput{URL: &newURL})
	require.NoError(t, err)

	assert.Equal(t, newURL, updated.URL)
	assert.Equal(t, "original", updated.Name, "unpatched fields keep their value")
	assert.Equal(t, []string{"order.created"}, updated.EventTypes)
}

func TestUpdateRejectsInvalidURL(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	ep, _, err := reg.Create(ctx, CreateInput{OrgID: "org_1", Name: "n", URL: "https://example.com"})
	require.NoError(t, err)

	bad := "://nope"
	_, err = reg.Update(ctx, ep.ID, UpdateInput{URL: &bad})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

func TestGetNotFound(t *testing.T) {
	reg := setupRegistry(t)

	_, err := reg.Get(context.Background(), "ep_missing")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestDeactivateReactivate(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	ep, _, err := reg.Create(ctx, CreateInput{OrgID: "org_1", Name: "n", URL: "https://example.com"})
	require.NoError(t, err)

	require.NoError(t, reg.Deactivate(ctx, ep.ID))
	got, err := reg.Get(ctx, ep.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	require.NoError(t, reg.Reactivate(ctx, ep.ID))
	got, err = reg.Get(ctx, ep.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
}

func TestRotateSecret(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	ep, original, err := reg.Create(ctx, CreateInput{OrgID: "org_1", Name: "n", URL: "https://example.com"})
	require.NoError(t, err)

	rotated, err := reg.RotateSecret(ctx, ep.ID)
	require.NoError(t, err)
	assert.NotEqual(t, original, rotated)
	assert.True(t, strings.HasPrefix(rotated, "whsec_"))

	got, err := reg.Get(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, rotated, got.Secret)
}

func TestRotateSecretNotFound(t *testing.T) {
	reg := setupRegistry(t)

	_, err := reg.RotateSecret(context.Background(), "ep_missing")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestListSubscribedFiltersByEvent(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	_, _, err := reg.Create(ctx, CreateInput{
		OrgID:      "org_1",
		Name:       "orders",
		URL:        "https://example.com/orders",
		EventTypes: []string{"order.created"},
	})
	require.NoError(t, err)

	eps, err := reg.ListSubscribed(ctx, "org_1", "order.created")
	require.NoError(t, err)
	assert.Len(t, eps, 1)

	eps, err = reg.ListSubscribed(ctx, "org_1", "order.shipped")
	require.NoError(t, err)
	assert.Empty(t, eps)
}
