package push

import (
	"context"
	"errors"
	"testing"

	"github.com/storelinkhq/storelink-server/cmd/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSegmentStore serves devices with the registry's equality-filter
// contract: environment always, storeId only when supplied.
type fakeSegmentStore struct {
	devices []models.DeviceToken
	err     error
}

func (f *fakeSegmentStore) TokensForSegment(ctx context.Context, environment, storeID string) ([]models.DeviceToken, error) {
	if f.err != nil {
		return nil, f.err
	}
	var matched []models.DeviceToken
	for _, device := range f.devices {
		if device.Environment != environment {
			continue
		}
		if storeID != "" && device.StoreID != storeID {
			continue
		}
		matched = append(matched, device)
	}
	return matched, nil
}

func tokenValues(devices []models.DeviceToken) []string {
	values := make([]string, 0, len(devices))
	for _, device := range devices {
		values = append(values, device.Token)
	}
	return values
}

func TestResolveSegment_Filters(t *testing.T) {
	store := &fakeSegmentStore{devices: []models.DeviceToken{
		{Token: "ExponentPushToken[A]", Environment: models.EnvProd, StoreID: "store1"},
		{Token: "ExponentPushToken[B]", Environment: models.EnvProd, StoreID: "store2"},
		{Token: "ExponentPushToken[C]", Environment: models.EnvStaging, StoreID: "store1"},
	}}

	resolved, err := ResolveSegment(context.Background(), store, models.EnvProd, "store1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ExponentPushToken[A]"}, tokenValues(resolved))

	resolved, err = ResolveSegment(context.Background(), store, models.EnvProd, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ExponentPushToken[A]", "ExponentPushToken[B]"}, tokenValues(resolved))
}

func TestResolveSegment_DeduplicatesTokens(t *testing.T) {
	store := &fakeSegmentStore{devices: []models.DeviceToken{
		{Token: "ExponentPushToken[A]", Environment: models.EnvProd},
		{Token: "ExponentPushToken[A]", Environment: models.EnvProd},
		{Token: "ExponentPushToken[B]", Environment: models.EnvProd},
	}}

	resolved, err := ResolveSegment(context.Background(), store, models.EnvProd, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ExponentPushToken[A]", "ExponentPushToken[B]"}, tokenValues(resolved))
}

func TestResolveSegment_SkipsMalformedStoredTokens(t *testing.T) {
	store := &fakeSegmentStore{devices: []models.DeviceToken{
		{Token: "ExponentPushToken[A]", Environment: models.EnvProd},
		{Token: "legacy-fcm-token-123", Environment: models.EnvProd},
	}}

	resolved, err := ResolveSegment(context.Background(), store, models.EnvProd, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"ExponentPushToken[A]"}, tokenValues(resolved))
}

func TestResolveSegment_EmptyIsNotAnError(t *testing.T) {
	store := &fakeSegmentStore{}

	resolved, err := ResolveSegment(context.Background(), store, models.EnvProd, "")
	require.NoError(t, err)
	assert.Empty(t, resolved)
}

func TestResolveSegment_StoreError(t *testing.T) {
	store := &fakeSegmentStore{err: errors.New("connection refused")}

	_, err := ResolveSegment(context.Background(), store, models.EnvProd, "")
	assert.Error(t, err)
}
