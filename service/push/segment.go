package push

import (
	"context"
	"log"

	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"github.com/storelinkhq/storelink-server/cmd/models"
)

// ResolveSegment turns a segment (environment + optional store) into the
// concrete list of tokens to send to. Duplicate token values are dropped,
// and every stored token is re-checked against the Expo syntax: a corrupt
// or legacy-format row is skipped rather than sent to the gateway. An
// empty segment is a valid empty list, not an error.
func ResolveSegment(ctx context.Context, store SegmentStore, environment, storeID string) ([]models.DeviceToken, error) {
	records, err := store.TokensForSegment(ctx, environment, storeID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(records))
	resolved := make([]models.DeviceToken, 0, len(records))
	for _, record := range records {
		if _, dup := seen[record.Token]; dup {
			continue
		}
		if _, err := expo.NewExponentPushToken(record.Token); err != nil {
			log.Printf("Skipping stored token with invalid format: %s", record.Token)
			continue
		}
		seen[record.Token] = struct{}{}
		resolved = append(resolved, record)
	}

	return resolved, nil
}
