package auth

import (
	"context"

	"github.com/google/uuid"
)

// ActorUUID maps the authenticated principal to a stable UUID. Subjects that
// are not UUIDs (service accounts, the dev user) get a deterministic one
// derived from the subject string so ledger rows still correlate.
func ActorUUID(ctx context.Context) uuid.UUID {
	sub := UserIDFromContext(ctx)
	if sub == "" {
		return uuid.Nil
	}
	if id, err := uuid.Parse(sub); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(sub))
}
