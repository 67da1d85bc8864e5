package main

import (
	"context"
	"time"

	"stroma/identity"
	"stroma/persistence/registrystore"
)

// sqlRegistry adapts registrystore.Store to runtime.PersistenceRegistry,
// tracking registered bots, each one's last-known chunk count, and the
// mesh-wide redistribution epoch in the gorm-backed reference store
// (SPEC_FULL §2 L2.5).
type sqlRegistry struct {
	store *registrystore.Store
}

func newSQLRegistry(store *registrystore.Store) *sqlRegistry {
	return &sqlRegistry{store: store}
}

func (r *sqlRegistry) RegisteredBots(ctx context.Context) ([]identity.BotID, error) {
	entries, err := r.store.ListEntries()
	if err != nil {
		return nil, err
	}
	bots := make([]identity.BotID, 0, len(entries))
	for _, e := range entries {
		id, err := identity.DecodeBotID(e.ContractHash)
		if err != nil {
			continue
		}
		bots = append(bots, id)
	}
	return bots, nil
}

// sizeBucketFor classifies a chunk count as Small (up to 4 chunks), Medium
// (up to 32) or Large, used to populate RegistryEntryModel.SizeBucket.
func sizeBucketFor(numChunks uint32) registrystore.SizeBucket {
	switch {
	case numChunks <= 4:
		return registrystore.SizeSmall
	case numChunks <= 32:
		return registrystore.SizeMedium
	default:
		return registrystore.SizeLarge
	}
}

func (r *sqlRegistry) RegisterSelf(ctx context.Context, self identity.BotID, numChunks uint32) error {
	return r.store.RegisterEntry(self.String(), sizeBucketFor(numChunks), numChunks, "", time.Now())
}

func (r *sqlRegistry) SelfChunkCount(ctx context.Context, self identity.BotID) (uint32, bool, error) {
	entries, err := r.store.ListEntries()
	if err != nil {
		return 0, false, err
	}
	for _, e := range entries {
		if e.ContractHash == self.String() {
			return e.NumChunks, true, nil
		}
	}
	return 0, false, nil
}

func (r *sqlRegistry) Epoch(ctx context.Context) (uint64, error) {
	return r.store.CurrentEpoch()
}

func (r *sqlRegistry) SetEpoch(ctx context.Context, epoch uint64) error {
	return r.store.SetEpoch(epoch)
}

func (r *sqlRegistry) AppendAudit(ctx context.Context, actor, actionType, details string, at time.Time) error {
	return r.store.AppendAuditRecord(actor, actionType, details, at)
}
