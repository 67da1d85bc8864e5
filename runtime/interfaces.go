// Package runtime drives the single-threaded cooperative event loop that
// owns one replica's TrustContract and its poll aggregates, per spec.md §5. It
// consumes four collaborator interfaces (state-overlay, chat, storage-out,
// operator config) and never holds an exclusive lock across a suspension
// point.
package runtime

import (
	"context"
	"time"

	"stroma/identity"
)

// ContractState is the CBOR-encoded snapshot of a replicated contract, as
// returned by the state-overlay's get_state call.
type ContractState struct {
	Bytes []byte
}

// ApplyOutcome mirrors the state-overlay's apply_delta result set.
type ApplyOutcome int

const (
	ApplyOK ApplyOutcome = iota
	ApplyContractNotFound
	ApplyDeltaApplicationFailed
	ApplyOther
)

// StateChange is one event on a contract's subscribe() stream.
type StateChange struct {
	ContractID [32]byte
	NewState   ContractState
}

// OverlayClient is the consumed state-overlay interface (spec.md §6).
// Implementations of Subscribe MUST push events in real time and must not
// poll.
type OverlayClient interface {
	GetState(ctx context.Context, contractID [32]byte) (ContractState, error)
	ApplyDelta(ctx context.Context, contractID [32]byte, deltaBytes []byte) (ApplyOutcome, error)
	Subscribe(ctx context.Context, contractID [32]byte) (<-chan StateChange, error)
	DeployContract(ctx context.Context, codeBytes, initialStateBytes []byte) ([32]byte, error)
}

// Message is one inbound chat event delivered by ReceiveMessages.
type Message struct {
	GroupID  string
	SenderID string // cleartext; the runtime masks it to a MemberHash on ingestion
	Text     string
	At       time.Time
}

// Poll mirrors the chat interface's native poll object (distinct from a
// governance.PollAggregate, which tracks the replicated, HMAC-deduplicated
// tally behind it).
type Poll struct {
	Question       string
	Options        []string
	AllowsMultiple bool
}

// ChatClient is the consumed chat interface (spec.md §6). The bot is bound
// 1:1 to a single group_id, immutable after bootstrap.
type ChatClient interface {
	SendDirect(ctx context.Context, recipientID, text string) error
	SendGroup(ctx context.Context, groupID, text string) error
	CreatePoll(ctx context.Context, groupID string, poll Poll) (pollTimestamp int64, err error)
	TerminatePoll(ctx context.Context, groupID string, pollTimestamp int64) error
	CreateGroup(ctx context.Context, name string) (groupID string, err error)
	AddMember(ctx context.Context, groupID, memberID string) error
	RemoveMember(ctx context.Context, groupID, memberID string) error
	ReceiveMessages(ctx context.Context) ([]Message, error)
}

// Attestation is the storage-out interface's proof-of-store-intent result,
// distinct from persistence.ChunkAttestation (this repo's own signed
// attestation, carried inside the chunk data the storage-out call
// transports).
type Attestation struct {
	ChunkContractAddr string // "chunk-contract-<hex>"
}

// StorageClient is the consumed storage-out interface (spec.md §6). Delete
// calls default to no-ops when the backing transport offers no deletion
// primitive.
type StorageClient interface {
	StoreLocal(ctx context.Context, owner [32]byte, index uint32, chunk []byte) error
	RetrieveLocal(ctx context.Context, owner [32]byte, index uint32) ([]byte, error)
	StoreRemote(ctx context.Context, holder, owner [32]byte, index uint32, chunk []byte) (Attestation, error)
	RetrieveRemote(ctx context.Context, holder, owner [32]byte, index uint32) ([]byte, error)
	DeleteLocal(ctx context.Context, owner [32]byte, index uint32) error
	DeleteRemote(ctx context.Context, holder, owner [32]byte, index uint32) error
}

// OperatorConfig is the operator-config surface consumed once at startup
// (spec.md §6). Trust parameters are not operator-controlled; they live in
// the contract.
type OperatorConfig struct {
	StorePath         string
	ChatServers       string // "production" | "staging"
	PinnedOverlayAddr string
	LogLevel          string
	LogFile           string
	AdminListenAddr   string
	MnemonicFile      string
	HealthCheckSecs   uint64
	GroupID           string
}

// PersistenceRegistry is the consumed registry surface the replica uses to
// discover chunk-holder candidates and to recover its own persisted state
// across restarts (spec.md §4.7 "Distribution"/"Recovery"). A nil Registry
// on Replica disables persistence driving entirely (the engine still runs
// unit-tested, but no chunking/distribution/recovery occurs).
type PersistenceRegistry interface {
	// RegisteredBots lists the bots currently known to the mesh, which
	// includes this bot once RegisterSelf has run; rendezvous hashing
	// selects chunk holders from the entries other than the owner.
	RegisteredBots(ctx context.Context) ([]identity.BotID, error)
	// RegisterSelf upserts this bot's own registry entry after a
	// successful persist pass.
	RegisterSelf(ctx context.Context, self identity.BotID, numChunks uint32) error
	// SelfChunkCount returns the chunk count most recently registered for
	// self, used to reconstruct numChunks on cold-start recovery.
	SelfChunkCount(ctx context.Context, self identity.BotID) (count uint32, found bool, err error)
	// Epoch returns the current mesh-wide redistribution epoch.
	Epoch(ctx context.Context) (uint64, error)
	// SetEpoch persists a new redistribution epoch.
	SetEpoch(ctx context.Context, epoch uint64) error
	// AppendAudit mirrors a single audit-log entry into the registry's
	// durable audit trail, independent of the overlay's replicated copy.
	AppendAudit(ctx context.Context, actor, actionType, details string, at time.Time) error
}

// ChunkContractAddr derives the storage-out interface's chunk-contract
// address: SHA-256(owner || le(index) || holder || le(epoch)).
func ChunkContractAddr(owner [32]byte, index uint32, holder [32]byte, epoch uint64) string {
	return chunkContractAddr(owner, index, holder, epoch)
}
