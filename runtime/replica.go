package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stroma/governance"
	"stroma/graph"
	"stroma/identity"
	"stroma/keyring"
	"stroma/observability/metrics"
	"stroma/proof"
	"stroma/trust"
)

// Replica is the single-threaded cooperative event loop owning one group's
// TrustContract and in-flight polls (spec.md §5). Exactly one goroutine
// ever touches Contract or Polls; everything else communicates through
// channels.
type Replica struct {
	ContractID [32]byte
	Contract   *trust.Contract
	Polls      map[string]*governance.PollAggregate

	Keyring     *keyring.Keyring
	IdentityKey *identity.IdentityKey
	Limiter     *governance.RateLimiter

	Overlay  OverlayClient
	Chat     ChatClient
	Storage  StorageClient
	Registry PersistenceRegistry

	GroupID          string
	HealthInterval   time.Duration
	ChatPollInterval time.Duration

	nowFunc             func() time.Time
	lastFlushedAuditLen int
	pool                *WorkerPool
}

// NewReplica wires the collaborator interfaces and an empty contract around
// a fresh keyring. Callers typically populate Contract from a prior
// GetState call before invoking Run. registry may be nil, which disables
// persistence driving (encrypt-chunk-distribute and recovery) entirely;
// identityKey may be nil for the same reason.
func NewReplica(contractID [32]byte, cfg trust.GroupConfig, kr *keyring.Keyring, identityKey *identity.IdentityKey, overlay OverlayClient, chat ChatClient, storage StorageClient, registry PersistenceRegistry, groupID string) *Replica {
	return &Replica{
		ContractID:       contractID,
		Contract:         trust.New(cfg),
		Polls:            map[string]*governance.PollAggregate{},
		Keyring:          kr,
		IdentityKey:      identityKey,
		Limiter:          governance.NewRateLimiter(time.Minute),
		Overlay:          overlay,
		Chat:             chat,
		Storage:          storage,
		Registry:         registry,
		GroupID:          groupID,
		HealthInterval:   time.Minute,
		ChatPollInterval: 2 * time.Second,
		nowFunc:          time.Now,
	}
}

// Run drives the cooperative event loop until ctx is cancelled, selecting
// among inbound chat messages, state-overlay stream events, timer ticks,
// and worker-pool results (spec.md §5 "Scheduling model"). On return it
// flushes the audit log and zeroes the keyring (spec.md §5 "Cancellation").
func (r *Replica) Run(ctx context.Context, pool *WorkerPool) error {
	r.pool = pool
	defer r.shutdown(ctx)

	stateChanges, err := r.Overlay.Subscribe(ctx, r.ContractID)
	if err != nil {
		return fmt.Errorf("runtime: subscribe: %w", err)
	}

	if len(r.Contract.MembersSorted()) == 0 {
		r.recoverState(ctx)
	}

	healthTicker := time.NewTicker(r.HealthInterval)
	defer healthTicker.Stop()
	chatTicker := time.NewTicker(r.ChatPollInterval)
	defer chatTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case change, ok := <-stateChanges:
			if !ok {
				stateChanges = nil
				continue
			}
			r.handleStateChange(ctx, change)

		case <-chatTicker.C:
			r.pollChat(ctx)

		case <-healthTicker.C:
			r.runHealthCheck()

		case result := <-pool.Results():
			r.handleJobResult(ctx, result)
		}
	}
}

// shutdown drops any open proposals and their aggregates, records a
// bot_shutdown audit entry when any were open, flushes the audit log, and
// zeroes the keyring (spec.md §5 "Cancellation").
func (r *Replica) shutdown(ctx context.Context) {
	now := r.nowFunc()
	hadOpenProposals := len(r.Contract.ActiveProposals) > 0
	r.Contract.ActiveProposals = map[string]trust.PollProposal{}
	r.Polls = map[string]*governance.PollAggregate{}
	if hadOpenProposals {
		r.Contract.RecordShutdown(now.Unix())
	}
	r.flushAudit(ctx)
	r.Keyring.Close()
}

// flushAudit pushes the current contract snapshot (which carries the audit
// log) through the state-overlay interface, satisfying spec.md §5's
// shutdown requirement to "flush the audit log via the state-out
// interface" — the overlay is the only state-out surface this replica
// consumes.
func (r *Replica) flushAudit(ctx context.Context) {
	if len(r.Contract.AuditLog) == r.lastFlushedAuditLen {
		return
	}
	encoded, err := r.Contract.Encode()
	if err != nil {
		return
	}
	if _, err := r.Overlay.ApplyDelta(ctx, r.ContractID, encoded); err != nil {
		return
	}
	r.mirrorAuditToRegistry(ctx, r.Contract.AuditLog[r.lastFlushedAuditLen:])
	r.lastFlushedAuditLen = len(r.Contract.AuditLog)
}

// mirrorAuditToRegistry appends newly flushed audit entries to the
// registry's own durable audit trail, independent of the overlay's
// replicated copy (SPEC_FULL §3 supplement "AuditRecord.Sequence" gap
// detection). Best-effort: a registry write failure never blocks
// shutdown or the event loop.
func (r *Replica) mirrorAuditToRegistry(ctx context.Context, entries []trust.AuditEntry) {
	if r.Registry == nil {
		return
	}
	for _, entry := range entries {
		actor := fmt.Sprintf("%x", entry.Actor)
		actionType := entry.ActionType.String(entry.ActionLabel)
		_ = r.Registry.AppendAudit(ctx, actor, actionType, entry.Details, time.Unix(entry.Timestamp, 0))
	}
}

// handleStateChange merges an overlay-delivered state snapshot into the
// local contract view. Processing happens strictly in arrival order
// (spec.md §5 "Ordering guarantees") because Run is single-threaded.
func (r *Replica) handleStateChange(ctx context.Context, change StateChange) {
	if change.ContractID != r.ContractID {
		return
	}
	incoming, err := trust.DecodeContract(change.NewState.Bytes)
	if err != nil {
		return
	}
	r.Contract.Merge(incoming)
	r.triggerPersist(ctx)
}

func (r *Replica) pollChat(ctx context.Context) {
	messages, err := r.Chat.ReceiveMessages(ctx)
	if err != nil {
		return
	}
	for _, msg := range messages {
		if msg.GroupID != r.GroupID {
			continue
		}
		r.handleMessage(ctx, msg)
	}
}

func (r *Replica) handleMessage(ctx context.Context, msg Message) {
	actorHash, err := identity.Mask(r.Keyring.IdentityMaskingKey(), msg.SenderID)
	if err != nil {
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/propose "):
		r.handlePropose(ctx, actorHash, strings.TrimPrefix(text, "/propose "))
	case text == "/audit":
		r.handleAudit(ctx, msg.SenderID)
	case text == "/mesh":
		r.handleMesh(ctx, msg.SenderID)
	case strings.HasPrefix(text, "/vouch "):
		r.handleVouch(ctx, actorHash, strings.TrimSpace(strings.TrimPrefix(text, "/vouch ")), msg.SenderID)
	case strings.HasPrefix(text, "/flag "):
		r.handleFlag(ctx, actorHash, strings.TrimSpace(strings.TrimPrefix(text, "/flag ")), msg.SenderID)
	case text == "/proof":
		r.handleProveRequest(ctx, actorHash, msg.SenderID)
	default:
		r.handleVote(msg.SenderID, text)
	}
}

// handlePropose parses "<config|stroma> <key> <value> [--timeout Nh]" and
// opens a new proposal (spec.md §4.8 "Proposals").
func (r *Replica) handlePropose(ctx context.Context, actor identity.MemberHash, rest string) {
	fields := strings.Fields(rest)
	if len(fields) < 3 {
		_ = r.Chat.SendDirect(ctx, "", "usage: /propose <config|stroma> <key> <value> [--timeout Nh]")
		return
	}
	kind := trust.ProposalConfigChange
	if fields[0] == "stroma" {
		kind = trust.ProposalAppChange
	}
	key, value := fields[1], fields[2]
	timeoutFlag := ""
	for i, f := range fields {
		if f == "--timeout" && i+1 < len(fields) {
			timeoutFlag = fields[i+1]
		}
	}
	timeout, err := governance.ParseTimeout(timeoutFlag, time.Duration(r.Contract.Config.DefaultPollTimeoutSecs)*time.Second)
	if err != nil {
		_ = r.Chat.SendDirect(ctx, "", err.Error())
		return
	}

	if rlErr := r.Limiter.Allow(actor, "propose", r.nowFunc()); rlErr != nil {
		_ = r.Chat.SendDirect(ctx, "", rlErr.Error())
		return
	}

	proposal, aggregate := governance.OpenProposal(kind, key, value, timeout, r.Contract.Config.ConfigChangeThreshold, r.Contract.Config.MinQuorum, len(r.Contract.MembersSorted()), r.nowFunc())
	r.Contract.ActiveProposals[proposal.PollID] = proposal
	r.Polls[proposal.PollID] = aggregate
	metrics.Registry().RecordProposalOpened(proposalKindLabel(kind))

	if _, err := r.Chat.CreatePoll(ctx, r.GroupID, Poll{
		Question:       fmt.Sprintf("%s: %s -> %s", key, "?", value),
		Options:        []string{"approve", "reject"},
		AllowsMultiple: false,
	}); err != nil {
		return
	}
}

func proposalKindLabel(kind trust.PollProposalType) string {
	if kind == trust.ProposalAppChange {
		return "app"
	}
	return "config"
}

func (r *Replica) handleVote(cleartextVoterID, optionText string) {
	option := strings.ToLower(strings.TrimSpace(optionText))
	var optionIdx int
	switch option {
	case "approve", "yes", "1":
		optionIdx = 0
	case "reject", "no", "0":
		optionIdx = 1
	default:
		return
	}

	pollID := r.mostRecentOpenPoll()
	if pollID == "" {
		return
	}
	agg := r.Polls[pollID]
	if agg == nil {
		return
	}
	tag := governance.ComputeVoterTag(r.Keyring.VoterPepper(), pollID, cleartextVoterID)
	if err := agg.CastVote(tag, optionIdx); err == nil {
		label := "approve"
		if optionIdx == 1 {
			label = "reject"
		}
		metrics.Registry().RecordVote(label)
	}
}

func (r *Replica) mostRecentOpenPoll() string {
	var best string
	var bestOpened int64 = -1
	for id, p := range r.Contract.ActiveProposals {
		if p.OpenedAt > bestOpened {
			bestOpened = p.OpenedAt
			best = id
		}
	}
	return best
}

func (r *Replica) handleVouch(ctx context.Context, actor identity.MemberHash, targetCleartext, senderCleartext string) {
	if rlErr := r.Limiter.Allow(actor, "vouch", r.nowFunc()); rlErr != nil {
		_ = r.Chat.SendDirect(ctx, senderCleartext, rlErr.Error())
		return
	}
	target, err := identity.Mask(r.Keyring.IdentityMaskingKey(), targetCleartext)
	if err != nil {
		return
	}
	result := r.Contract.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaAddVouch, Subject: actor, To: target})
	if !result.Valid() {
		_ = r.Chat.SendDirect(ctx, senderCleartext, result.Error())
		return
	}
	r.emitDelta(ctx, trust.TrustDelta{Kind: trust.DeltaAddVouch, Subject: actor, To: target})
}

func (r *Replica) handleFlag(ctx context.Context, actor identity.MemberHash, targetCleartext, senderCleartext string) {
	if rlErr := r.Limiter.Allow(actor, "flag", r.nowFunc()); rlErr != nil {
		_ = r.Chat.SendDirect(ctx, senderCleartext, rlErr.Error())
		return
	}
	target, err := identity.Mask(r.Keyring.IdentityMaskingKey(), targetCleartext)
	if err != nil {
		return
	}
	result := r.Contract.ApplyDelta(trust.TrustDelta{Kind: trust.DeltaAddFlag, Subject: actor, To: target})
	if !result.Valid() {
		_ = r.Chat.SendDirect(ctx, senderCleartext, result.Error())
		return
	}
	r.emitDelta(ctx, trust.TrustDelta{Kind: trust.DeltaAddFlag, Subject: actor, To: target})
}

func (r *Replica) emitDelta(ctx context.Context, delta trust.TrustDelta) {
	encoded, err := delta.Encode()
	if err != nil {
		return
	}
	outcome, err := r.Overlay.ApplyDelta(ctx, r.ContractID, encoded)
	if err != nil || outcome != ApplyOK {
		metrics.Registry().RecordPersistenceFailure("apply_delta", "overlay_rejected")
		return
	}
	r.triggerPersist(ctx)
}

func (r *Replica) handleAudit(ctx context.Context, senderCleartext string) {
	n := len(r.Contract.AuditLog)
	start := 0
	if n > 10 {
		start = n - 10
	}
	var b strings.Builder
	for _, entry := range r.Contract.AuditLog[start:] {
		fmt.Fprintf(&b, "%s %s\n", entry.ActionLabel, entry.Details)
	}
	_ = r.Chat.SendDirect(ctx, senderCleartext, b.String())
}

func (r *Replica) handleMesh(ctx context.Context, senderCleartext string) {
	members := r.Contract.MembersSorted()
	dvr := graph.ComputeDVR(members,
		func(h identity.MemberHash) int64 { return int64(len(r.Contract.VouchesFor(h)) - len(r.Contract.FlagsFor(h))) },
		r.Contract.VouchesFor, 0)
	clusters := graph.DetectClusters(members, r.Contract.VouchesFrom)
	_ = r.Chat.SendDirect(ctx, senderCleartext, fmt.Sprintf("DVR %.2f (%s), %d cluster(s)", dvr.Ratio, dvr.Bucket, clusters.Count()))
}

func (r *Replica) runHealthCheck() {
	signals, flushed := RunHealthCheck(r.Contract, r.Limiter, r.lastFlushedAuditLen, r.nowFunc())
	r.lastFlushedAuditLen = flushed
	r.expireProposals()
	_ = signals
}

// expireProposals evaluates and closes any proposal whose deadline has
// passed (spec.md §5 "Cancellation").
func (r *Replica) expireProposals() {
	now := r.nowFunc()
	for pollID, proposal := range r.Contract.ActiveProposals {
		if now.Before(governance.Deadline(proposal)) {
			continue
		}
		agg := r.Polls[pollID]
		if agg == nil {
			delete(r.Contract.ActiveProposals, pollID)
			continue
		}
		outcome := governance.EvaluateOutcome(agg, proposal.Quorum, proposal.Threshold)
		if outcome.Status == governance.OutcomePassed && proposal.ProposalType == trust.ProposalConfigChange {
			governance.ExecuteConfigChange(r.Contract, identity.MemberHash{}, proposal.Key, "", proposal.Value, now)
		}
		delete(r.Contract.ActiveProposals, pollID)
		delete(r.Polls, pollID)
	}
}

// starkProveJobName identifies the worker-pool job generated by /proof.
const starkProveJobName = "stark_prove"

// proveResult carries the generated proof plus the requester's recipient
// id back to the event loop; the job itself never calls into ChatClient
// (spec.md §5 "the runtime strictly serializes observable side effects"),
// since it runs concurrently with everything else on the worker pool.
type proveResult struct {
	recipient string
	proof     proof.VouchProof
}

// handleProveRequest offloads STARK vouch-proof generation to the worker
// pool rather than computing it inline (spec.md §5 "Long-running
// computations"); the result arrives later over pool.Results() and is
// delivered to chat from handleJobResult, on the event loop's own
// goroutine.
func (r *Replica) handleProveRequest(ctx context.Context, actor identity.MemberHash, senderCleartext string) {
	vouchers := r.Contract.VouchesFor(actor)
	flaggers := r.Contract.FlagsFor(actor)
	if r.pool == nil {
		return
	}
	r.pool.Submit(Job{
		Name: starkProveJobName,
		Run: func(jobCtx context.Context) (any, error) {
			claim := proof.NewClaim(actor, vouchers, flaggers)
			generated, err := proof.Prove(claim)
			if err != nil {
				return nil, err
			}
			return proveResult{recipient: senderCleartext, proof: generated}, nil
		},
	})
	_ = r.Chat.SendDirect(ctx, senderCleartext, "proof request queued")
}

func (r *Replica) handleJobResult(ctx context.Context, result JobResult) {
	if result.Err != nil {
		metrics.Registry().RecordPersistenceFailure(result.Name, result.Err.Error())
		return
	}
	metrics.Registry().RecordPersistenceSuccess(result.Name)

	switch result.Name {
	case starkProveJobName:
		pr, ok := result.Value.(proveResult)
		if !ok {
			return
		}
		_ = r.Chat.SendDirect(ctx, pr.recipient, fmt.Sprintf("proof ready: %d byte proof", len(pr.proof.Blob)))

	case recoverJobName:
		rr, ok := result.Value.(recoverResult)
		if !ok || rr.contract == nil {
			return
		}
		if len(r.Contract.MembersSorted()) == 0 {
			r.Contract = rr.contract
		}
	}
}
