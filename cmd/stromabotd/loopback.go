package main

import (
	"context"
	"sync"

	"stroma/runtime"
)

// loopbackOverlay is a single-process stand-in for the state-overlay
// interface (spec.md §6), used until a real overlay client is wired in.
// It keeps contract snapshots in memory and fans out applied deltas to
// subscribers as raw (not merged) state changes.
type loopbackOverlay struct {
	mu          sync.Mutex
	states      map[[32]byte]runtime.ContractState
	subscribers map[[32]byte][]chan runtime.StateChange
}

func newLoopbackOverlay() *loopbackOverlay {
	return &loopbackOverlay{
		states:      map[[32]byte]runtime.ContractState{},
		subscribers: map[[32]byte][]chan runtime.StateChange{},
	}
}

func (o *loopbackOverlay) GetState(ctx context.Context, contractID [32]byte) (runtime.ContractState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.states[contractID], nil
}

func (o *loopbackOverlay) ApplyDelta(ctx context.Context, contractID [32]byte, deltaBytes []byte) (runtime.ApplyOutcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states[contractID] = runtime.ContractState{Bytes: deltaBytes}
	for _, ch := range o.subscribers[contractID] {
		select {
		case ch <- runtime.StateChange{ContractID: contractID, NewState: o.states[contractID]}:
		default:
		}
	}
	return runtime.ApplyOK, nil
}

func (o *loopbackOverlay) Subscribe(ctx context.Context, contractID [32]byte) (<-chan runtime.StateChange, error) {
	ch := make(chan runtime.StateChange, 16)
	o.mu.Lock()
	o.subscribers[contractID] = append(o.subscribers[contractID], ch)
	o.mu.Unlock()
	return ch, nil
}

func (o *loopbackOverlay) DeployContract(ctx context.Context, codeBytes, initialStateBytes []byte) ([32]byte, error) {
	return [32]byte{}, nil
}

// loopbackChat is a stand-in ChatClient with no inbound traffic: operators
// wire a real chat transport in before taking a group live.
type loopbackChat struct {
	mu    sync.Mutex
	polls int64
}

func newLoopbackChat() *loopbackChat { return &loopbackChat{} }

func (c *loopbackChat) SendDirect(ctx context.Context, recipientID, text string) error { return nil }
func (c *loopbackChat) SendGroup(ctx context.Context, groupID, text string) error      { return nil }
func (c *loopbackChat) CreatePoll(ctx context.Context, groupID string, poll runtime.Poll) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.polls++
	return c.polls, nil
}
func (c *loopbackChat) TerminatePoll(ctx context.Context, groupID string, pollTimestamp int64) error {
	return nil
}
func (c *loopbackChat) CreateGroup(ctx context.Context, name string) (string, error) { return name, nil }
func (c *loopbackChat) AddMember(ctx context.Context, groupID, memberID string) error { return nil }
func (c *loopbackChat) RemoveMember(ctx context.Context, groupID, memberID string) error {
	return nil
}
func (c *loopbackChat) ReceiveMessages(ctx context.Context) ([]runtime.Message, error) {
	return nil, nil
}
