package eventbridge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperscape/coreserver/internal/eventbridge"
	"github.com/hyperscape/coreserver/internal/model"
	"github.com/hyperscape/coreserver/internal/players"
)

type recordingNotifier struct {
	broadcasts []any
	toPlayer   map[string][]any
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{toPlayer: make(map[string][]any)}
}

func (r *recordingNotifier) BroadcastToAll(v any) { r.broadcasts = append(r.broadcasts, v) }

func (r *recordingNotifier) BroadcastToAllExcept(exceptSocketID string, v any) {
	r.broadcasts = append(r.broadcasts, v)
}

func (r *recordingNotifier) SendToPlayer(playerID string, v any) error {
	r.toPlayer[playerID] = append(r.toPlayer[playerID], v)
	return nil
}

func TestBridge_DrainIsEmptyWhenBusIsEmpty(t *testing.T) {
	bus := eventbridge.NewBus(nil)
	n := newRecordingNotifier()
	br := eventbridge.New(bus, n, players.NewManager(), nil, nil, nil, nil)

	br.Drain(context.Background())

	assert.Empty(t, n.broadcasts)
	assert.Empty(t, n.toPlayer)
}

func TestBridge_ResourceDepletedBroadcasts(t *testing.T) {
	bus := eventbridge.NewBus(nil)
	n := newRecordingNotifier()
	br := eventbridge.New(bus, n, players.NewManager(), nil, nil, nil, nil)

	bus.Publish(eventbridge.ResourceDepleted{ResourceID: "tree-1"})
	br.Drain(context.Background())

	require.Len(t, n.broadcasts, 1)
}

func TestBridge_InventoryRequestSuppressedWhileLoading(t *testing.T) {
	bus := eventbridge.NewBus(nil)
	n := newRecordingNotifier()
	pm := players.NewManager()
	p := model.NewPlayer("sock-1", "acct-1", "char-1")
	require.True(t, p.IsLoading(), "NewPlayer starts loading")
	pm.Add(p)
	br := eventbridge.New(bus, n, pm, nil, nil, nil, nil)

	bus.Publish(eventbridge.InventoryRequest{PlayerID: "char-1", Coins: 500})
	br.Drain(context.Background())

	assert.Empty(t, n.toPlayer["char-1"], "reply must be suppressed while loading")

	p.SetLoading(false)
	bus.Publish(eventbridge.InventoryRequest{PlayerID: "char-1", Coins: 500})
	br.Drain(context.Background())

	assert.Len(t, n.toPlayer["char-1"], 1, "reply sent once loading completes")
}

func TestBridge_SkillsUpdatedRoutesByBroadcastFlag(t *testing.T) {
	bus := eventbridge.NewBus(nil)
	n := newRecordingNotifier()
	br := eventbridge.New(bus, n, players.NewManager(), nil, nil, nil, nil)

	bus.Publish(eventbridge.SkillsUpdated{PlayerID: "char-1", Broadcast: false})
	bus.Publish(eventbridge.SkillsUpdated{PlayerID: "char-2", Broadcast: true})
	br.Drain(context.Background())

	assert.Len(t, n.toPlayer["char-1"], 1)
	assert.Empty(t, n.toPlayer["char-2"])
	assert.Len(t, n.broadcasts, 1)
}

func TestBridge_BankOpenRequestWithNoLoaderRepliesEmpty(t *testing.T) {
	bus := eventbridge.NewBus(nil)
	n := newRecordingNotifier()
	br := eventbridge.New(bus, n, players.NewManager(), nil, nil, nil, nil)

	bus.Publish(eventbridge.BankOpenRequest{PlayerID: "char-1"})
	br.Drain(context.Background())

	require.Len(t, n.toPlayer["char-1"], 1)
}

func TestBridge_StoreOpenRequestUnresolvedNPCRepliesEmpty(t *testing.T) {
	bus := eventbridge.NewBus(nil)
	n := newRecordingNotifier()
	br := eventbridge.New(bus, n, players.NewManager(), nil, nil, eventbridge.StaticAreaResolver{}, nil)

	bus.Publish(eventbridge.StoreOpenRequest{PlayerID: "char-1", NPCID: "shopkeeper-9"})
	br.Drain(context.Background())

	require.Len(t, n.toPlayer["char-1"], 1)
}
