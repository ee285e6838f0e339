package websocket

import (
	"context"
	"errors"
	"sync"
	"testing"

	"auction-ledger/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu      sync.Mutex
	userID  string
	sent    []interface{}
	closed  bool
	sendErr error
}

func (c *fakeConn) Send(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, message)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) UserID() string { return c.userID }

func (c *fakeConn) messages() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]interface{}(nil), c.sent...)
}

func TestConnectionManagerRegisterUnregister(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	alice1 := &fakeConn{userID: "alice"}
	alice2 := &fakeConn{userID: "alice"}
	bob := &fakeConn{userID: "bob"}

	require.NoError(t, cm.RegisterConnection("alice", alice1))
	require.NoError(t, cm.RegisterConnection("alice", alice2))
	require.NoError(t, cm.RegisterConnection("bob", bob))

	assert.Len(t, cm.GetConnections(), 3)
	assert.Len(t, cm.GetConnectionsForUser("alice"), 2)

	require.NoError(t, cm.UnregisterConnection("alice", alice1))
	conns := cm.GetConnectionsForUser("alice")
	require.Len(t, conns, 1)
	assert.Same(t, alice2, conns[0])

	require.NoError(t, cm.UnregisterConnection("alice", alice2))
	assert.Nil(t, cm.GetConnectionsForUser("alice"))
	assert.NoError(t, cm.UnregisterConnection("carol", bob))
	assert.Len(t, cm.GetConnections(), 1)
}

func TestConnectionManagerBroadcastAndNotify(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	alice := &fakeConn{userID: "alice"}
	bob := &fakeConn{userID: "bob"}
	broken := &fakeConn{userID: "carol", sendErr: errors.New("broken pipe")}
	cm.RegisterConnection("alice", alice)
	cm.RegisterConnection("bob", bob)
	cm.RegisterConnection("carol", broken)

	require.NoError(t, cm.Broadcast(map[string]string{"type": "bid_update"}))
	assert.Len(t, alice.messages(), 1)
	assert.Len(t, bob.messages(), 1)

	notifier := NewWebSocketNotifier(cm)
	require.NoError(t, notifier.NotifyUser(context.Background(), "alice", map[string]string{"type": "excess_refunded"}))
	assert.Len(t, alice.messages(), 2)
	assert.Len(t, bob.messages(), 1)

	require.NoError(t, notifier.Broadcast(context.Background(), map[string]string{"type": "auction_ended"}))
	assert.Len(t, alice.messages(), 3)
	assert.Len(t, bob.messages(), 2)
}

func TestConnectionManagerCloseAll(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	alice := &fakeConn{userID: "alice"}
	bob := &fakeConn{userID: "bob"}
	cm.RegisterConnection("alice", alice)
	cm.RegisterConnection("bob", bob)

	require.NoError(t, cm.CloseAll())

	assert.True(t, alice.closed)
	assert.True(t, bob.closed)
	assert.Empty(t, cm.GetConnections())
}
