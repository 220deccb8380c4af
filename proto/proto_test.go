package proto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusOrder(t *testing.T) {
	assert.True(t, StatusSent < StatusDelivered)
	assert.True(t, StatusDelivered < StatusRead)
	assert.False(t, Status(3).Valid())
}

func TestStatusJSON(t *testing.T) {
	out, err := json.Marshal(&StatusUpdate{Id: "x", Status: StatusRead})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x","status":"read"}`, string(out))

	var v StatusUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"id":"y","status":"delivered"}`), &v))
	assert.Equal(t, StatusDelivered, v.Status)

	assert.Error(t, json.Unmarshal([]byte(`{"id":"y","status":"seen"}`), &v))
	_, err = json.Marshal(&StatusUpdate{Status: Status(9)})
	assert.Error(t, err)
}

func TestClientMsgDecode(t *testing.T) {
	var req ClientMsg
	require.NoError(t, json.Unmarshal([]byte(`{"send":{"to":"u2","payload":"YQ=="}}`), &req))
	require.NotNil(t, req.Send)
	assert.Nil(t, req.Fetch)
	assert.Equal(t, "u2", req.Send.To)
}

func TestMessagePeer(t *testing.T) {
	m := &Message{From: "u1", To: "u2"}
	assert.Equal(t, "u2", m.Peer("u1"))
	assert.Equal(t, "u1", m.Peer("u2"))
}
