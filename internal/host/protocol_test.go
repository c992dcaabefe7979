package host

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	msg := Message{
		HostID:      "h",
		MessageType: TypeReferences,
		ContextID:   3,
		Payload: json.RawMessage(`{"rootDependency":"App","dependencies":{
			"App":{"name":"App","version":"1.0","dependencies":[{"name":"Lib"}]},
			"Lib":{"name":"Lib","version":"2.0","path":"/lib","dependencies":[]}
		}}`),
	}
	ev, err := DecodeEvent(msg)
	require.NoError(t, err)
	assert.Equal(t, 3, ev.ContextID)
	refs, ok := ev.Payload.(ReferencesPayload)
	require.True(t, ok)
	assert.Equal(t, "App", refs.RootDependency)
	assert.Equal(t, "Lib", refs.Dependencies["App"].Dependencies[0].Name)
	assert.Equal(t, "/lib", refs.Dependencies["Lib"].Path)
}

func TestDecodeEventEmptyPayload(t *testing.T) {
	ev, err := DecodeEvent(Message{MessageType: TypeDiagnostics, ContextID: 1})
	require.NoError(t, err)
	assert.Equal(t, DiagnosticsPayload{}, ev.Payload)
}

func TestDecodeEventErrors(t *testing.T) {
	_, err := DecodeEvent(Message{MessageType: "Bogus"})
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Bogus", perr.MessageType)

	_, err = DecodeEvent(Message{MessageType: TypeSources, Payload: json.RawMessage(`{"files":3}`)})
	assert.ErrorAs(t, err, &perr)
}

func TestMessageJSONShape(t *testing.T) {
	data, err := json.Marshal(Message{HostID: "id", MessageType: TypeInitialize, ContextID: 1,
		Payload: json.RawMessage(`{"projectFolder":"/p"}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"hostId":"id","messageType":"Initialize","contextId":1,"payload":{"projectFolder":"/p"}}`, string(data))
}
