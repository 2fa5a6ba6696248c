package telephony

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderInboundRouteForward(t *testing.T) {
	doc, err := RenderInboundRoute(InboundRoute{
		Action: InboundActionForward,
		Number: "+13475551234",
	})
	require.NoError(t, err)
	assert.Contains(t, doc, "<Response>")
	assert.Contains(t, doc, "<Dial>")
	assert.Contains(t, doc, "<Number>+13475551234</Number>")
}

func TestRenderInboundRouteStream(t *testing.T) {
	doc, err := RenderInboundRoute(InboundRoute{
		Action:    InboundActionStream,
		StreamURL: "wss://api.example.com/media/stream/t1",
	})
	require.NoError(t, err)
	assert.Contains(t, doc, "<Connect>")
	assert.Contains(t, doc, `<Stream url="wss://api.example.com/media/stream/t1">`)
}

func TestRenderInboundRouteReject(t *testing.T) {
	doc, err := RenderInboundRoute(InboundRoute{Action: InboundActionReject})
	require.NoError(t, err)
	assert.Contains(t, doc, `<Reject reason="busy">`)
}

func TestRenderInboundRouteRejectsIncompleteRoutes(t *testing.T) {
	_, err := RenderInboundRoute(InboundRoute{Action: InboundActionForward})
	assert.Error(t, err)

	_, err = RenderInboundRoute(InboundRoute{Action: InboundActionStream})
	assert.Error(t, err)

	_, err = RenderInboundRoute(InboundRoute{Action: InboundAction("shout")})
	assert.Error(t, err)
}
