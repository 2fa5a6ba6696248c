package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// Minimal TwiML (call-control document) builder. Only the verbs the gateway
// emits are modeled; no SDK dependency at the response-rendering boundary.

// InboundAction is what the provider should do with an inbound call.
type InboundAction string

const (
	// InboundActionForward connects the call to the tenant's forwarding number.
	InboundActionForward InboundAction = "forward"
	// InboundActionStream hands the call to the conversational AI stream.
	InboundActionStream InboundAction = "stream"
	// InboundActionReject declines the call.
	InboundActionReject InboundAction = "reject"
)

// InboundRoute is the routing decision for an inbound call.
type InboundRoute struct {
	Action    InboundAction
	Number    string // forward target, E.164
	StreamURL string // conversational stream endpoint
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlDial struct {
	XMLName xml.Name `xml:"Dial"`
	Number  string   `xml:"Number,omitempty"`
}

type twimlConnect struct {
	XMLName xml.Name    `xml:"Connect"`
	Stream  twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL string `xml:"url,attr"`
}

type twimlReject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

// RenderInboundRoute maps an InboundRoute to a TwiML document.
func RenderInboundRoute(route InboundRoute) (string, error) {
	var response twimlResponse

	switch route.Action {
	case InboundActionForward:
		if strings.TrimSpace(route.Number) == "" {
			return "", errors.New("telephony: forward number required for forward action")
		}
		response.Verbs = append(response.Verbs, twimlDial{Number: route.Number})
	case InboundActionStream:
		if strings.TrimSpace(route.StreamURL) == "" {
			return "", errors.New("telephony: stream url required for stream action")
		}
		response.Verbs = append(response.Verbs, twimlConnect{Stream: twimlStream{URL: route.StreamURL}})
	case InboundActionReject:
		response.Verbs = append(response.Verbs, twimlReject{Reason: "busy"})
	default:
		return "", errors.New("telephony: unknown inbound action")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(response); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
