package telephony

import (
	"encoding/xml"
	"fmt"
)

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Dial    *twimlDial
	Play    []twimlPlay
	Say     *twimlSay
	Hangup  *struct{} `xml:"Hangup,omitempty"`
}

type twimlDial struct {
	XMLName  xml.Name `xml:"Dial"`
	CallerID string   `xml:"callerId,attr,omitempty"`
	Number   twimlNumber
}

type twimlNumber struct {
	XMLName             xml.Name `xml:"Number"`
	StatusCallback      string   `xml:"statusCallback,attr,omitempty"`
	StatusCallbackEvent string   `xml:"statusCallbackEvent,attr,omitempty"`
	Number              string   `xml:",chardata"`
}

// dialCallbackEvents are the dialed-leg events reported to the status callback.
const dialCallbackEvents = "answered completed"

type twimlPlay struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type twimlSay struct {
	XMLName  xml.Name `xml:"Say"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

func renderTwiML(r twimlResponse) (string, error) {
	out, err := xml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("render twiml: %w", err)
	}
	return xml.Header + string(out), nil
}

// DialTwiML answers a Voice SDK call by dialing number from callerID. When
// statusCallback is set, Twilio reports the answered and completed events of
// the dialed leg there, with ParentCallSid naming the SDK call.
func DialTwiML(callerID, number, statusCallback string) (string, error) {
	to, err := NormalizeNumber(number)
	if err != nil {
		return "", err
	}
	n := twimlNumber{Number: to}
	if statusCallback != "" {
		n.StatusCallback = statusCallback
		n.StatusCallbackEvent = dialCallbackEvents
	}
	return renderTwiML(twimlResponse{Dial: &twimlDial{CallerID: callerID, Number: n}})
}

// PlayTwiML plays the audio at url to the callee, then hangs up.
func PlayTwiML(url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("audio url is required")
	}
	return renderTwiML(twimlResponse{Play: []twimlPlay{{URL: url}}, Hangup: &struct{}{}})
}

// SayTwiML speaks message and hangs up. Used to reject calls that cannot be routed.
func SayTwiML(language, message string) (string, error) {
	return renderTwiML(twimlResponse{Say: &twimlSay{Language: language, Text: message}, Hangup: &struct{}{}})
}
