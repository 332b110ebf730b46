/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package obs

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Subprotocol negotiated with obs-websocket for JSON framing.
const Subprotocol = "obswebsocket.json"

// RPCVersion is the obs-websocket RPC version this client speaks.
const RPCVersion = 1

// OpCode identifies the kind of message on the socket.
type OpCode int

const (
	OpHello           OpCode = 0
	OpIdentify        OpCode = 1
	OpIdentified      OpCode = 2
	OpReidentify      OpCode = 3
	OpEvent           OpCode = 5
	OpRequest         OpCode = 6
	OpRequestResponse OpCode = 7
)

// Close codes sent by obs-websocket that the client interprets.
const (
	CloseAuthenticationFailed = 4009
	CloseUnsupportedRPC       = 4010
)

// Request types used by obsrec.
const (
	RequestStartRecord            = "StartRecord"
	RequestStopRecord             = "StopRecord"
	RequestGetRecordStatus        = "GetRecordStatus"
	RequestSetCurrentProgramScene = "SetCurrentProgramScene"
)

// Request status codes worth naming.
const (
	StatusSuccess          = 100
	StatusOutputRunning    = 500
	StatusOutputNotRunning = 501
	StatusResourceNotFound = 600
)

type envelope struct {
	Op OpCode          `json:"op"`
	D  json.RawMessage `json:"d"`
}

type outgoing struct {
	Op OpCode `json:"op"`
	D  any    `json:"d"`
}

type helloData struct {
	OBSWebSocketVersion string `json:"obsWebSocketVersion"`
	RPCVersion          int    `json:"rpcVersion"`
	Authentication      *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication,omitempty"`
}

type identifyData struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type identifiedData struct {
	NegotiatedRPCVersion int `json:"negotiatedRpcVersion"`
}

type requestData struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

type requestStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment,omitempty"`
}

type requestResponseData struct {
	RequestType   string          `json:"requestType"`
	RequestID     string          `json:"requestId"`
	RequestStatus requestStatus   `json:"requestStatus"`
	ResponseData  json.RawMessage `json:"responseData,omitempty"`
}

// RequestError is a request obs-websocket answered with a failed status.
type RequestError struct {
	RequestType string
	Code        int
	Comment     string
}

func (e *RequestError) Error() string {
	if e.Comment != "" {
		return fmt.Sprintf("obs %s failed (code %d): %s", e.RequestType, e.Code, e.Comment)
	}
	return fmt.Sprintf("obs %s failed (code %d)", e.RequestType, e.Code)
}

// RecordStatus is the GetRecordStatus response.
type RecordStatus struct {
	OutputActive   bool   `json:"outputActive"`
	OutputPaused   bool   `json:"outputPaused"`
	OutputTimecode string `json:"outputTimecode"`
	OutputDuration int64  `json:"outputDuration"`
	OutputBytes    int64  `json:"outputBytes"`
}

// AuthResponse computes base64(sha256(base64(sha256(password+salt)) + challenge)).
func AuthResponse(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	auth := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}
