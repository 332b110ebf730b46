/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package obstest provides an in-process obs-websocket v5 server for tests.
package obstest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/friendsincode/obsrec/internal/obs"
)

const (
	challenge = "+IxH4CnCiqpX1rM9scsNynZzbOe4KhDeYcTNS3PDaeY="
	salt      = "lM1GncleQOaCu9lT1yeUZhFYnqhsLLP1G5lAGo3ixaI="
)

// Server emulates the request side of OBS Studio's websocket server.
type Server struct {
	// Addr is host:port, suitable for obs.Config.Address.
	Addr string

	password string
	srv      *httptest.Server

	mu        sync.Mutex
	recording bool
	scene     string
	requests  []string
	failures  map[string][]int
	conns     map[*websocket.Conn]struct{}
}

// NewServer starts a fake OBS. An empty password disables authentication.
func NewServer(password string) *Server {
	s := &Server{
		password: password,
		scene:    "Scene",
		failures: make(map[string][]int),
		conns:    make(map[*websocket.Conn]struct{}),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	s.Addr = strings.TrimPrefix(s.srv.URL, "http://")
	return s
}

// Close shuts the server down.
func (s *Server) Close() {
	s.DropConnections()
	s.srv.Close()
}

// Recording reports whether the record output is active.
func (s *Server) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// SetRecording forces the record output state.
func (s *Server) SetRecording(active bool) {
	s.mu.Lock()
	s.recording = active
	s.mu.Unlock()
}

// Scene returns the current program scene.
func (s *Server) Scene() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene
}

// Requests returns the request types received so far, in order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// FailNext makes the next len(codes) requests of requestType fail with the
// given status codes.
func (s *Server) FailNext(requestType string, codes ...int) {
	s.mu.Lock()
	s.failures[requestType] = append(s.failures[requestType], codes...)
	s.mu.Unlock()
}

// DropConnections closes every open session abruptly.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	for _, c := range conns {
		c.Close(websocket.StatusGoingAway, "server going away")
	}
}

type message struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type reply struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols: []string{obs.Subprotocol},
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	ctx := r.Context()

	hello := map[string]any{"obsWebSocketVersion": "5.5.0", "rpcVersion": obs.RPCVersion}
	if s.password != "" {
		hello["authentication"] = map[string]string{"challenge": challenge, "salt": salt}
	}
	if err := wsjson.Write(ctx, conn, reply{Op: int(obs.OpHello), D: hello}); err != nil {
		return
	}

	var msg message
	if err := wsjson.Read(ctx, conn, &msg); err != nil || msg.Op != int(obs.OpIdentify) {
		return
	}
	var ident struct {
		RPCVersion     int    `json:"rpcVersion"`
		Authentication string `json:"authentication"`
	}
	_ = json.Unmarshal(msg.D, &ident)
	if ident.RPCVersion != obs.RPCVersion {
		conn.Close(obs.CloseUnsupportedRPC, "unsupported rpc version")
		return
	}
	if s.password != "" && ident.Authentication != obs.AuthResponse(s.password, salt, challenge) {
		conn.Close(obs.CloseAuthenticationFailed, "Authentication failed.")
		return
	}
	if err := wsjson.Write(ctx, conn, reply{Op: int(obs.OpIdentified), D: map[string]int{"negotiatedRpcVersion": obs.RPCVersion}}); err != nil {
		return
	}

	for {
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return
		}
		if msg.Op != int(obs.OpRequest) {
			continue
		}
		var req struct {
			RequestType string          `json:"requestType"`
			RequestID   string          `json:"requestId"`
			RequestData json.RawMessage `json:"requestData"`
		}
		if err := json.Unmarshal(msg.D, &req); err != nil {
			return
		}
		if err := wsjson.Write(ctx, conn, reply{Op: int(obs.OpRequestResponse), D: s.respond(req.RequestType, req.RequestID, req.RequestData)}); err != nil {
			return
		}
	}
}

func (s *Server) respond(requestType, requestID string, data json.RawMessage) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, requestType)

	resp := map[string]any{"requestType": requestType, "requestId": requestID}
	status := func(code int, comment string) {
		resp["requestStatus"] = map[string]any{"result": code == obs.StatusSuccess, "code": code, "comment": comment}
	}

	if codes := s.failures[requestType]; len(codes) > 0 {
		s.failures[requestType] = codes[1:]
		status(codes[0], "injected failure")
		return resp
	}

	switch requestType {
	case obs.RequestStartRecord:
		if s.recording {
			status(obs.StatusOutputRunning, "The record output is already running.")
			return resp
		}
		s.recording = true
		status(obs.StatusSuccess, "")
	case obs.RequestStopRecord:
		if !s.recording {
			status(obs.StatusOutputNotRunning, "The record output is not running.")
			return resp
		}
		s.recording = false
		status(obs.StatusSuccess, "")
		resp["responseData"] = map[string]string{"outputPath": "/recordings/capture.mkv"}
	case obs.RequestGetRecordStatus:
		status(obs.StatusSuccess, "")
		resp["responseData"] = map[string]any{"outputActive": s.recording, "outputPaused": false, "outputTimecode": "00:00:00.000"}
	case obs.RequestSetCurrentProgramScene:
		var body struct {
			SceneName string `json:"sceneName"`
		}
		_ = json.Unmarshal(data, &body)
		if body.SceneName == "" || body.SceneName == "missing" {
			status(obs.StatusResourceNotFound, "No source was found by the name of `"+body.SceneName+"`.")
			return resp
		}
		s.scene = body.SceneName
		status(obs.StatusSuccess, "")
	default:
		status(204, "Your request type is not valid.")
	}
	return resp
}
