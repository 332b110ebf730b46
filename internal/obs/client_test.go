/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package obs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/obsrec/internal/obs"
	"github.com/friendsincode/obsrec/internal/obs/obstest"
)

func newClient(addr, password string) *obs.Client {
	cfg := obs.DefaultConfig(addr, password)
	cfg.ConnectionTimeout = 2 * time.Second
	cfg.RequestTimeout = 2 * time.Second
	return obs.New(cfg, zerolog.Nop())
}

func TestAuthResponseKnownVector(t *testing.T) {
	// Vector from the obs-websocket protocol documentation.
	got := obs.AuthResponse("supersecretpassword",
		"lM1GncleQOaCu9lT1yeUZhFYnqhsLLP1G5lAGo3ixaI=",
		"+IxH4CnCiqpX1rM9scsNynZzbOe4KhDeYcTNS3PDaeY=")
	if got != "1Ct943GAT+6YQUUX47Ia/ncufilbe6+oD6lY+5kaCu4=" {
		t.Fatalf("auth response = %q", got)
	}
}

func TestClientRecordCycle(t *testing.T) {
	srv := obstest.NewServer("supersecretpassword")
	defer srv.Close()

	client := newClient(srv.Addr, "supersecretpassword")
	defer client.Close()

	ctx := context.Background()
	if err := client.StartRecord(ctx); err != nil {
		t.Fatalf("start record: %v", err)
	}
	if !client.IsConnected() {
		t.Fatal("expected client to be connected after first request")
	}

	status, err := client.GetRecordStatus(ctx)
	if err != nil {
		t.Fatalf("get record status: %v", err)
	}
	if !status.OutputActive {
		t.Fatal("expected record output to be active")
	}

	path, err := client.StopRecord(ctx)
	if err != nil {
		t.Fatalf("stop record: %v", err)
	}
	if path != "/recordings/capture.mkv" {
		t.Errorf("output path = %q", path)
	}
	if srv.Recording() {
		t.Fatal("expected server to stop recording")
	}
}

func TestClientRequestError(t *testing.T) {
	srv := obstest.NewServer("")
	defer srv.Close()

	client := newClient(srv.Addr, "")
	defer client.Close()

	_, err := client.StopRecord(context.Background())
	var reqErr *obs.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if reqErr.Code != obs.StatusOutputNotRunning {
		t.Errorf("code = %d, want %d", reqErr.Code, obs.StatusOutputNotRunning)
	}
	// A failed request status leaves the session usable.
	if !client.IsConnected() {
		t.Fatal("expected session to survive a failed request status")
	}
}

func TestClientWrongPassword(t *testing.T) {
	srv := obstest.NewServer("right")
	defer srv.Close()

	err := newClient(srv.Addr, "wrong").Connect(context.Background())
	if !errors.Is(err, obs.ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestClientMissingPassword(t *testing.T) {
	srv := obstest.NewServer("right")
	defer srv.Close()

	err := newClient(srv.Addr, "").Connect(context.Background())
	if !errors.Is(err, obs.ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestClientUnreachable(t *testing.T) {
	srv := obstest.NewServer("")
	addr := srv.Addr
	srv.Close()

	err := newClient(addr, "").StartRecord(context.Background())
	if !errors.Is(err, obs.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestClientReconnectsAfterDrop(t *testing.T) {
	srv := obstest.NewServer("")
	defer srv.Close()

	client := newClient(srv.Addr, "")
	defer client.Close()

	ctx := context.Background()
	if err := client.SetCurrentProgramScene(ctx, "Capture Board"); err != nil {
		t.Fatalf("set scene: %v", err)
	}
	srv.DropConnections()

	// The first request after a drop may fail on the stale session; the
	// following one must succeed on a fresh session.
	if err := client.StartRecord(ctx); err != nil {
		if !errors.Is(err, obs.ErrNotConnected) {
			t.Fatalf("unexpected error on stale session: %v", err)
		}
		if err := client.StartRecord(ctx); err != nil {
			t.Fatalf("start record after reconnect: %v", err)
		}
	}
	if !srv.Recording() {
		t.Fatal("expected recording after reconnect")
	}
	if srv.Scene() != "Capture Board" {
		t.Errorf("scene = %q", srv.Scene())
	}
}
