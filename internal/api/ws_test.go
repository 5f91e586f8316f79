package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/matryer/is"
	"github.com/valyala/fastjson"

	"github.com/ferux/tankhub/internal/model"
	"github.com/ferux/tankhub/internal/signature"
	"github.com/ferux/tankhub/internal/wire"
)

func (f *fixture) serve(t *testing.T) string {
	t.Helper()

	srv := httptest.NewServer(f.api.Handler())
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, base, path string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(base+path, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", path, err)
	}
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func next(t *testing.T, conn *websocket.Conn) (string, *fastjson.Value) {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading frame: %v", err)
	}

	v, err := fastjson.ParseBytes(data)
	if err != nil {
		t.Fatalf("parsing %q: %v", data, err)
	}

	return string(v.GetStringBytes("event")), v.Get("data")
}

func closed(conn *websocket.Conn) bool {
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		return false
	}

	if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
		return false
	}

	return true
}

func identify(t *testing.T, conn *websocket.Conn, secret string) {
	t.Helper()

	err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"identify","secret":"`+secret+`"}`))
	if err != nil {
		t.Fatalf("identifying: %v", err)
	}
}

func sendLevel(t *testing.T, conn *websocket.Conn, secret, signer string, level int) {
	t.Helper()

	payload := signature.Payload{Level: level, Status: string(model.StatusOnline)}
	sig := signature.SHA1{}.Sign(signer, payload)

	var a fastjson.Arena
	msg := a.NewObject()
	msg.Set("type", a.NewString(wire.TypeTelemetry))
	msg.Set("secret", a.NewString(secret))
	msg.Set("level", a.NewNumberInt(level))
	msg.Set("status", a.NewString(string(model.StatusOnline)))
	msg.Set("signature", a.NewString(sig))

	if err := conn.WriteMessage(websocket.TextMessage, msg.MarshalTo(nil)); err != nil {
		t.Fatalf("sending telemetry: %v", err)
	}
}

func TestDeviceSession(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	id := f.pair(t, "Roof", "hw-1")
	secret := f.handoff.creds[0].Secret
	base := f.serve(t)

	observer := dial(t, base, "/ws/dashboard")
	event, data := next(t, observer)
	is.Equal(event, "snapshot")
	is.Equal(len(data.GetArray()), 1)

	device := dial(t, base, "/ws/device")
	identify(t, device, secret)
	event, data = next(t, device)
	is.Equal(event, "physical-config")
	is.Equal(data.GetInt("height"), 150)

	sendLevel(t, device, secret, secret, 60)
	event, data = next(t, observer)
	is.Equal(event, "update")
	is.Equal(string(data.GetStringBytes("id")), id)
	is.Equal(data.GetInt("level"), 60)

	// forged and foreign messages are dropped
	sendLevel(t, device, secret, "guess", 10)
	sendLevel(t, device, "tank_other", "tank_other", 10)
	sendLevel(t, device, secret, secret, 61)
	event, data = next(t, observer)
	is.Equal(event, "update")
	is.Equal(data.GetInt("level"), 61)

	code, _ := f.do(t, http.MethodDelete, "/api/v1/tanks/"+id, "")
	is.Equal(code, http.StatusOK)

	event, data = next(t, observer)
	is.Equal(event, "decommissioned")
	is.Equal(string(data.GetStringBytes("id")), id)
	is.True(closed(device))
}

func TestDeviceSessionCBOR(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	f.pair(t, "Roof", "hw-1")
	secret := f.handoff.creds[0].Secret
	base := f.serve(t)

	frame, err := wire.EncodeDeviceCBOR(wire.DeviceMessage{
		Type:     wire.TypeIdentify,
		Identify: wire.Identify{Secret: secret},
	})
	is.NoErr(err)

	device := dial(t, base, "/ws/device")
	is.NoErr(device.WriteMessage(websocket.BinaryMessage, frame))

	event, data := next(t, device)
	is.Equal(event, "physical-config")
	is.Equal(data.GetInt("height"), 150)
}

func TestDeviceIdentifyRejected(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	base := f.serve(t)

	device := dial(t, base, "/ws/device")
	identify(t, device, "unknown")
	is.True(closed(device))
}

func TestObserverUpdatesConfig(t *testing.T) {
	is := is.New(t)
	f := newFixture(t)
	id := f.pair(t, "Roof", "hw-1")
	secret := f.handoff.creds[0].Secret
	base := f.serve(t)

	device := dial(t, base, "/ws/device")
	identify(t, device, secret)
	event, _ := next(t, device)
	is.Equal(event, "physical-config")

	observer := dial(t, base, "/ws/dashboard")
	event, _ = next(t, observer)
	is.Equal(event, "snapshot")

	// malformed frames are ignored
	is.NoErr(observer.WriteMessage(websocket.TextMessage, []byte(`{"type":"reboot"}`)))
	is.NoErr(observer.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"update-config","id":"`+id+`","name":"Garden","capacity":9000}`)))

	event, data := next(t, observer)
	is.Equal(event, "update")
	is.Equal(string(data.GetStringBytes("name")), "Garden")
	is.Equal(data.GetInt("capacity"), 9000)

	event, data = next(t, device)
	is.Equal(event, "config")
	is.Equal(string(data.GetStringBytes("name")), "Garden")
	is.Equal(data.GetInt("capacity"), 9000)

	is.Equal(f.hub.Stats().Observers, 1)
}
