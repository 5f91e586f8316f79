package pairing

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/rs/zerolog"
	"github.com/valyala/fastjson"
)

func TestNewCredentials(t *testing.T) {
	is := is.New(t)

	a, b := NewCredentials("http://hub:3000"), NewCredentials("http://hub:3000")
	is.True(strings.HasPrefix(a.TankID, "tank_"))
	is.Equal(len(a.TankID), len("tank_")+8)
	is.True(a.Secret != b.Secret)
	is.Equal(a.ServerURL, "http://hub:3000")
}

func TestBody(t *testing.T) {
	is := is.New(t)
	creds := Credentials{Secret: "s1", TankID: "tank_1", ServerURL: `http://hub:3000/"x"`}

	v, err := fastjson.ParseBytes(creds.Body())
	is.NoErr(err)
	is.Equal(string(v.GetStringBytes("secret")), "s1")
	is.Equal(string(v.GetStringBytes("tankId")), "tank_1")
	is.Equal(string(v.GetStringBytes("serverUrl")), `http://hub:3000/"x"`)
}

func hostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()

	host, port, err := net.SplitHostPort(strings.TrimPrefix(rawURL, "http://"))
	if err != nil {
		t.Fatalf("splitting %s: %v", rawURL, err)
	}

	n, _ := strconv.Atoi(port)

	return host, n
}

func TestHandoff(t *testing.T) {
	is := is.New(t)

	var body, path, method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body, path, method = string(data), r.URL.Path, r.Method
	}))
	defer srv.Close()

	ip, port := hostPort(t, srv.URL)
	creds := Credentials{Secret: "s1", TankID: "tank_1", ServerURL: "http://hub"}

	c := New(time.Second, zerolog.Nop())
	is.NoErr(c.Handoff(context.Background(), ip, port, creds))
	is.Equal(method, http.MethodPost)
	is.Equal(path, "/config")
	is.Equal(body, string(creds.Body()))
}

func TestHandoffRejected(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ip, port := hostPort(t, srv.URL)
	c := New(time.Second, zerolog.Nop())

	is.True(c.Handoff(context.Background(), ip, port, Credentials{}) != nil)
}

func TestHandoffUnreachable(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(http.NotFoundHandler())
	ip, port := hostPort(t, srv.URL)
	srv.Close()

	c := New(time.Second, zerolog.Nop())
	is.True(c.Handoff(context.Background(), ip, port, Credentials{}) != nil)
}
