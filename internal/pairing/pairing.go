// Package pairing hands fresh credentials to a node on the local network.
package pairing

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pborman/uuid"
	"github.com/rs/zerolog"
	"github.com/valyala/fastjson"
)

// DefaultPort is the configuration port of node firmware.
const DefaultPort = 80

// Credentials pushed to the node.
type Credentials struct {
	Secret    string
	TankID    string
	ServerURL string
}

// NewCredentials generates a public id and a secret.
func NewCredentials(serverURL string) Credentials {
	return Credentials{
		TankID:    "tank_" + uuid.New()[:8],
		Secret:    uuid.New(),
		ServerURL: serverURL,
	}
}

// Body renders the credentials the way node firmware expects them.
func (c Credentials) Body() []byte {
	var a fastjson.Arena

	o := a.NewObject()
	o.Set("secret", a.NewString(c.Secret))
	o.Set("tankId", a.NewString(c.TankID))
	o.Set("serverUrl", a.NewString(c.ServerURL))

	return o.MarshalTo(nil)
}

// Client pushes credentials to nodes.
type Client struct {
	c      *http.Client
	logger zerolog.Logger
}

func New(timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		c:      &http.Client{Timeout: timeout},
		logger: logger.With().Str("pkg", "pairing").Logger(),
	}
}

// Handoff posts creds to http://ip:port/config.
func (c *Client) Handoff(ctx context.Context, ip string, port int, creds Credentials) error {
	if port <= 0 {
		port = DefaultPort
	}

	target := "http://" + net.JoinHostPort(ip, strconv.Itoa(port)) + "/config"

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(string(creds.Body())))
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	request.Header.Set("content-type", "application/json")

	c.logger.Info().Str("target", target).Str("id", creds.TankID).Msg("pushing credentials")

	response, err := c.c.Do(request)
	if err != nil {
		return fmt.Errorf("node %s unreachable: %w", ip, err)
	}
	defer response.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 1<<16))

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("node %s answered %d", ip, response.StatusCode)
	}

	return nil
}
