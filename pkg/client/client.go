//nolint:whitespace // can't make both editor and linter happy
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mpapenbr/lanerace-service-go/log"
	"github.com/mpapenbr/lanerace-service-go/pkg/auth"
	"github.com/mpapenbr/lanerace-service-go/pkg/endpoints/api"
	"github.com/mpapenbr/lanerace-service-go/pkg/events"
	"github.com/mpapenbr/lanerace-service-go/pkg/game"
	"github.com/mpapenbr/lanerace-service-go/pkg/service"
)

// APIError carries the error response of the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type (
	Option func(*Client)
	Client struct {
		baseURL string
		token   string
		idToken string
		http    *http.Client
		l       *log.Logger
	}
)

// WithToken sets the api token of the operator or of a player.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithIDToken sends an OIDC ID token as bearer token, the server uses its
// subject as player address.
func WithIDToken(token string) Option {
	return func(c *Client) {
		c.idToken = token
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.l = l
	}
}

func New(baseURL string, opts ...Option) *Client {
	ret := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		l:       log.Default().Named("client"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (c *Client) BuyTicket(ctx context.Context, startNumber int) (*game.Ticket, error) {
	var ret game.Ticket
	err := c.do(ctx, http.MethodPost, "/api/v1/tickets",
		map[string]any{"startNumber": startNumber}, &ret)
	return &ret, err
}

func (c *Client) StartRace(ctx context.Context, seed int64) (*game.Race, error) {
	var ret game.Race
	err := c.do(ctx, http.MethodPost, "/api/v1/races",
		map[string]any{"seed": seed}, &ret)
	return &ret, err
}

func (c *Client) Claim(ctx context.Context, raceID uint64) (*api.ClaimResponse, error) {
	var ret api.ClaimResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/races/%d/claim", raceID),
		nil, &ret)
	return &ret, err
}

func (c *Client) OpenSales(ctx context.Context) (*game.Status, error) {
	var ret game.Status
	err := c.do(ctx, http.MethodPost, "/api/v1/sales/open", nil, &ret)
	return &ret, err
}

func (c *Client) Race(ctx context.Context, raceID uint64) (*service.RaceView, error) {
	var ret service.RaceView
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/races/%d", raceID), nil, &ret)
	return &ret, err
}

func (c *Client) LatestRace(ctx context.Context) (*service.RaceView, error) {
	var ret service.RaceView
	err := c.do(ctx, http.MethodGet, "/api/v1/races/latest", nil, &ret)
	return &ret, err
}

func (c *Client) Player(ctx context.Context, addr game.Address) (*api.PlayerResponse, error) {
	var ret api.PlayerResponse
	err := c.do(ctx, http.MethodGet,
		"/api/v1/players/"+url.PathEscape(string(addr)), nil, &ret)
	return &ret, err
}

func (c *Client) Status(ctx context.Context) (*game.Status, error) {
	var ret game.Status
	err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &ret)
	return &ret, err
}

func (c *Client) Version(ctx context.Context) (*api.VersionResponse, error) {
	var ret api.VersionResponse
	err := c.do(ctx, http.MethodGet, "/api/v1/version", nil, &ret)
	return &ret, err
}

// Watch streams the game events of the server into handler until ctx is done,
// the connection is closed or handler returns an error.
func (c *Client) Watch(ctx context.Context, handler func(*events.Event) error) error {
	wsURL, err := url.Parse(c.baseURL + "/api/v1/events")
	if err != nil {
		return err
	}
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), c.header())
	if err != nil {
		return err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	for {
		var e events.Event
		if err := conn.ReadJSON(&e); err != nil {
			if ctx.Err() != nil ||
				websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		if err := handler(&e); err != nil {
			return err
		}
	}
}

func (c *Client) header() http.Header {
	h := http.Header{}
	if c.token != "" {
		h.Set(auth.TokenHeader, c.token)
	}
	if c.idToken != "" {
		h.Set(auth.AuthorizationHeader, "Bearer "+c.idToken)
	}
	return h
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header = c.header()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.l.Debug("request", log.String("method", method), log.String("path", path))
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var er api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err == nil {
			apiErr.Code = er.Code
			apiErr.Message = er.Message
		} else {
			apiErr.Message = resp.Status
		}
		return apiErr
	}
	if result == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}
