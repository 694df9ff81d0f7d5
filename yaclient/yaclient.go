// Package yaclient implements the VK Teams Bot API HTTP client: token
// authentication, cursor-style long-polling over events/get, and the
// outbound send methods handlers use to answer. It satisfies
// yadispatcher.Bot, so one client plugs straight into the polling loop.
package yaclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/YaCodeDev/GoVKTeamsBot/yabackoff"
	"github.com/YaCodeDev/GoVKTeamsBot/yaerrors"
	"github.com/YaCodeDev/GoVKTeamsBot/yalogger"
	"github.com/YaCodeDev/GoVKTeamsBot/yatypes"
	"github.com/kelseyhightower/envconfig"
)

// DefaultAPIURL is the public VK Teams Bot API endpoint; on-premise
// deployments override it (e.g. "https://myteam.mail.ru/bot/v1").
const DefaultAPIURL = "https://api.icq.net/bot/v1"

// Config holds the client options, loadable from the environment.
type Config struct {
	Token  string `envconfig:"TOKEN" required:"true"`
	APIURL string `envconfig:"API_URL" default:"https://api.icq.net/bot/v1"`

	// Timeout is the per-request budget. Long polls over events/get get
	// Timeout plus the poll time, so an idle poll that holds the request
	// open for the full server-side budget never trips the client deadline.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"30s"`

	// RateLimit caps outbound requests per second. Zero means unlimited.
	RateLimit float64 `envconfig:"RATE_LIMIT"`

	// RetryOn5xx is how many times a request is retried on server errors.
	RetryOn5xx int `envconfig:"RETRY_ON_5XX" default:"3"`
}

// LoadConfig reads the configuration from VKTEAMS_* environment variables.
func LoadConfig() (*Config, yaerrors.Error) {
	var config Config

	if err := envconfig.Process("VKTEAMS", &config); err != nil {
		return nil, yaerrors.FromError(
			http.StatusInternalServerError,
			err,
			"[CLIENT] failed to load config from environment",
		)
	}

	return &config, nil
}

// APIError is a Bot API-level failure: the HTTP exchange succeeded but the
// server answered ok=false.
type APIError struct {
	Endpoint    string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bot api %s: %s", e.Endpoint, e.Description)
}

// serverError means the server kept answering 5xx through the whole retry
// budget.
type serverError struct {
	endpoint string
	status   int
}

func (e *serverError) Error() string {
	return fmt.Sprintf("bot api %s: server kept answering %d", e.endpoint, e.status)
}

// rateLimiter enforces a minimum interval between outbound requests.
type rateLimiter struct {
	mutex    sync.Mutex
	interval time.Duration
	last     time.Time
}

func (r *rateLimiter) acquire(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	wait := r.interval - time.Since(r.last)
	if wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	r.last = time.Now()

	return nil
}

// BotInfo is the bot's own profile from self/get.
type BotInfo struct {
	UserID    string `json:"userId"`
	Nick      string `json:"nick,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	About     string `json:"about,omitempty"`
}

// Client is the HTTP Bot API client. Safe for concurrent use; the event
// cursor advances atomically.
type Client struct {
	token      string
	apiURL     string
	timeout    time.Duration
	retryOn5xx int
	log        yalogger.Logger

	httpClient  *http.Client
	limiter     *rateLimiter
	lastEventID atomic.Int64
}

// NewClient creates a client from the given config. A nil logger creates a
// fresh one.
func NewClient(config *Config, log yalogger.Logger) *Client {
	if log == nil {
		log = yalogger.New(nil)
	}

	apiURL := strings.TrimRight(config.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rateLimiter
	if config.RateLimit > 0 {
		limiter = &rateLimiter{
			interval: time.Duration(float64(time.Second) / config.RateLimit),
		}
	}

	// Deadlines are applied per attempt via context, not on the http.Client:
	// a blanket client timeout would cut long polls short of their server-side
	// budget.
	return &Client{
		token:      config.Token,
		apiURL:     apiURL,
		timeout:    timeout,
		retryOn5xx: config.RetryOn5xx,
		log:        log.WithField("bot_id", botIDFromToken(config.Token)),
		httpClient: &http.Client{},
		limiter:    limiter,
	}
}

// botIDFromToken extracts the bot identity fragment. Tokens carry the bot id
// after the last colon; a token without one is used as-is.
func botIDFromToken(token string) string {
	if index := strings.LastIndex(token, ":"); index >= 0 && index < len(token)-1 {
		return token[index+1:]
	}

	return token
}

// ID returns the bot identity fragment used in FSM storage keys.
func (c *Client) ID() string {
	return botIDFromToken(c.token)
}

// request POSTs one endpoint with form parameters under the default
// per-request budget, retrying server errors with exponential backoff. The
// token is injected into every call.
func (c *Client) request(
	ctx context.Context,
	endpoint string,
	params url.Values,
	out any,
) error {
	return c.requestWithBudget(ctx, endpoint, params, out, c.timeout)
}

// requestWithBudget is request with an explicit per-attempt deadline; the
// long poll passes Timeout plus its poll time here so the client-side
// deadline always outlives the server-side one.
func (c *Client) requestWithBudget(
	ctx context.Context,
	endpoint string,
	params url.Values,
	out any,
	budget time.Duration,
) error {
	if c.limiter != nil {
		if err := c.limiter.acquire(ctx); err != nil {
			return err
		}
	}

	if params == nil {
		params = url.Values{}
	}

	params.Set("token", c.token)

	backoff := yabackoff.NewExponential(time.Second, 2, 8*time.Second)

	attempts := c.retryOn5xx + 1
	if attempts < 1 {
		attempts = 1
	}

	var lastStatus int

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff.Next()):
			}
		}

		status, err := c.attempt(ctx, endpoint, params, out, budget)
		if err != nil {
			return err
		}

		if status == 0 {
			return nil
		}

		lastStatus = status

		c.log.WithField("endpoint", endpoint).
			Warnf("server answered %d, attempt %d/%d", status, attempt+1, attempts)
	}

	return &serverError{endpoint: endpoint, status: lastStatus}
}

// attempt performs one HTTP exchange. A zero status with a nil error means
// success (out is populated); a non-zero status means a retryable 5xx.
func (c *Client) attempt(
	ctx context.Context,
	endpoint string,
	params url.Values,
	out any,
	budget time.Duration,
) (int, error) {
	if budget > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.apiURL+"/"+endpoint,
		strings.NewReader(params.Encode()),
	)
	if err != nil {
		return 0, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}

	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return resp.StatusCode, nil
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("bot api %s: unexpected status %d", endpoint, resp.StatusCode)
	}

	var envelope struct {
		OK          *bool  `json:"ok"`
		Description string `json:"description"`
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return 0, fmt.Errorf("bot api %s: invalid response: %w", endpoint, err)
	}

	if err := json.Unmarshal(raw, &envelope); err != nil {
		return 0, fmt.Errorf("bot api %s: invalid response: %w", endpoint, err)
	}

	if envelope.OK != nil && !*envelope.OK {
		description := envelope.Description
		if description == "" {
			description = "unknown error"
		}

		return 0, &APIError{Endpoint: endpoint, Description: description}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return 0, fmt.Errorf("bot api %s: invalid response body: %w", endpoint, err)
		}
	}

	return 0, nil
}

// GetEvents long-polls events/get and advances the event cursor past every
// update it returns. Reverse proxies routinely cut long polls with 5xx
// before pollTime elapses; after the retry budget that case degrades to an
// empty batch instead of an error, so the polling loop just reconnects.
func (c *Client) GetEvents(
	ctx context.Context,
	pollTime time.Duration,
) ([]yatypes.Update, error) {
	params := url.Values{}
	params.Set("lastEventId", strconv.FormatInt(c.lastEventID.Load(), 10))
	params.Set("pollTime", strconv.FormatInt(int64(pollTime/time.Second), 10))

	var response struct {
		Events []yatypes.Update `json:"events"`
	}

	budget := c.timeout + pollTime

	if err := c.requestWithBudget(ctx, "events/get", params, &response, budget); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}

		var cut *serverError
		if errors.As(err, &cut) {
			c.log.Debugf("long poll cut by server, reconnecting: %v", err)

			return nil, nil
		}

		return nil, err
	}

	for _, update := range response.Events {
		for {
			current := c.lastEventID.Load()
			if update.EventID <= current ||
				c.lastEventID.CompareAndSwap(current, update.EventID) {
				break
			}
		}
	}

	return response.Events, nil
}

// GetMe fetches the bot's own profile via self/get.
func (c *Client) GetMe(ctx context.Context) (*BotInfo, error) {
	var info BotInfo

	if err := c.request(ctx, "self/get", nil, &info); err != nil {
		return nil, err
	}

	return &info, nil
}

// SendTextOptions are the optional parameters of SendText.
type SendTextOptions struct {
	// ReplyMsgID quotes an existing message, comma-separated for several.
	ReplyMsgID string

	// InlineKeyboard is the serialized inlineKeyboardMarkup rows.
	InlineKeyboard string

	// ParseMode is "HTML" or "MarkdownV2"; empty sends plain text.
	ParseMode string
}

// SendText sends a text message via messages/sendText and returns the new
// message ID.
//
// Example:
//
//	msgID, err := client.SendText(ctx, chat.ChatID, "pong", nil)
func (c *Client) SendText(
	ctx context.Context,
	chatID string,
	text string,
	options *SendTextOptions,
) (string, error) {
	params := url.Values{}
	params.Set("chatId", chatID)
	params.Set("text", text)

	if options != nil {
		if options.ReplyMsgID != "" {
			params.Set("replyMsgId", options.ReplyMsgID)
		}

		if options.InlineKeyboard != "" {
			params.Set("inlineKeyboardMarkup", options.InlineKeyboard)
		}

		if options.ParseMode != "" {
			params.Set("parseMode", options.ParseMode)
		}
	}

	var response struct {
		MsgID string `json:"msgId"`
	}

	if err := c.request(ctx, "messages/sendText", params, &response); err != nil {
		return "", err
	}

	return response.MsgID, nil
}

// AnswerCallbackQuery acknowledges a button press via
// messages/answerCallbackQuery, optionally with a toast or alert.
func (c *Client) AnswerCallbackQuery(
	ctx context.Context,
	queryID string,
	text string,
	showAlert bool,
) error {
	params := url.Values{}
	params.Set("queryId", queryID)

	if text != "" {
		params.Set("text", text)
	}

	if showAlert {
		params.Set("showAlert", "true")
	}

	return c.request(ctx, "messages/answerCallbackQuery", params, nil)
}

// Close releases idle connections. The client is unusable afterwards only by
// convention; in-flight requests finish normally.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()

	return nil
}
