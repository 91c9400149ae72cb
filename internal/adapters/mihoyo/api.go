package mihoyo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/rs/zerolog"

	adhttp "github.com/mitsuha/hoyo-qr-bot/internal/adapters/http"
	"github.com/mitsuha/hoyo-qr-bot/internal/domain/model"
	"github.com/mitsuha/hoyo-qr-bot/pkg/utils"
)

const (
	source = "webstatic.mihoyo.com"

	defaultWebAPI  = "https://webapi.account.mihoyo.com/Api"
	defaultAuthAPI = "https://api-takumi.mihoyo.com/auth/api"
	defaultSDKAPI  = "https://api-sdk.mihoyo.com"

	// QRCodePrefix identifies in-game login QR payloads.
	QRCodePrefix = "https://user.mihoyo.com/qr_code_in_game.html"
)

// Client wraps the ordered remote calls of the account service. Every
// method is one-shot: a failure is final and the caller decides what a
// fresh attempt looks like (usually a new user action).
type Client struct {
	http   *adhttp.APIClient
	cipher *PasswordCipher
	log    zerolog.Logger

	webAPI  string
	authAPI string
	sdkAPI  string
}

type Option func(*Client)

// WithBaseURLs redirects the three endpoint families, used by tests to
// point the client at a synthetic remote.
func WithBaseURLs(webAPI, authAPI, sdkAPI string) Option {
	return func(c *Client) {
		c.webAPI = webAPI
		c.authAPI = authAPI
		c.sdkAPI = sdkAPI
	}
}

// WithCipher substitutes the password cipher, used by tests that hold the
// matching private key.
func WithCipher(cipher *PasswordCipher) Option {
	return func(c *Client) { c.cipher = cipher }
}

func NewClient(httpClient *adhttp.APIClient, log zerolog.Logger, opts ...Option) (*Client, error) {
	cipher, err := DefaultPasswordCipher()
	if err != nil {
		return nil, fmt.Errorf("account service public key: %w", err)
	}

	c := &Client{
		http:    httpClient,
		cipher:  cipher,
		log:     log,
		webAPI:  defaultWebAPI,
		authAPI: defaultAuthAPI,
		sdkAPI:  defaultSDKAPI,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MMTData describes one fresh captcha challenge issued by the remote.
type MMTData struct {
	Challenge  string `json:"challenge"`
	Gt         string `json:"gt"`
	MMTKey     string `json:"mmt_key"`
	NewCaptcha int    `json:"new_captcha"`
}

type createMMTRequest struct {
	MMTType   int   `url:"mmt_type"`
	SceneType int   `url:"scene_type"`
	Now       int64 `url:"now"`
}

// CreateVerification requests a challenge descriptor. No retries: a
// failure here is an infrastructure fault the client cannot recover from.
func (c *Client) CreateVerification(ctx context.Context) (MMTData, error) {
	form, err := query.Values(createMMTRequest{MMTType: 1, SceneType: 1, Now: timestampMS()})
	if err != nil {
		return MMTData{}, fmt.Errorf("failed to build create_mmt form: %w", err)
	}

	root, err := c.postFormWeb(ctx, "/create_mmt", form)
	if err != nil {
		return MMTData{}, err
	}

	var data map[string]json.RawMessage
	if err := member(root, "data", &data); err != nil {
		return MMTData{}, err
	}
	var mmt MMTData
	if err := member(data, "mmt_data", &mmt); err != nil {
		return MMTData{}, err
	}
	if strings.TrimSpace(mmt.MMTKey) == "" {
		return MMTData{}, protocolErrf("mmt_data carries no mmt_key")
	}
	return mmt, nil
}

// LoginResult is the identity pair produced by password login. Ticket is
// single-use: it is exchanged for session tokens and never reused.
type LoginResult struct {
	UID    string
	Ticket string
}

type loginRequest struct {
	Source    string `url:"source"`
	Account   string `url:"account"`
	Password  string `url:"password"`
	IsCrypto  bool   `url:"is_crypto"`
	T         int64  `url:"t"`
	MMTKey    string `url:"mmt_key"`
	SecCode   string `url:"geetest_seccode"`
	Validate  string `url:"geetest_validate"`
	Challenge string `url:"geetest_challenge"`
}

// LoginByPassword submits the account, the encrypted password and the
// captcha fields in one call. The remote validates credentials and
// challenge together; its message is surfaced verbatim on rejection.
func (c *Client) LoginByPassword(ctx context.Context, account, password string, captcha model.CaptchaSession) (LoginResult, error) {
	encrypted, err := c.cipher.Encrypt(password)
	if err != nil {
		return LoginResult{}, err
	}

	form, err := query.Values(loginRequest{
		Source:    source,
		Account:   account,
		Password:  encrypted,
		IsCrypto:  true,
		T:         timestampMS(),
		MMTKey:    captcha.MMTKey,
		SecCode:   captcha.SecCode,
		Validate:  captcha.Validate,
		Challenge: captcha.Challenge,
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("failed to build login form: %w", err)
	}

	root, err := c.postFormWeb(ctx, "/login_by_password", form)
	if err != nil {
		return LoginResult{}, err
	}

	var data map[string]json.RawMessage
	if err := member(root, "data", &data); err != nil {
		return LoginResult{}, err
	}
	var info struct {
		AccountID     json.Number `json:"account_id"`
		WebLoginToken string      `json:"weblogin_token"`
	}
	if err := member(data, "account_info", &info); err != nil {
		return LoginResult{}, err
	}
	result := LoginResult{UID: info.AccountID.String(), Ticket: info.WebLoginToken}
	if result.UID == "" || result.Ticket == "" {
		return LoginResult{}, protocolErrf("account_info missing account_id or weblogin_token")
	}
	return result, nil
}

// TokenPair are the session tokens derived from a login ticket. SToken
// authorizes later game-related calls; LToken is kept alongside it.
type TokenPair struct {
	LToken string
	SToken string
}

type multiTokenRequest struct {
	LoginTicket string `url:"login_ticket"`
	TokenTypes  int    `url:"token_types"`
	UID         string `url:"uid"`
}

// MultiTokenByLoginTicket exchanges (uid, ticket) for lToken/sToken. The
// response list is matched by entry name, never by position: the remote
// may reorder or extend it.
func (c *Client) MultiTokenByLoginTicket(ctx context.Context, uid, ticket string) (TokenPair, error) {
	params, err := utils.EncodeURLParams(multiTokenRequest{LoginTicket: ticket, TokenTypes: 3, UID: uid})
	if err != nil {
		return TokenPair{}, err
	}

	raw, err := c.http.Fetch(ctx, c.authAPI+"/getMultiTokenByLoginTicket?"+params, nil)
	if err != nil {
		return TokenPair{}, err
	}
	root, err := sdkEnvelope.unwrap(raw)
	if err != nil {
		return TokenPair{}, err
	}

	var data map[string]json.RawMessage
	if err := member(root, "data", &data); err != nil {
		return TokenPair{}, err
	}
	var list []struct {
		Name  string `json:"name"`
		Token string `json:"token"`
	}
	if err := member(data, "list", &list); err != nil {
		return TokenPair{}, err
	}

	var pair TokenPair
	for _, entry := range list {
		switch entry.Name {
		case "ltoken":
			pair.LToken = entry.Token
		case "stoken":
			pair.SToken = entry.Token
		}
	}
	if pair.LToken == "" || pair.SToken == "" {
		return TokenPair{}, protocolErrf("token list has no ltoken/stoken entries")
	}
	return pair, nil
}

// QRCodeParams are the identifiers embedded in a login QR payload.
type QRCodeParams struct {
	AppID  string
	Ticket string
	BizKey string
}

// ParseQRCodeURL validates a decoded QR payload and extracts the request
// identifiers from its query component.
func ParseQRCodeURL(codeURL string) (QRCodeParams, error) {
	if !strings.HasPrefix(codeURL, QRCodePrefix) {
		return QRCodeParams{}, fmt.Errorf("not an in-game login QR payload")
	}
	u, err := url.Parse(codeURL)
	if err != nil {
		return QRCodeParams{}, fmt.Errorf("malformed QR payload: %w", err)
	}
	q := u.Query()
	params := QRCodeParams{
		AppID:  q.Get("app_id"),
		Ticket: q.Get("ticket"),
		BizKey: q.Get("biz_key"),
	}
	if params.AppID == "" || params.Ticket == "" || params.BizKey == "" {
		return QRCodeParams{}, fmt.Errorf("QR payload missing app_id, ticket or biz_key")
	}
	return params, nil
}

type scanRequest struct {
	AppID  string `json:"app_id"`
	Ticket string `json:"ticket"`
	Device string `json:"device"`
}

// ScanQRCode announces the scan to the sdk endpoint scoped by the QR's
// biz_key. The call only acknowledges; confirmation is a separate step.
func (c *Client) ScanQRCode(ctx context.Context, code QRCodeParams, deviceID string) error {
	raw, err := c.http.Fetch(ctx, c.sdkAPI+"/"+code.BizKey+"/combo/panda/qrcode/scan", &adhttp.FetchOptions{
		Method: http.MethodPost,
		JSON:   scanRequest{AppID: code.AppID, Ticket: code.Ticket, Device: deviceID},
	})
	if err != nil {
		return err
	}
	_, err = sdkEnvelope.unwrap(raw)
	return err
}

type gameTokenRequest struct {
	SToken string `url:"stoken"`
	UID    string `url:"uid"`
}

// GameToken exchanges (uid, sToken) for a short-lived token scoped to one
// confirm call.
func (c *Client) GameToken(ctx context.Context, uid, sToken string) (string, error) {
	params, err := utils.EncodeURLParams(gameTokenRequest{SToken: sToken, UID: uid})
	if err != nil {
		return "", err
	}

	raw, err := c.http.Fetch(ctx, c.authAPI+"/getGameToken?"+params, nil)
	if err != nil {
		return "", err
	}
	root, err := sdkEnvelope.unwrap(raw)
	if err != nil {
		return "", err
	}

	var data struct {
		GameToken string `json:"game_token"`
	}
	if err := member(root, "data", &data); err != nil {
		return "", err
	}
	if data.GameToken == "" {
		return "", protocolErrf("empty game_token")
	}
	return data.GameToken, nil
}

type confirmPayload struct {
	Proto string `json:"proto"`
	Raw   string `json:"raw"`
}

type confirmRequest struct {
	AppID   string         `json:"app_id"`
	Ticket  string         `json:"ticket"`
	Device  string         `json:"device"`
	UID     string         `json:"uid"`
	Payload confirmPayload `json:"payload"`
}

// ConfirmQRCode approves the pending in-game login. Remote-side replay
// protection makes each QR payload single-use; a stale or altered payload
// is rejected with ExpiredCode or InvalidStat.
func (c *Client) ConfirmQRCode(ctx context.Context, code QRCodeParams, uid, gameToken, deviceID string) error {
	rawAccount, err := json.Marshal(struct {
		UID   string `json:"uid"`
		Token string `json:"token"`
	}{UID: uid, Token: gameToken})
	if err != nil {
		return fmt.Errorf("failed to build confirm payload: %w", err)
	}

	raw, err := c.http.Fetch(ctx, c.sdkAPI+"/"+code.BizKey+"/combo/panda/qrcode/confirm", &adhttp.FetchOptions{
		Method: http.MethodPost,
		JSON: confirmRequest{
			AppID:  code.AppID,
			Ticket: code.Ticket,
			Device: deviceID,
			UID:    uid,
			Payload: confirmPayload{
				Proto: "Account",
				Raw:   string(rawAccount),
			},
		},
	})
	if err != nil {
		return err
	}
	_, err = sdkEnvelope.unwrap(raw)
	return err
}

func (c *Client) postFormWeb(ctx context.Context, path string, form url.Values) (map[string]json.RawMessage, error) {
	raw, err := c.http.Fetch(ctx, c.webAPI+path, &adhttp.FetchOptions{
		Method: http.MethodPost,
		Form:   form,
	})
	if err != nil {
		return nil, err
	}
	return webEnvelope.unwrap(raw)
}

func timestampMS() int64 {
	return time.Now().UnixMilli()
}
