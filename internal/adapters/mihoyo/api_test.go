package mihoyo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	adhttp "github.com/mitsuha/hoyo-qr-bot/internal/adapters/http"
	"github.com/mitsuha/hoyo-qr-bot/internal/domain/model"
)

const testQRCodeURL = "https://user.mihoyo.com/qr_code_in_game.html?app_id=4&app_name=%E5%8E%9F%E7%A5%9E&bbs=true&biz_key=hk4e_cn&expire=1656497198&ticket=62b58cae01bd4b2d3db2eb27"

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append(opts, WithBaseURLs(server.URL+"/Api", server.URL+"/auth/api", server.URL))
	client, err := NewClient(adhttp.NewAPIClient(zerolog.Nop()), zerolog.Nop(), opts...)
	require.NoError(t, err)
	return client
}

func TestCreateVerification(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/Api/create_mmt", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "1", r.PostForm.Get("mmt_type"))
		assert.Equal(t, "1", r.PostForm.Get("scene_type"))
		assert.NotEmpty(t, r.PostForm.Get("now"))

		_, _ = w.Write([]byte(`{"status":1,"msg":"OK","data":{"mmt_data":{"challenge":"c1","gt":"g1","mmt_key":"k1","new_captcha":1}}}`))
	})

	client := newTestClient(t, mux)
	mmt, err := client.CreateVerification(context.Background())
	require.NoError(t, err)
	assert.Equal(t, MMTData{Challenge: "c1", Gt: "g1", MMTKey: "k1", NewCaptcha: 1}, mmt)
}

func TestCreateVerificationRemoteFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/Api/create_mmt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":-3101,"msg":"应用服务异常"}`))
	})

	client := newTestClient(t, mux)
	_, err := client.CreateVerification(context.Background())

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "应用服务异常", remote.Message)
}

func TestLoginByPassword(t *testing.T) {
	session := model.CaptchaSession{
		MMTKey:    "k1",
		Challenge: "ch",
		Validate:  "va",
		SecCode:   "va|jordan",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/Api/login_by_password", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "webstatic.mihoyo.com", r.PostForm.Get("source"))
		assert.Equal(t, "user@example.com", r.PostForm.Get("account"))
		assert.Equal(t, "true", r.PostForm.Get("is_crypto"))
		assert.NotEmpty(t, r.PostForm.Get("password"))
		assert.NotEqual(t, "secret", r.PostForm.Get("password"))
		assert.Equal(t, "k1", r.PostForm.Get("mmt_key"))
		assert.Equal(t, "ch", r.PostForm.Get("geetest_challenge"))
		assert.Equal(t, "va", r.PostForm.Get("geetest_validate"))
		assert.Equal(t, "va|jordan", r.PostForm.Get("geetest_seccode"))

		_, _ = w.Write([]byte(`{"status":1,"msg":"OK","data":{"account_info":{"account_id":75120354,"weblogin_token":"ticket-1"}}}`))
	})

	client := newTestClient(t, mux)
	result, err := client.LoginByPassword(context.Background(), "user@example.com", "secret", session)
	require.NoError(t, err)
	assert.Equal(t, LoginResult{UID: "75120354", Ticket: "ticket-1"}, result)
}

func TestLoginByPasswordRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/Api/login_by_password", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":-201,"msg":"验证码失效"}`))
	})

	client := newTestClient(t, mux)
	_, err := client.LoginByPassword(context.Background(), "user@example.com", "secret", model.CaptchaSession{})

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "验证码失效", remote.Message)
}

func TestMultiTokenExtractionIsNameKeyed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/api/getMultiTokenByLoginTicket", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "ticket-1", q.Get("login_ticket"))
		assert.Equal(t, "3", q.Get("token_types"))
		assert.Equal(t, "75120354", q.Get("uid"))

		// Deliberately reordered and extended; extraction must go by name.
		_, _ = w.Write([]byte(`{"retcode":0,"message":"OK","data":{"list":[
			{"name":"stoken","token":"B"},
			{"name":"cookie_token","token":"C"},
			{"name":"ltoken","token":"A"}
		]}}`))
	})

	client := newTestClient(t, mux)
	pair, err := client.MultiTokenByLoginTicket(context.Background(), "75120354", "ticket-1")
	require.NoError(t, err)
	assert.Equal(t, TokenPair{LToken: "A", SToken: "B"}, pair)
}

func TestMultiTokenMissingEntryIsProtocolError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/api/getMultiTokenByLoginTicket", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retcode":0,"message":"OK","data":{"list":[{"name":"ltoken","token":"A"}]}}`))
	})

	client := newTestClient(t, mux)
	_, err := client.MultiTokenByLoginTicket(context.Background(), "75120354", "ticket-1")

	var protocol *ProtocolError
	require.ErrorAs(t, err, &protocol)
}

func TestScanAndConfirmQRCode(t *testing.T) {
	code, err := ParseQRCodeURL(testQRCodeURL)
	require.NoError(t, err)
	assert.Equal(t, QRCodeParams{AppID: "4", Ticket: "62b58cae01bd4b2d3db2eb27", BizKey: "hk4e_cn"}, code)

	mux := http.NewServeMux()
	mux.HandleFunc("/hk4e_cn/combo/panda/qrcode/scan", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "4", body["app_id"])
		assert.Equal(t, "62b58cae01bd4b2d3db2eb27", body["ticket"])
		assert.Equal(t, "device-1", body["device"])
		_, _ = w.Write([]byte(`{"retcode":0,"message":"OK"}`))
	})
	mux.HandleFunc("/hk4e_cn/combo/panda/qrcode/confirm", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			AppID   string `json:"app_id"`
			UID     string `json:"uid"`
			Device  string `json:"device"`
			Payload struct {
				Proto string `json:"proto"`
				Raw   string `json:"raw"`
			} `json:"payload"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Account", body.Payload.Proto)

		var account map[string]string
		require.NoError(t, json.Unmarshal([]byte(body.Payload.Raw), &account))
		assert.Equal(t, "75120354", account["uid"])
		assert.Equal(t, "game-token-1", account["token"])

		_, _ = w.Write([]byte(`{"retcode":0,"message":"OK"}`))
	})

	client := newTestClient(t, mux)
	require.NoError(t, client.ScanQRCode(context.Background(), code, "device-1"))
	require.NoError(t, client.ConfirmQRCode(context.Background(), code, "75120354", "game-token-1", "device-1"))
}

func TestGameToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/api/getGameToken", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "stoken-1", q.Get("stoken"))
		assert.Equal(t, "75120354", q.Get("uid"))
		_, _ = w.Write([]byte(`{"retcode":0,"message":"OK","data":{"game_token":"game-token-1"}}`))
	})

	client := newTestClient(t, mux)
	token, err := client.GameToken(context.Background(), "75120354", "stoken-1")
	require.NoError(t, err)
	assert.Equal(t, "game-token-1", token)
}

func TestParseQRCodeURLRejections(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{name: "wrong host", url: "https://example.com/qr_code_in_game.html?app_id=4&ticket=t&biz_key=hk4e_cn"},
		{name: "missing ticket", url: QRCodePrefix + "?app_id=4&biz_key=hk4e_cn"},
		{name: "missing biz_key", url: QRCodePrefix + "?app_id=4&ticket=t"},
		{name: "empty", url: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQRCodeURL(tt.url)
			assert.Error(t, err)
		})
	}
}
