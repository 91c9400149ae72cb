package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/mitsuha/hoyo-qr-bot/internal/adapters/mihoyo"
)

// ErrSolveInProgress is returned when a second solve is requested while
// one is still waiting on the operator.
var ErrSolveInProgress = errors.New("a captcha solve is already in progress")

// Result carries the three GeeTest fields produced by one human solve.
type Result struct {
	Challenge string `json:"geetest_challenge"`
	Validate  string `json:"geetest_validate"`
	SecCode   string `json:"geetest_seccode"`
}

type pendingSolve struct {
	mmt  mihoyo.MMTData
	done chan Result
}

// GeeTest serves the interactive widget over a local HTTP endpoint and
// blocks the calling flow until the operator completes it. The wait is
// human-paced: it ends only on a solve or on context cancellation.
type GeeTest struct {
	listenAddr string
	log        zerolog.Logger
	server     *http.Server

	mu      sync.Mutex
	pending *pendingSolve
}

func NewGeeTest(listenAddr string, log zerolog.Logger) *GeeTest {
	g := &GeeTest{
		listenAddr: listenAddr,
		log:        log,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", g.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/challenge", g.handleChallenge).Methods(http.MethodGet)
	r.HandleFunc("/validate", g.handleValidate).Methods(http.MethodPost)

	g.server = &http.Server{
		Addr:              listenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return g
}

// Start begins serving the widget in the background.
func (g *GeeTest) Start() error {
	ln, err := net.Listen("tcp", g.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", g.listenAddr, err)
	}
	go func() {
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.log.Error().Err(err).Msg("captcha widget server stopped")
		}
	}()
	g.log.Info().Str("addr", g.listenAddr).Msg("captcha widget listening")
	return nil
}

func (g *GeeTest) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}

// Solve publishes the challenge to the widget and waits for the operator.
// Exactly one solve may be active at a time; an abandoned solve ends when
// ctx is cancelled.
func (g *GeeTest) Solve(ctx context.Context, mmt mihoyo.MMTData) (Result, error) {
	pending := &pendingSolve{mmt: mmt, done: make(chan Result, 1)}

	g.mu.Lock()
	if g.pending != nil {
		g.mu.Unlock()
		return Result{}, ErrSolveInProgress
	}
	g.pending = pending
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		if g.pending == pending {
			g.pending = nil
		}
		g.mu.Unlock()
	}()

	select {
	case result := <-pending.done:
		return result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (g *GeeTest) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(widgetPage))
}

func (g *GeeTest) handleChallenge(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	pending := g.pending
	g.mu.Unlock()

	if pending == nil {
		http.Error(w, "no pending verification", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success":     1,
		"gt":          pending.mmt.Gt,
		"challenge":   pending.mmt.Challenge,
		"new_captcha": pending.mmt.NewCaptcha,
	})
}

func (g *GeeTest) handleValidate(w http.ResponseWriter, r *http.Request) {
	var result Result
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if result.Challenge == "" || result.Validate == "" || result.SecCode == "" {
		http.Error(w, "incomplete solution", http.StatusBadRequest)
		return
	}

	g.mu.Lock()
	pending := g.pending
	g.pending = nil
	g.mu.Unlock()

	if pending == nil {
		http.Error(w, "no pending verification", http.StatusConflict)
		return
	}

	pending.done <- result
	g.log.Info().Msg("captcha solution received")
	w.WriteHeader(http.StatusNoContent)
}

const widgetPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Account Verification</title>
<script src="https://static.geetest.com/static/tools/gt.js"></script>
</head>
<body>
<p>Complete the verification below, then return to the console.</p>
<div id="captcha"></div>
<script>
fetch('/challenge').then(function (r) {
    if (!r.ok) throw new Error('no pending verification');
    return r.json();
}).then(function (data) {
    initGeetest({
        gt: data.gt,
        challenge: data.challenge,
        new_captcha: data.new_captcha,
        offline: false,
        product: 'popup',
        width: '300px'
    }, function (captchaObj) {
        captchaObj.appendTo('#captcha');
        captchaObj.onSuccess(function () {
            var result = captchaObj.getValidate();
            fetch('/validate', {
                method: 'POST',
                headers: {'Content-Type': 'application/json'},
                body: JSON.stringify({
                    geetest_challenge: result.geetest_challenge,
                    geetest_validate: result.geetest_validate,
                    geetest_seccode: result.geetest_seccode
                })
            }).then(function () {
                document.body.innerHTML = '<p>Verified. You can close this page.</p>';
            });
        });
    });
}).catch(function (err) {
    document.body.innerHTML = '<p>' + err.message + '</p>';
});
</script>
</body>
</html>`
