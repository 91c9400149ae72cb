package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mitsuha/hoyo-qr-bot/internal/adapters/captcha"
	adhttp "github.com/mitsuha/hoyo-qr-bot/internal/adapters/http"
	"github.com/mitsuha/hoyo-qr-bot/internal/adapters/mihoyo"
	"github.com/mitsuha/hoyo-qr-bot/internal/adapters/telegram"
	"github.com/mitsuha/hoyo-qr-bot/internal/app/worker"
	"github.com/mitsuha/hoyo-qr-bot/internal/config"
	"github.com/mitsuha/hoyo-qr-bot/internal/domain/model"
	"github.com/mitsuha/hoyo-qr-bot/internal/platform/logger"
	"github.com/mitsuha/hoyo-qr-bot/internal/platform/ui"
	"github.com/mitsuha/hoyo-qr-bot/internal/storage/accountfile"
	"github.com/mitsuha/hoyo-qr-bot/internal/storage/scanlog"
)

// App owns the account record for the process lifetime and wires the
// flows to their collaborators.
type App struct {
	cfg     config.Config
	console *ui.Console
	api     *mihoyo.Client
	solver  *captcha.GeeTest
	store   *accountfile.Store
	scans   *scanlog.Store
	login   *worker.LoginSequence

	mu         sync.RWMutex
	record     model.AccountRecord
	haveRecord bool
}

func New(cfg config.Config) (*App, error) {
	api, err := mihoyo.NewClient(adhttp.NewAPIClient(logger.Named("http")), logger.Named("mihoyo"))
	if err != nil {
		return nil, err
	}

	solver := captcha.NewGeeTest(cfg.CaptchaListenAddr, logger.Named("captcha"))
	store := accountfile.NewStore(cfg.AccountFilePath())

	scans, err := scanlog.NewStore(cfg.ScanLogPath())
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:     cfg,
		console: ui.NewConsole(),
		api:     api,
		solver:  solver,
		store:   store,
		scans:   scans,
		login:   worker.NewLoginSequence(api, solver, store, logger.Named("login")),
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.scans.Close()

	if err := a.solver.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.solver.Shutdown(shutdownCtx)
	}()

	if err := a.bootstrap(ctx); err != nil {
		return err
	}

	handler, err := telegram.NewHandler(a.cfg.TelegramBotToken, a, a.cfg.UserAllowed, logger.Named("telegram"))
	if err != nil {
		return err
	}

	botCtx, stopBot := context.WithCancel(ctx)
	defer stopBot()
	go handler.Start(botCtx)

	a.console.Info("Bot is running. Commands: /stop, /switch, /status")
	return a.commandLoop(ctx)
}

// bootstrap loads the persisted record or, when none exists yet, runs the
// interactive login sequence. A corrupt record is fatal: recreating it
// silently would hide whatever damaged the file.
func (a *App) bootstrap(ctx context.Context) error {
	record, err := a.store.Load()
	switch {
	case err == nil:
		a.setRecord(record)
		a.console.Info(fmt.Sprintf("Using saved account record (uid %s)", record.UID))
		return nil
	case errors.Is(err, accountfile.ErrNotExist):
		a.console.Info("No account record found, starting first-run login")
		return a.interactiveLogin(ctx)
	case errors.Is(err, accountfile.ErrCorrupt):
		return fmt.Errorf("refusing to start: %w (inspect or delete %s)", err, a.cfg.AccountFilePath())
	default:
		return err
	}
}

func (a *App) interactiveLogin(ctx context.Context) error {
	account, err := a.console.PromptAccount()
	if err != nil {
		return err
	}
	password, err := a.console.PromptPassword()
	if err != nil {
		return err
	}

	a.console.ShowCaptchaPrompt(a.cfg.CaptchaURL())

	record, err := a.login.Run(ctx, worker.Credentials{Account: account, Password: password})
	if err != nil {
		a.console.Error("Login failed: " + err.Error())
		return err
	}

	a.setRecord(record)
	a.console.Success(fmt.Sprintf("Logged in as uid %s", record.UID))
	return nil
}

// Approve satisfies telegram.Approver: one independent flow per inbound
// QR payload, sharing only a copy of the current record.
func (a *App) Approve(ctx context.Context, codeURL string, requester int64) worker.FlowResult {
	record, ok := a.currentRecord()
	if !ok {
		return worker.FlowResult{Outcome: worker.OutcomeFailed, Message: "no account record"}
	}
	flow := worker.NewQRFlow(a.api, record, a.scans, logger.Named("qrflow"))
	return flow.Run(ctx, codeURL, requester)
}

func (a *App) commandLoop(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()
				return nil
			}
			switch line {
			case "/stop":
				return nil
			case "/switch":
				if err := a.switchAccount(ctx); err != nil {
					a.console.Error("Switch failed: " + err.Error())
				}
			case "/status":
				a.printStatus()
			case "":
			default:
				a.console.Info("Unknown command. Available: /stop, /switch, /status")
			}
		}
	}
}

// switchAccount discards the persisted record and re-enters the login
// sequence from the start.
func (a *App) switchAccount(ctx context.Context) error {
	if err := a.store.Delete(); err != nil {
		return err
	}
	a.clearRecord()
	return a.interactiveLogin(ctx)
}

func (a *App) printStatus() {
	record, ok := a.currentRecord()
	if !ok {
		a.console.Info("No account record loaded")
		return
	}
	a.console.Info(fmt.Sprintf("Account uid %s, device %s", record.UID, record.DeviceID))

	counts, err := a.scans.CountByOutcome()
	if err != nil {
		a.console.Error("Failed to read scan log: " + err.Error())
		return
	}
	if len(counts) == 0 {
		a.console.Info("No QR attempts recorded yet")
		return
	}
	for outcome, count := range counts {
		a.console.Info(fmt.Sprintf("  %-10s %d", outcome, count))
	}
}

func (a *App) setRecord(record model.AccountRecord) {
	a.mu.Lock()
	a.record = record
	a.haveRecord = true
	a.mu.Unlock()
}

func (a *App) clearRecord() {
	a.mu.Lock()
	a.record = model.AccountRecord{}
	a.haveRecord = false
	a.mu.Unlock()
}

func (a *App) currentRecord() (model.AccountRecord, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.record, a.haveRecord
}
