package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mitsuha/hoyo-qr-bot/internal/adapters/captcha"
	"github.com/mitsuha/hoyo-qr-bot/internal/adapters/mihoyo"
	"github.com/mitsuha/hoyo-qr-bot/internal/domain/model"
	"github.com/mitsuha/hoyo-qr-bot/internal/storage/accountfile"
)

// CaptchaSolver obtains one externally solved challenge for the given
// descriptor. It blocks until the human completes it or ctx is cancelled.
type CaptchaSolver interface {
	Solve(ctx context.Context, mmt mihoyo.MMTData) (captcha.Result, error)
}

// Credentials are the interactive first-run inputs. The password only
// ever leaves the process encrypted.
type Credentials struct {
	Account  string
	Password string
}

// LoginSequence runs the ordered calls from challenge creation to token
// derivation and persists the resulting AccountRecord. The sequence has
// no retries: every rejection implies a precondition only a fresh user
// action can fix. A mutex serializes concurrent triggers since the
// sequence gates on a single human solving a captcha.
type LoginSequence struct {
	api    *mihoyo.Client
	solver CaptchaSolver
	store  *accountfile.Store
	log    zerolog.Logger

	mu sync.Mutex
}

func NewLoginSequence(api *mihoyo.Client, solver CaptchaSolver, store *accountfile.Store, log zerolog.Logger) *LoginSequence {
	return &LoginSequence{
		api:    api,
		solver: solver,
		store:  store,
		log:    log,
	}
}

// Run executes the full sequence. Any failure aborts it and leaves no
// partial record behind.
func (s *LoginSequence) Run(ctx context.Context, creds Credentials) (model.AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mmt, err := s.api.CreateVerification(ctx)
	if err != nil {
		return model.AccountRecord{}, fmt.Errorf("failed to create verification challenge: %w", err)
	}
	s.log.Info().Str("mmt_key", mmt.MMTKey).Msg("challenge created, waiting for operator")

	solution, err := s.solver.Solve(ctx, mmt)
	if err != nil {
		return model.AccountRecord{}, fmt.Errorf("captcha solve aborted: %w", err)
	}

	session := model.CaptchaSession{
		MMTKey:    mmt.MMTKey,
		Challenge: solution.Challenge,
		Validate:  solution.Validate,
		SecCode:   solution.SecCode,
	}
	login, err := s.api.LoginByPassword(ctx, creds.Account, creds.Password, session)
	if err != nil {
		return model.AccountRecord{}, fmt.Errorf("password login failed: %w", err)
	}
	s.log.Info().Str("uid", login.UID).Msg("password login accepted")

	tokens, err := s.api.MultiTokenByLoginTicket(ctx, login.UID, login.Ticket)
	if err != nil {
		return model.AccountRecord{}, fmt.Errorf("token derivation failed: %w", err)
	}

	record := model.AccountRecord{
		DeviceID:    uuid.NewString(),
		UID:         login.UID,
		LoginTicket: login.Ticket,
		LToken:      tokens.LToken,
		SToken:      tokens.SToken,
	}
	if err := s.store.Save(record); err != nil {
		return model.AccountRecord{}, fmt.Errorf("failed to persist account record: %w", err)
	}

	s.log.Info().Str("uid", record.UID).Msg("account record created")
	return record, nil
}
