package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mitsuha/hoyo-qr-bot/internal/adapters/mihoyo"
	"github.com/mitsuha/hoyo-qr-bot/internal/domain/model"
	"github.com/mitsuha/hoyo-qr-bot/internal/storage/scanlog"
)

// Remote error texts the confirm endpoint uses for stale or replayed
// payloads.
const (
	remoteExpiredCode = "ExpiredCode"
	remoteInvalidStat = "InvalidStat"
)

// QRFlow confirms one in-game login QR per Run call. Instances share no
// mutable state: the account record is copied in at construction and the
// remote side owns replay rejection, so concurrent flows need no local
// coordination.
type QRFlow struct {
	api    *mihoyo.Client
	record model.AccountRecord
	scans  *scanlog.Store
	log    zerolog.Logger
}

func NewQRFlow(api *mihoyo.Client, record model.AccountRecord, scans *scanlog.Store, log zerolog.Logger) *QRFlow {
	return &QRFlow{
		api:    api,
		record: record,
		scans:  scans,
		log:    log,
	}
}

// Run walks the scan → game-token → confirm chain for one decoded QR
// payload and maps the terminal state to the single user-visible reply.
func (f *QRFlow) Run(ctx context.Context, codeURL string, requester int64) FlowResult {
	result := f.confirm(ctx, codeURL)
	f.recordAttempt(result, requester)
	return result
}

func (f *QRFlow) confirm(ctx context.Context, codeURL string) FlowResult {
	code, err := mihoyo.ParseQRCodeURL(codeURL)
	if err != nil {
		f.log.Warn().Err(err).Msg("rejecting undecodable QR payload")
		return FlowResult{Outcome: OutcomeInvalid, Reply: ReplyExpired, Message: err.Error()}
	}

	if err := f.api.ScanQRCode(ctx, code, f.record.DeviceID); err != nil {
		var remote *mihoyo.RemoteError
		if errors.As(err, &remote) {
			// A rejected scan means the payload itself is bad, not stale.
			f.log.Warn().Str("message", remote.Message).Msg("scan rejected")
			return FlowResult{Outcome: OutcomeInvalid, Reply: ReplyExpired, Message: remote.Message}
		}
		f.log.Error().Err(err).Msg("scan call failed")
		return FlowResult{Outcome: OutcomeFailed, Reply: err.Error(), Message: err.Error()}
	}

	gameToken, err := f.api.GameToken(ctx, f.record.UID, f.record.SToken)
	if err != nil {
		// An account or session problem, not a QR problem.
		f.log.Error().Err(err).Msg("game token fetch failed")
		return FlowResult{Outcome: OutcomeFailed, Reply: errorReply(err), Message: err.Error()}
	}

	if err := f.api.ConfirmQRCode(ctx, code, f.record.UID, gameToken, f.record.DeviceID); err != nil {
		var remote *mihoyo.RemoteError
		if errors.As(err, &remote) {
			switch remote.Message {
			case remoteExpiredCode:
				f.log.Warn().Msg("confirm rejected: code expired")
				return FlowResult{Outcome: OutcomeExpired, Reply: ReplyExpired, Message: remote.Message}
			case remoteInvalidStat:
				f.log.Warn().Msg("confirm rejected: invalid state")
				return FlowResult{Outcome: OutcomeInvalid, Reply: ReplyExpired, Message: remote.Message}
			}
			f.log.Error().Str("message", remote.Message).Msg("confirm rejected")
			return FlowResult{Outcome: OutcomeFailed, Reply: remote.Message, Message: remote.Message}
		}
		f.log.Error().Err(err).Msg("confirm call failed")
		return FlowResult{Outcome: OutcomeFailed, Reply: errorReply(err), Message: err.Error()}
	}

	f.log.Info().Str("uid", f.record.UID).Msg("QR login confirmed")
	return FlowResult{Outcome: OutcomeConfirmed, Reply: ReplyConfirmed}
}

func (f *QRFlow) recordAttempt(result FlowResult, requester int64) {
	if f.scans == nil {
		return
	}
	err := f.scans.Record(scanlog.Entry{
		ScannedAt: time.Now(),
		ChatID:    requester,
		UID:       f.record.UID,
		Outcome:   string(result.Outcome),
		Message:   result.Message,
	})
	if err != nil {
		f.log.Warn().Err(err).Msg("failed to record scan attempt")
	}
}

func errorReply(err error) string {
	var remote *mihoyo.RemoteError
	if errors.As(err, &remote) {
		return remote.Message
	}
	return err.Error()
}
