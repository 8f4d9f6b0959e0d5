package categorizer

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/inboxkit/mailsync/interfaces"
	"github.com/inboxkit/mailsync/internal/enum"
	er "github.com/inboxkit/mailsync/internal/errors"
	"github.com/inboxkit/mailsync/internal/logger"
	"github.com/inboxkit/mailsync/internal/models"
	"github.com/inboxkit/mailsync/internal/tracing"
	"github.com/inboxkit/mailsync/internal/utils"
)

type Service struct {
	log         logger.Logger
	accountRepo interfaces.AccountRepository
	messageRepo interfaces.MessageRepository
	trustRepo   interfaces.SenderTrustRepository
}

func NewService(
	log logger.Logger,
	accountRepo interfaces.AccountRepository,
	messageRepo interfaces.MessageRepository,
	trustRepo interfaces.SenderTrustRepository,
) *Service {
	return &Service{
		log:         log,
		accountRepo: accountRepo,
		messageRepo: messageRepo,
		trustRepo:   trustRepo,
	}
}

// CategorizeForUser looks up the sender's screening verdict and runs the
// pure categorizer over the message content.
func (s *Service) CategorizeForUser(ctx context.Context, userID string, msg Input) (enum.MessageCategory, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CategorizerService.CategorizeForUser")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagUserId(span, userID)

	var verdict *enum.TrustVerdict
	trust, err := s.trustRepo.Get(ctx, userID, msg.FromAddress)
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	if trust != nil {
		verdict = &trust.Verdict
	}

	return Categorize(msg, verdict), nil
}

// RecordScreeningDecision stores the user's verdict for a sender. New
// mail from the sender picks the verdict up; already stored messages
// keep their category until RecategorizeSender is called.
func (s *Service) RecordScreeningDecision(ctx context.Context, userID, senderAddress string, verdict enum.TrustVerdict) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CategorizerService.RecordScreeningDecision")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagUserId(span, userID)
	span.SetTag("verdict", verdict.String())

	trust := &models.SenderTrust{
		UserID:        userID,
		SenderAddress: utils.NormalizeEmailAddress(senderAddress),
		Verdict:       verdict,
	}
	if err := s.trustRepo.Upsert(ctx, trust); err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	return nil
}

// RecategorizeSender re-routes the stored messages of one sender after
// a verdict change. Receipts are left untouched.
func (s *Service) RecategorizeSender(ctx context.Context, userID, accountID, senderAddress string) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CategorizerService.RecategorizeSender")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagUserId(span, userID)
	tracing.TagAccountId(span, accountID)

	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	if account.UserID != userID {
		return 0, er.ErrNotOwned
	}

	trust, err := s.trustRepo.Get(ctx, userID, senderAddress)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}

	category := enum.CategoryUnscreened
	if trust != nil {
		switch trust.Verdict {
		case enum.VerdictTrusted:
			category = enum.CategoryInbox
		case enum.VerdictSpam:
			category = enum.CategorySpam
		}
	}

	updated, err := s.messageRepo.UpdateCategoryBySender(ctx, accountID, senderAddress, category)
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}

	s.log.Infof("recategorized %d messages from %s to %s", updated, senderAddress, category)
	return updated, nil
}
