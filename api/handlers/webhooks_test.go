package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inboxkit/mailsync/internal/enum"
	er "github.com/inboxkit/mailsync/internal/errors"
	"github.com/inboxkit/mailsync/internal/logger"
	"github.com/inboxkit/mailsync/internal/models"
	"github.com/inboxkit/mailsync/services/webhook"
)

// stubAccountRepo resolves one account by client state or email address.
type stubAccountRepo struct {
	account *models.Account
}

func (s *stubAccountRepo) Create(ctx context.Context, a *models.Account) (string, error) {
	return "", nil
}

func (s *stubAccountRepo) GetByID(ctx context.Context, id string) (*models.Account, error) {
	return nil, er.ErrAccountNotFound
}

func (s *stubAccountRepo) GetByClientState(ctx context.Context, clientState string) (*models.Account, error) {
	if s.account != nil && s.account.WebhookClientState == clientState {
		return s.account, nil
	}
	return nil, er.ErrAccountNotFound
}

func (s *stubAccountRepo) GetByEmailAddress(ctx context.Context, email string) (*models.Account, error) {
	if s.account != nil && s.account.EmailAddress == email {
		return s.account, nil
	}
	return nil, er.ErrAccountNotFound
}

func (s *stubAccountRepo) TryMarkSyncing(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (s *stubAccountRepo) SetSyncState(ctx context.Context, id string, state enum.SyncState, lastError string) error {
	return nil
}

func (s *stubAccountRepo) UpdateProgress(ctx context.Context, id string, processed, total int) error {
	return nil
}

func (s *stubAccountRepo) MarkSynced(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (s *stubAccountRepo) SaveCredentials(ctx context.Context, id, accessToken, refreshToken string, expiry *time.Time) error {
	return nil
}

func (s *stubAccountRepo) ListDueForSync(ctx context.Context, idleSince, errorSince time.Time) ([]*models.Account, error) {
	return nil, nil
}

func (s *stubAccountRepo) CompleteSetup(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (s *stubAccountRepo) SoftDisable(ctx context.Context, id string) error {
	return nil
}

func webhookRouter(t *testing.T, repo *stubAccountRepo) (*gin.Engine, *webhook.Debouncer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewAppLogger(&logger.Config{DevMode: true})
	log.InitLogger()

	debouncer := webhook.NewDebouncer(log, time.Minute, func(ctx context.Context, userID, accountID string, trigger enum.SyncTrigger) (string, error) {
		return "", nil
	})
	t.Cleanup(debouncer.Stop)

	r := gin.New()
	r.POST("/webhooks/mail", MailWebhook(log, repo, debouncer))
	r.GET("/webhooks/mail", MailWebhook(log, repo, debouncer))
	return r, debouncer
}

func TestMailWebhook_ValidationHandshake(t *testing.T) {
	r, _ := webhookRouter(t, &stubAccountRepo{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mail?validationToken=abc123", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc123", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestMailWebhook_GraphNotificationArmsDebounce(t *testing.T) {
	account := &models.Account{
		ID:                 "acct_1",
		UserID:             "user_1",
		EmailAddress:       "user@example.com",
		WebhookClientState: "state-token",
	}
	r, debouncer := webhookRouter(t, &stubAccountRepo{account: account})

	body := []byte(`{"value":[{"subscriptionId":"sub1","clientState":"state-token","changeType":"created"}]}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mail", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, debouncer.Pending("acct_1"))
}

func TestMailWebhook_GmailPubSubNotification(t *testing.T) {
	account := &models.Account{
		ID:           "acct_2",
		UserID:       "user_1",
		EmailAddress: "user@example.com",
	}
	r, debouncer := webhookRouter(t, &stubAccountRepo{account: account})

	payload := base64.StdEncoding.EncodeToString([]byte(`{"emailAddress":"user@example.com","historyId":42}`))
	body := []byte(`{"message":{"data":"` + payload + `","messageId":"m1"},"subscription":"s1"}`)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mail", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, debouncer.Pending("acct_2"))
}

func TestMailWebhook_UnknownAccountStillAccepted(t *testing.T) {
	r, debouncer := webhookRouter(t, &stubAccountRepo{})

	body := []byte(`{"value":[{"clientState":"nobody-home"}]}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mail", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.False(t, debouncer.Pending("acct_1"))
}

func TestMailWebhook_MalformedBodyAccepted(t *testing.T) {
	r, _ := webhookRouter(t, &stubAccountRepo{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mail", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestMailWebhook_BurstCollapsesToOnePendingTimer(t *testing.T) {
	account := &models.Account{
		ID:                 "acct_3",
		UserID:             "user_1",
		WebhookClientState: "state-token",
	}
	r, debouncer := webhookRouter(t, &stubAccountRepo{account: account})

	body := []byte(`{"value":[{"clientState":"state-token"}]}`)
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/webhooks/mail", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusAccepted, w.Code)
	}

	assert.True(t, debouncer.Pending("acct_3"))
}
