package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/systmms/iamrotate/internal/logging"
	"github.com/systmms/iamrotate/internal/secure"
)

// NewCredentialNotice is the handoff from the executor for one user who
// received a freshly created key.
type NewCredentialNotice struct {
	Name        string
	Email       string
	IAMUsername string

	AccessKeyID string
	Secret      *secure.Enclave

	// ExpiresAt is when the old credentials and the paste stop working,
	// included in the message so the user knows their migration window.
	ExpiresAt time.Time
}

// Delivery is the notification metadata recorded in the report. No
// secret and no paste URL: only the paste id, the email message id and
// the timestamps survive.
type Delivery struct {
	PasteID        string    `json:"paste_id"`
	PasteCreatedAt time.Time `json:"paste_created_at"`
	EmailMessageID string    `json:"email_message_id"`
	NotifiedAt     time.Time `json:"notified_at"`
}

// Pipeline publishes the secret then emails the link. Both steps are
// fail-fast per user: an error leaves this user unnotified without
// touching the rest of the batch.
type Pipeline struct {
	paster Paster
	email  EmailSender
	logger *logging.Logger
	now    func() time.Time
}

// NewPipeline wires a notification pipeline.
func NewPipeline(paster Paster, email EmailSender, logger *logging.Logger) *Pipeline {
	return &Pipeline{
		paster: paster,
		email:  email,
		logger: logger,
		now:    time.Now,
	}
}

// Notify runs the two delivery steps for one user.
//
// The secret enclave is destroyed immediately after a successful publish
// and the paste URL is dropped immediately after a successful send, so
// neither can reach the report writer or any later stage.
func (p *Pipeline) Notify(ctx context.Context, notice NewCredentialNotice) (Delivery, error) {
	if notice.Secret == nil {
		return Delivery{}, fmt.Errorf("notice for %s carries no secret", notice.IAMUsername)
	}

	content, err := p.pasteContent(notice)
	if err != nil {
		return Delivery{}, err
	}

	paste, err := p.paster.PublishSecret(ctx, "new AWS API credentials", content)
	if err != nil {
		return Delivery{}, fmt.Errorf("publishing secret for %s: %w", notice.IAMUsername, err)
	}
	notice.Secret.Destroy()
	p.logger.Debug("%s: secret published as paste %s", notice.IAMUsername, paste.ID)

	subject := "Your new AWS API credentials"
	body := p.emailBody(notice, paste.URL)

	messageID, err := p.email.Send(ctx, notice.Email, subject, body)
	if err != nil {
		// SMTP errors can quote the submitted message, and the body
		// carries the paste link.
		return Delivery{}, fmt.Errorf("emailing %s: %s", notice.IAMUsername, logging.Redact(err.Error(), []string{paste.URL}))
	}
	// The paste value goes out of scope here; nothing retains the URL.
	p.logger.Info("%s: notified via %s", notice.IAMUsername, notice.Email)

	return Delivery{
		PasteID:        paste.ID,
		PasteCreatedAt: paste.CreatedAt,
		EmailMessageID: messageID,
		NotifiedAt:     p.now(),
	}, nil
}

func (p *Pipeline) pasteContent(notice NewCredentialNotice) (string, error) {
	locked, err := notice.Secret.Open()
	if err != nil {
		return "", fmt.Errorf("opening secret for %s: %w", notice.IAMUsername, err)
	}
	defer locked.Destroy()

	return fmt.Sprintf(`Hello, %s

Your new AWS credentials are:

aws_access_key=%s
aws_secret_access_key=%s

Your old credentials and this message will expire on %s.
`, notice.Name, notice.AccessKeyID, locked.String(), notice.ExpiresAt.Format("2006-01-02")), nil
}

func (p *Pipeline) emailBody(notice NewCredentialNotice, pasteURL string) string {
	return fmt.Sprintf(`Hello, %s

New AWS API credentials have been created for your account %q.

Pick them up here (the link is private and expires):

    %s

Your old credentials keep working until %s so you can switch over
without interruption. After that they will be disabled and then removed.

If you did not expect this message, contact your administrator.
`, notice.Name, notice.IAMUsername, pasteURL, notice.ExpiresAt.Format("2006-01-02"))
}
