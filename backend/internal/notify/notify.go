package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"aleph/backend/internal/model"
	apperrors "aleph/backend/pkg/errors"
	"aleph/backend/pkg/logger"
)

// maxParallelSends bounds concurrent SMTP sessions in NotifyRoles.
const maxParallelSends = 4

// Notifier e-mails roles on behalf of the application.
type Notifier struct {
	appTitle string
	mailFrom string
	sender   Sender
	logger   *zap.Logger
}

func NewNotifier(appTitle, mailFrom string, sender Sender) *Notifier {
	return &Notifier{
		appTitle: appTitle,
		mailFrom: mailFrom,
		sender:   sender,
		logger:   logger.For("notify"),
	}
}

// CheckRecipient fails for roles that cannot receive mail.
func CheckRecipient(role *model.Role) error {
	if role == nil || strings.TrimSpace(role.Email) == "" {
		return apperrors.NewRoleWithoutEmail(role.String())
	}
	return nil
}

// NotifyRole sends an HTML e-mail to role. Roles without an e-mail address
// are logged and skipped.
func (n *Notifier) NotifyRole(ctx context.Context, role *model.Role, subject, html string) error {
	if err := CheckRecipient(role); err != nil {
		n.logger.Error("Role does not have E-Mail", zap.Stringer("role", role), zap.Error(err))
		return nil
	}

	msg := Message{
		FromName:  n.appTitle,
		FromEmail: n.mailFrom,
		To:        []string{role.Email},
		Subject:   fmt.Sprintf("[%s] %s", n.appTitle, subject),
		HTML:      html,
		Text:      htmlToText(html),
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return apperrors.NewMailSendFailed(role.Email, err)
	}

	n.logger.Info("Notification sent",
		zap.Stringer("role", role),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// NotifyRoles sends the same notification to several roles concurrently and
// returns the first delivery error.
func (n *Notifier) NotifyRoles(ctx context.Context, roles []*model.Role, subject, html string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelSends)
	for _, role := range roles {
		role := role
		g.Go(func() error {
			return n.NotifyRole(gctx, role, subject, html)
		})
	}
	return g.Wait()
}

// htmlToText renders the visible text of an HTML body for the plain-text
// alternative part.
func htmlToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	lines := strings.Split(doc.Text(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
