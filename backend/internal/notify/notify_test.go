package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"aleph/backend/internal/model"
	apperrors "aleph/backend/pkg/errors"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestNotifyRole(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier("Aleph", "noreply@aleph.example.org", sender)
	role := &model.Role{ID: 1, ForeignID: "analyst", Email: "analyst@example.org"}

	err := n.NotifyRole(context.Background(), role, "New documents", "<p>Hello <b>analyst</b></p><p>3 new documents</p>")
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "Aleph", msg.FromName)
	assert.Equal(t, "noreply@aleph.example.org", msg.FromEmail)
	assert.Equal(t, []string{"analyst@example.org"}, msg.To)
	assert.Equal(t, "[Aleph] New documents", msg.Subject)
	assert.Equal(t, "<p>Hello <b>analyst</b></p><p>3 new documents</p>", msg.HTML)
	assert.Equal(t, "Hello analyst\n3 new documents", msg.Text)
}

func TestNotifyRole_WithoutEmail(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier("Aleph", "noreply@aleph.example.org", sender)

	assert.NoError(t, n.NotifyRole(context.Background(), &model.Role{ID: 2, ForeignID: "group"}, "Hi", "<p>x</p>"))
	assert.NoError(t, n.NotifyRole(context.Background(), nil, "Hi", "<p>x</p>"))
	assert.Empty(t, sender.sent)
}

func TestCheckRecipient(t *testing.T) {
	assert.NoError(t, CheckRecipient(&model.Role{Email: "a@example.org"}))

	for _, role := range []*model.Role{nil, {ID: 2, ForeignID: "group"}, {Email: "   "}} {
		err := CheckRecipient(role)
		require.Error(t, err)
		var noEmail *apperrors.ErrRoleWithoutEmail
		require.ErrorAs(t, err, &noEmail)
		assert.Equal(t, role.String(), noEmail.Role)
		assert.False(t, apperrors.IsRetryable(err))
	}
}

func TestNotifyRole_SendFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("421 try again later")}
	n := NewNotifier("Aleph", "noreply@aleph.example.org", sender)

	err := n.NotifyRole(context.Background(), &model.Role{Email: "a@example.org"}, "Hi", "<p>x</p>")
	require.Error(t, err)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeMail))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestNotifyRoles(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier("Aleph", "noreply@aleph.example.org", sender)
	roles := []*model.Role{
		{ForeignID: "a", Email: "a@example.org"},
		{ForeignID: "b"},
		{ForeignID: "c", Email: "c@example.org"},
		{ForeignID: "d", Email: "d@example.org"},
		{ForeignID: "e", Email: "e@example.org"},
		{ForeignID: "f", Email: "f@example.org"},
	}

	require.NoError(t, n.NotifyRoles(context.Background(), roles, "Digest", "<p>digest</p>"))

	var to []string
	for _, m := range sender.sent {
		to = append(to, m.To...)
	}
	assert.ElementsMatch(t, []string{"a@example.org", "c@example.org", "d@example.org", "e@example.org", "f@example.org"}, to)
}

func TestBuildMsg(t *testing.T) {
	m, err := buildMsg(Message{
		FromName:  "Aleph",
		FromEmail: "noreply@aleph.example.org",
		To:        []string{"analyst@example.org"},
		Subject:   "[Aleph] Hello",
		HTML:      "<p>Hello</p>",
		Text:      "Hello",
	})
	require.NoError(t, err)

	rcpts, err := m.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"analyst@example.org"}, rcpts)
	assert.Equal(t, []string{"[Aleph] Hello"}, m.GetGenHeader(mail.HeaderSubject))
}

func TestBuildMsg_InvalidRecipient(t *testing.T) {
	_, err := buildMsg(Message{FromEmail: "noreply@aleph.example.org", To: []string{"not an address"}})
	assert.Error(t, err)
}

func TestHTMLToText(t *testing.T) {
	html := `<html><head><style>p{}</style></head><body><h1>Alert</h1><p>Line one<br>Line two</p><ul><li>a</li><li>b</li></ul></body></html>`
	assert.Equal(t, "Alert\nLine one\nLine two\na\nb", htmlToText(html))
}
