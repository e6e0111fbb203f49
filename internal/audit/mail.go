package audit

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/gatekeeper/internal/email"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
)

// MailNotifier avisa por email al dueño de la cuenta cuando hay un login fallido
// contra un usuario resuelto. El resto de los eventos se ignora.
type MailNotifier struct {
	Sender email.Sender
	// Async envía en una goroutine para no demorar el request.
	Async bool
}

func (n MailNotifier) Emit(ctx context.Context, ev Event, p Payload) {
	if ev != EventFailedLogin || p.User == nil || p.User.Email == "" || n.Sender == nil {
		return
	}
	subject := "Failed sign-in attempt"
	text := fmt.Sprintf("Someone tried to sign in to your account and failed.\n\nIP address: %s\nUser agent: %s\nTime: %s\n\nIf this was you, you can ignore this message.",
		orUnknown(p.IPAddress), orUnknown(p.UserAgent), p.At.UTC().Format("2006-01-02 15:04:05 MST"))

	log := logger.From(ctx).Named("audit")
	to, uid := p.User.Email, p.User.ID
	send := func() {
		if err := n.Sender.Send(to, subject, "", text); err != nil {
			log.Warn("failed-login notification not sent", logger.UserID(uid), logger.Err(err))
		}
	}
	if n.Async {
		go send()
		return
	}
	send()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
