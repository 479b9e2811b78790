package email

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"volt/internal/infrastructure/mailrender"
	"volt/internal/shared/config"
)

// Service sends transactional mail. Bodies are authored as markdown
// and rendered to sanitized HTML with a plain-text alternative.
type Service struct {
	cfg      config.EmailConfig
	dialer   *gomail.Dialer
	renderer *mailrender.Renderer
}

func NewService(cfg config.EmailConfig) *Service {
	return &Service{
		cfg:      cfg,
		dialer:   gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		renderer: mailrender.NewRenderer(),
	}
}

// SendTwoFACode delivers a verification code. The code is the only
// dynamic value in the body.
func (s *Service) SendTwoFACode(to, code string) error {
	body := fmt.Sprintf(`## Your verification code

Enter this code to continue signing in:

**%s**

The code expires in 5 minutes. If you did not request it, you can
ignore this message.`, code)

	return s.send(to, "Your verification code", body)
}

// SendPaymentReceipt confirms a completed payment. Amount is in minor
// units of the given currency.
func (s *Service) SendPaymentReceipt(to, productName string, amount int64, currencyCode string) error {
	body := fmt.Sprintf(`## Payment received

Thanks for your purchase.

| | |
|---|---|
| Product | %s |
| Amount | %s |

A record of this payment is available in your account.`,
		productName, s.renderer.FormatAmount(amount, currencyCode))

	return s.send(to, "Payment received", body)
}

// SendSubscriptionCanceled confirms a subscription cancellation.
func (s *Service) SendSubscriptionCanceled(to, productName string) error {
	body := fmt.Sprintf(`## Subscription canceled

Your subscription to **%s** has been canceled. Access continues until
the end of the current billing period.`, productName)

	return s.send(to, "Subscription canceled", body)
}

func (s *Service) send(to, subject, markdown string) error {
	html, plain, err := s.renderer.Render(markdown)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.cfg.FromAddress, s.cfg.FromName))
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", plain)
	m.AddAlternative("text/html", html)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
