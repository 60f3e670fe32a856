package mailer

import (
	"strings"

	"github.com/openfield/gatepass/pkg/logger"
)

// DevMailer logs instead of sending; the default outside production.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendPassIssued(toEmail, toName string, passTypes []string) error {
	logger.Info("📧 [DEV MAIL] Pass Issued",
		"to", toEmail,
		"name", toName,
		"passes", strings.Join(passTypes, ", "),
	)
	return nil
}
