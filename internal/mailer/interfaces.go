package mailer

type Service interface {
	SendPassIssued(toEmail, toName string, passTypes []string) error
}
