package notification

// Config holds notification settings. The Postmark tokens are optional so
// development environments can run with sending disabled.
type Config struct {
	Enabled              bool   `env:"NOTIFICATIONS_ENABLED" envDefault:"true"`
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL"`
	SupportEmail         string `env:"SUPPORT_EMAIL"`
}
