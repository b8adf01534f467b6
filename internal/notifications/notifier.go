package notifications

import "context"

type VerificationCodeInput struct {
	ServiceID   string
	TemplateID  string
	Name        string
	Email       string
	Code        string
	CompanyName string
}

type Notifier interface {
	SendVerificationCode(ctx context.Context, input VerificationCodeInput) error
}
