// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import "context"

// Notifier delivers account lifecycle messages to the user.
//
// Implementations live in the notify package. The orchestrator logs a failed
// delivery and carries on; a notification never decides the outcome of a request.
type Notifier interface {
	SendVerification(context context.Context, email, token, name string) error
	SendPasswordReset(context context.Context, email, token, name string) error
	SendWelcome(context context.Context, email, name string) error
	SendPasswordChanged(context context.Context, email, name string) error
}
