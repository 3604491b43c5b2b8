package transport

import "context"

func waitCapContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), waitCap)
}
