package reasoner

import "context"

// ChatPayload 是一次模型调用的输入。
type ChatPayload struct {
	System     string
	User       string
	ExpectJSON bool
}

// ModelProvider 抽象一个可调用的推理模型端点。
type ModelProvider interface {
	ID() string
	Enabled() bool

	Call(ctx context.Context, payload ChatPayload) (string, error)
}
