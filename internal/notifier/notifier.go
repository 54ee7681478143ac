package notifier

// TextNotifier is a minimal text notification interface so callers can depend
// on it without importing concrete implementations (e.g. Telegram).
type TextNotifier interface {
	SendText(text string) error
}

// Noop 丢弃所有通知，用于未配置告警通道的部署。
type Noop struct{}

func (Noop) SendText(string) error { return nil }
