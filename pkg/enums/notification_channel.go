package enums

// NotificationChannel names an outbound delivery channel.
type NotificationChannel string

const (
	ChannelEmail    NotificationChannel = "email"
	ChannelTelegram NotificationChannel = "telegram"
)

func (c NotificationChannel) String() string {
	return string(c)
}
