package senddecisionnotification

import "time"

type Config struct {
	EmailEnabled  bool
	EventsEnabled bool
	FromEmail     string
	TopicARN      string
	Timeout       time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 15 * time.Second,
	}
}
