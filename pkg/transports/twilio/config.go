package twilio

import (
	"net/url"
	"strings"
)

type Config struct {
	AccountSID   string `mapstructure:"account_sid"`
	AuthToken    string `mapstructure:"auth_token"`
	FromNumber   string `mapstructure:"from_number"`
	PublicURL    string `mapstructure:"public_url"`
	ServerAddr   string `mapstructure:"server_addr"`
	AnswerPath   string `mapstructure:"answer_path"`
	ListenPath   string `mapstructure:"listen_path"`
	PartialPath  string `mapstructure:"partial_path"`
	StatusPath   string `mapstructure:"status_path"`
	RingTimeoutS int    `mapstructure:"ring_timeout_s"`
	// ValidateSignature rejects webhooks without a valid X-Twilio-Signature.
	ValidateSignature bool `mapstructure:"validate_signature"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.AnswerPath == "" {
		c.AnswerPath = "/answer"
	}
	if c.ListenPath == "" {
		c.ListenPath = "/listen"
	}
	if c.PartialPath == "" {
		c.PartialPath = "/partial"
	}
	if c.StatusPath == "" {
		c.StatusPath = "/call-status"
	}
	return c
}

// BaseURL is the externally reachable origin of the webhook server.
func (c Config) BaseURL() string {
	if c.PublicURL != "" {
		return "https://" + normalizePublicURL(c.PublicURL)
	}
	addr := c.ServerAddr
	if addr == "" {
		addr = ":8080"
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

func (c Config) webhookURL(path, ref string) string {
	u := c.BaseURL() + path
	if ref == "" {
		return u
	}
	return u + "?ref=" + url.QueryEscape(ref)
}

// ListenURL and PartialURL are the Gather callbacks rendered into markup.
func (c Config) ListenURL() string {
	c = c.withDefaults()
	return c.webhookURL(c.ListenPath, "")
}

func (c Config) PartialURL() string {
	c = c.withDefaults()
	return c.webhookURL(c.PartialPath, "")
}

func normalizePublicURL(v string) string {
	if v == "" {
		return ""
	}
	if len(v) >= 8 && v[:8] == "https://" {
		v = v[8:]
	} else if len(v) >= 7 && v[:7] == "http://" {
		v = v[7:]
	}
	for len(v) > 0 && v[len(v)-1] == '/' {
		v = v[:len(v)-1]
	}
	return v
}
