package mpesa

import (
	"fmt"
	"strings"
)

// Environment variables carrying the gateway credentials.
const (
	EnvConsumerKey    = "MPESA_CONSUMER_KEY"
	EnvConsumerSecret = "MPESA_CONSUMER_SECRET"
	EnvShortCode      = "MPESA_SHORTCODE"
	EnvPasskey        = "MPESA_PASSKEY"
	EnvCallbackURL    = "MPESA_CALLBACK_URL"
)

// Credentials is the full set of gateway configuration required for one
// STK push attempt. There is no partially valid state: LoadCredentials
// either returns all five values or a *ConfigError.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
}

// ConfigError reports which required environment variables were absent.
// It names the variables only, never their values.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("mpesa is not configured: missing %s", strings.Join(e.Missing, ", "))
}

// LoadCredentials reads the gateway credentials through getenv (os.Getenv
// in production). Checked once per payment attempt, before any network call.
func LoadCredentials(getenv func(string) string) (Credentials, error) {
	c := Credentials{
		ConsumerKey:    getenv(EnvConsumerKey),
		ConsumerSecret: getenv(EnvConsumerSecret),
		ShortCode:      getenv(EnvShortCode),
		Passkey:        getenv(EnvPasskey),
		CallbackURL:    getenv(EnvCallbackURL),
	}
	var missing []string
	for _, v := range []struct {
		name, value string
	}{
		{EnvConsumerKey, c.ConsumerKey},
		{EnvConsumerSecret, c.ConsumerSecret},
		{EnvShortCode, c.ShortCode},
		{EnvPasskey, c.Passkey},
		{EnvCallbackURL, c.CallbackURL},
	} {
		if v.value == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return Credentials{}, &ConfigError{Missing: missing}
	}
	return c, nil
}
