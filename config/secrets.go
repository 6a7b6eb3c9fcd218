package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

const (
	ENV_TWILIO_SID   = "TWILIO_ACCOUNT_SID"
	ENV_TWILIO_TOKEN = "TWILIO_AUTH_TOKEN"
	ENV_INFLUX_TOKEN = "INFLUX_TOKEN"
)

// Secrets holds credentials that must never end up in the YAML
// config file.
type Secrets struct {
	TwilioAccountSID string
	TwilioAuthToken  string
	InfluxToken      string
}

// LoadSecrets primes the process environment from envfile (a missing
// file is not an error) and collects the credentials. Variables that
// are already set in the environment win over the file.
func LoadSecrets(envfile string) (Secrets, error) {
	if err := godotenv.Load(envfile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Secrets{}, fmt.Errorf("can't load env file %s: %w", envfile, err)
	}
	return Secrets{
		TwilioAccountSID: os.Getenv(ENV_TWILIO_SID),
		TwilioAuthToken:  os.Getenv(ENV_TWILIO_TOKEN),
		InfluxToken:      os.Getenv(ENV_INFLUX_TOKEN),
	}, nil
}
