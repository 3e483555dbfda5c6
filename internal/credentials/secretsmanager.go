package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretGetter is the subset of the Secrets Manager client the provider uses.
type SecretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManager reads credentials from a JSON secret string holding
// password, user (or username), host, port and database (or dbname).
type SecretsManager struct {
	client   SecretGetter
	secretID string
	sslMode  string
}

// NewSecretsManager creates the provider. An empty secretID uses
// DefaultSecretID; an empty sslMode uses "require".
func NewSecretsManager(client SecretGetter, secretID, sslMode string) *SecretsManager {
	if secretID == "" {
		secretID = DefaultSecretID
	}
	if sslMode == "" {
		sslMode = "require"
	}
	return &SecretsManager{client: client, secretID: secretID, sslMode: sslMode}
}

// NewSecretsManagerFromConfig builds the provider on an AWS SDK config.
func NewSecretsManagerFromConfig(cfg aws.Config, endpoint *string, secretID, sslMode string) *SecretsManager {
	client := secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
		if endpoint != nil {
			o.BaseEndpoint = endpoint
		}
	})
	return NewSecretsManager(client, secretID, sslMode)
}

type secretPayload struct {
	Password string     `json:"password"`
	User     string     `json:"user"`
	Username string     `json:"username"`
	Host     string     `json:"host"`
	Port     secretPort `json:"port"`
	Database string     `json:"database"`
	DBName   string     `json:"dbname"`
}

// secretPort accepts the port as a JSON number or string.
type secretPort int

func (p *secretPort) UnmarshalJSON(data []byte) error {
	var raw json.Number
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = json.Number(s)
	} else if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*p = 0
		return nil
	}
	n, err := strconv.Atoi(raw.String())
	if err != nil {
		return fmt.Errorf("port %q is not an integer", raw)
	}
	*p = secretPort(n)
	return nil
}

func (s *SecretsManager) FetchCredentials(ctx context.Context) (Credentials, error) {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(s.secretID),
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: read secret %s: %w", ErrUnavailable, s.secretID, err)
	}
	if out.SecretString == nil {
		return Credentials{}, fmt.Errorf("%w: secret %s is binary", ErrUnavailable, s.secretID)
	}

	var payload secretPayload
	if err := json.Unmarshal([]byte(aws.ToString(out.SecretString)), &payload); err != nil {
		return Credentials{}, fmt.Errorf("%w: decode secret %s: %w", ErrUnavailable, s.secretID, err)
	}

	creds := Credentials{
		Host:     payload.Host,
		Port:     int(payload.Port),
		User:     payload.User,
		Password: payload.Password,
		Database: payload.Database,
		SSLMode:  s.sslMode,
	}
	if creds.User == "" {
		creds.User = payload.Username
	}
	if creds.Database == "" {
		creds.Database = payload.DBName
	}
	if creds.Host == "" {
		return Credentials{}, fmt.Errorf("%w: secret %s has no host", ErrUnavailable, s.secretID)
	}
	return creds, nil
}
