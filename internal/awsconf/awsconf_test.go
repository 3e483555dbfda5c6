package awsconf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_StaticCredentials(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", t.TempDir()+"/missing-config")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", t.TempDir()+"/missing-credentials")

	cfg, err := Load(context.Background(), Config{
		Region:          "eu-west-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)
}

func TestLoad_RejectsHalfKeyPair(t *testing.T) {
	_, err := Load(context.Background(), Config{AccessKeyID: "AKIDEXAMPLE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must both be set")
}

func TestBaseEndpoint(t *testing.T) {
	assert.Nil(t, Config{}.BaseEndpoint())
	ep := Config{Endpoint: "http://localhost:4566"}.BaseEndpoint()
	require.NotNil(t, ep)
	assert.Equal(t, "http://localhost:4566", *ep)
}
