package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/challenge-engine/internal/challenge"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("EVALUATOR_PROVIDER", "none")
	t.Setenv("CONTENT_GENERATOR_URL", "")

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--env-file", ""))
	err := cmd.Execute()
	return out.String(), err
}

func TestPostImmediate(t *testing.T) {
	out, err := run(t, "post", "2024-03-01", "--immediate", "--variant", "individual_question")
	require.NoError(t, err)

	var e challenge.Entity
	require.NoError(t, json.Unmarshal([]byte(out), &e))
	assert.Equal(t, challenge.VariantIndividual, e.Variant)
	assert.Equal(t, "2024-03-01", e.Day)
	assert.Equal(t, challenge.StatusActive, e.Status)
}

func TestTickAllVariants(t *testing.T) {
	out, err := run(t, "tick", "--all")
	require.NoError(t, err)

	var reports map[string]challenge.TickReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	assert.Len(t, reports, len(challenge.Variants))
}

func TestArgumentErrors(t *testing.T) {
	_, err := run(t, "post", "--variant", "weekly")
	assert.Error(t, err)

	_, err = run(t, "close", "not-a-uuid")
	assert.Error(t, err)

	_, err = run(t, "watch")
	assert.ErrorContains(t, err, "REDIS_ADDR")
}
