package core

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogErrorKeepsPercentVerbatim(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(os.Stderr)

	LogError("%s", errors.New(`watch /tmp/100%d/prism.toml: too many open files`))
	assert.Contains(t, buf.String(), `/tmp/100%d/prism.toml: too many open files`)
	assert.NotContains(t, buf.String(), "%!")
}
