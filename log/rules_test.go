package log

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRules_NamespaceVerbosity(t *testing.T) {
	defer rules.Store(nil)

	buf := &bytes.Buffer{}
	l := New(buf, InfoLevel)

	l.Named("game").Debug("hidden")
	assert.Empty(t, buf.String())

	r, err := ParseRules(&RulesConfig{Loggers: map[string]string{"game": "debug"}})
	require.NoError(t, err)
	rules.Store(r)

	l.Named("game").Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	buf.Reset()
	l.Named("api").Debug("still hidden")
	assert.Empty(t, buf.String())

	l.Named("api").Info("info passes")
	assert.Contains(t, buf.String(), "info passes")
}

func TestParseRules_InvalidLevel(t *testing.T) {
	_, err := ParseRules(&RulesConfig{Loggers: map[string]string{"game": "loud"}})
	assert.Error(t, err)
}

func TestLoadRules(t *testing.T) {
	defer rules.Store(nil)

	dir := t.TempDir()
	path := filepath.Join(dir, "log.yml")
	require.NoError(t, os.WriteFile(path, []byte("loggers:\n  svc: debug\n"), 0o600))
	require.NoError(t, LoadRules(path))

	buf := &bytes.Buffer{}
	New(buf, InfoLevel).Named("svc").Debug("from file")
	assert.Contains(t, buf.String(), "from file")
}
