package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func tempConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := "account:\n  dir: " + filepath.Join(dir, "accounts") +
		"\n  initial_capital: 1000\ndatabase:\n  sqlite_path: " + filepath.Join(dir, "wave.db") + "\n"
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestVersion(t *testing.T) {
	out, err := run(t, "does-not-matter.yaml", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "wavectl")
}

func TestAccountCashFlow(t *testing.T) {
	t.Setenv("ACCOUNT_ID", "")
	t.Setenv("ACCOUNT_STORE", "")
	cfg := tempConfig(t)

	out, err := run(t, cfg, "account", "deposit", "500", "--note", "工资")
	require.NoError(t, err)
	assert.Contains(t, out, "deposit ¥500")

	_, err = run(t, cfg, "account", "withdraw", "99999")
	assert.Error(t, err)

	out, err = run(t, cfg, "account", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "工资")

	_, err = run(t, cfg, "account", "reset")
	assert.Error(t, err)
	out, err = run(t, cfg, "account", "reset", "--yes", "--capital", "3000")
	require.NoError(t, err)
	assert.Contains(t, out, "¥3,000")

	_, err = run(t, cfg, "account", "deposit", "abc")
	assert.Error(t, err)
}

func TestBacktestHistoryEmpty(t *testing.T) {
	out, err := run(t, tempConfig(t), "backtest", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "SHARPE")
}

func TestTable(t *testing.T) {
	got := table([]string{"A", "NAME"}, [][]string{{"1", "xx"}, {"222", "y"}})
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "1    xx", lines[1])
	assert.Equal(t, "222  y", lines[2])
}
