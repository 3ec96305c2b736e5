package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/domain"
	"github.com/comitanigiacomo/kanso-quit-engine/internal/core/services"
)

const planYAML = `
start_date: "2024-03-01"
initial_daily_cigarettes: 20
pack_price: 20000
currency: KRW
phases:
  - week: 1
    target: 10
  - index: 2
    target_daily_cigarettes: 5
`

type cli struct {
	t    *testing.T
	base []string
}

func newCLI(t *testing.T, driver string) *cli {
	t.Helper()
	t.Setenv("KANSO_CONFIG", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "quit.db")
	if driver == "badger" {
		path = filepath.Join(dir, "badger")
	}
	return &cli{t: t, base: []string{"--offline", "--tz", "UTC", "--user", "u1", "--driver", driver, "--path", path}}
}

func (c *cli) run(args ...string) (stdout, stderr string, err error) {
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(append([]string{}, c.base...), args...))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, stderr, err := c.run(args...)
	require.NoError(c.t, err, stderr)
	return out
}

func writePlan(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(planYAML), 0o600))
	return path
}

func TestQuitctl_Lifecycle(t *testing.T) {
	for _, driver := range []string{"sqlite", "badger"} {
		t.Run(driver, func(t *testing.T) {
			c := newCLI(t, driver)

			t.Run("Without a plan the target is zero", func(t *testing.T) {
				out := c.mustRun("--user", "planless", "checkin", "set", "2024-03-02", "4")
				assert.Contains(t, out, "4 of 0 (draft)")

				_, _, err := c.run("--user", "planless", "plan", "show")
				assert.ErrorIs(t, err, domain.ErrPlanMissing)
			})

			t.Run("Success: import plan with legacy field names", func(t *testing.T) {
				out := c.mustRun("plan", "import", writePlan(t))
				assert.Contains(t, out, "Plan saved: starts 2024-03-01, 2 phases")
			})

			t.Run("Success: show plan in canonical form", func(t *testing.T) {
				out := c.mustRun("plan", "show")
				assert.Contains(t, out, "2024-03-01")
				assert.Contains(t, out, "target_daily_cigarettes: 10")
				assert.NotContains(t, out, "week:")
			})

			t.Run("Success: record a draft", func(t *testing.T) {
				out := c.mustRun("checkin", "set", "2024-03-02", "4", "--notes", "after lunch")
				assert.Contains(t, out, "2024-03-02: 4 of 10 (draft)")
				assert.Contains(t, out, "after lunch")
			})

			t.Run("Offline save keeps the draft", func(t *testing.T) {
				out, stderr, err := c.run("checkin", "save", "2024-03-02")
				require.NoError(t, err)
				assert.Contains(t, out, "(draft)")
				assert.Contains(t, stderr, "kept as draft")
			})

			t.Run("Offline async save goes through the worker", func(t *testing.T) {
				out, stderr, err := c.run("checkin", "save", "2024-03-02", "--async")
				require.NoError(t, err)
				assert.Contains(t, out, "(draft)")
				assert.Contains(t, stderr, "kept as draft")
			})

			t.Run("Success: record survives reopening the store", func(t *testing.T) {
				out := c.mustRun("checkin", "show", "2024-03-02")
				assert.Contains(t, out, "4 of 10")
			})

			t.Run("Success: statistics degrade to local data", func(t *testing.T) {
				out := c.mustRun("--json", "stats", "--as-of", "2024-03-03")

				var res services.StatsResult
				require.NoError(t, json.Unmarshal([]byte(out), &res), out)
				assert.True(t, res.Degraded)
				assert.Equal(t, 1, res.Statistics.DaysTracked)
				assert.Equal(t, 6, res.Statistics.CigarettesAvoided)
				assert.Equal(t, 6000.0, res.Statistics.MoneySaved)
			})

			t.Run("Success: text series", func(t *testing.T) {
				out := c.mustRun("series", "--from", "2024-03-01", "--to", "2024-03-03")
				assert.Contains(t, out, "DATE")
				assert.Contains(t, out, "2024-03-01")
				assert.Contains(t, out, "draft")
				assert.NotContains(t, out, "2024-03-04")
			})
		})
	}
}

func TestQuitctl_InputErrors(t *testing.T) {
	c := newCLI(t, "sqlite")
	c.mustRun("plan", "import", writePlan(t))

	t.Run("Fail: negative count", func(t *testing.T) {
		_, _, err := c.run("checkin", "set", "2024-03-02", "--", "-3")
		assert.ErrorIs(t, err, domain.ErrNegativeCount)
	})

	t.Run("Fail: future date", func(t *testing.T) {
		_, _, err := c.run("checkin", "set", "2999-01-01", "1")
		assert.ErrorIs(t, err, domain.ErrFutureDate)
	})

	t.Run("Fail: malformed date", func(t *testing.T) {
		_, _, err := c.run("checkin", "set", "03/02/2024", "1")
		assert.ErrorIs(t, err, domain.ErrDateFormat)
	})

	t.Run("Fail: count is not a number", func(t *testing.T) {
		_, _, err := c.run("checkin", "set", "2024-03-02", "many")
		assert.Error(t, err)
	})

	t.Run("Fail: nothing to save", func(t *testing.T) {
		_, _, err := c.run("checkin", "save", "2024-03-05")
		assert.ErrorIs(t, err, domain.ErrCheckinNotFound)
	})

	t.Run("Fail: unknown driver", func(t *testing.T) {
		_, _, err := c.run("--driver", "bolt", "stats")
		assert.Error(t, err)
	})
}
