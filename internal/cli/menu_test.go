package cli

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMenuImportAndShow(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "menu", "import", "testdata/menu.yaml")
	assert.Equal(t, "Cached 2 categories, 3 items\n", out)

	out = env.mustRun(t, "menu", "show")
	assert.Contains(t, out, "(fresh)")
	assert.Contains(t, out, "burger")
	assert.Contains(t, out, "$12.50")
	assert.Contains(t, out, "unavailable")
}

func TestMenuShow_StaleWithoutSource(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "menu", "import", "testdata/menu.yaml")
	env.clock.Advance(25 * time.Hour)

	out := env.mustRun(t, "--format", "json", "menu", "show")
	var m MenuOutput
	decodeData(t, out, &m)
	assert.False(t, m.Fresh)
	assert.Equal(t, 3, m.Items)
	assert.True(t, testEpoch.Equal(m.CapturedAt))
}

func TestMenuShow_NothingCached(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run(t, "menu", "show")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestMenuRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"specials","name":"Specials","items":[{"id":"soup","name":"Soup","price":650,"available":true}]}]`))
	}))
	defer srv.Close()

	env := newTestEnv(t)
	_, err := env.run(t, "menu", "refresh")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err), "no menu.url configured")

	env.cfg.Menu.URL = srv.URL
	out := env.mustRun(t, "menu", "refresh")
	assert.Contains(t, out, "Specials")
	assert.Contains(t, out, "$6.50")

	path := env.writeFile(t, "order.yaml", "items: [{menu_item: soup}]\n")
	assert.Contains(t, env.mustRun(t, "checkout", path), "1 x Soup")
}

func TestMenuImport_RejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)
	path := env.writeFile(t, "menu.yaml", "- id: a\n  name: A\n  colour: red\n")

	_, err := env.run(t, "menu", "import", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "colour")
}
