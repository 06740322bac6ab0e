package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryUpHasADown(t *testing.T) {
	ups, err := fs.Glob(FS, "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(FS, down)
		assert.NoError(t, err, "missing %s", down)
	}
}

func TestDraftKeyIndexIsPartial(t *testing.T) {
	body, err := fs.ReadFile(FS, "000002_create_additional_salaries.up.sql")
	require.NoError(t, err)

	sql := string(body)
	assert.Contains(t, sql, "CREATE UNIQUE INDEX IF NOT EXISTS idx_additional_salaries_draft_key")
	assert.Contains(t, sql, "WHERE docstatus = 0")
}
