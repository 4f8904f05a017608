package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll_OrderedAndComplete(t *testing.T) {
	scripts, err := All()
	require.NoError(t, err)
	require.Len(t, scripts, 3)

	assert.Equal(t, "0001_directory.sql", scripts[0].Name)
	assert.Equal(t, "0002_cases.sql", scripts[1].Name)
	assert.Equal(t, "0003_audit.sql", scripts[2].Name)
	assert.Contains(t, scripts[1].SQL, "UNIQUE (case_id, category)")
}
