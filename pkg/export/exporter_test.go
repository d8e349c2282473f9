package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Headers: []string{"ID", "User", "Status"},
		Rows: []map[string]string{
			{"ID": "a1", "User": "Student One", "Status": "ACTIVE"},
			{"ID": "a2", "User": "Student Two", "Status": "REVOKED"},
		},
	}
}

func TestCSV(t *testing.T) {
	payload, err := CSV(sampleTable())
	require.NoError(t, err)
	assert.Equal(t, "ID,User,Status\na1,Student One,ACTIVE\na2,Student Two,REVOKED\n", string(payload))
}

func TestCSVRequiresHeaders(t *testing.T) {
	_, err := CSV(Table{})
	require.Error(t, err)
}

func TestPDF(t *testing.T) {
	payload, err := PDF(sampleTable(), "Temporary Access Register")
	require.NoError(t, err)
	assert.True(t, len(payload) > 0)
	assert.Equal(t, "%PDF", string(payload[:4]))
}
