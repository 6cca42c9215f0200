package bigtable

import (
	"testing"
	"time"

	"github.com/jakobtroidl/chunkedgraph/storage"
	"github.com/stretchr/testify/require"
)

func TestQualifierOfStripsFamilyPrefix(t *testing.T) {
	require.Equal(t, "parents", qualifierOf("0:parents"))
	require.Equal(t, "bare", qualifierOf("bare"))
}

func TestBuildReadFilterNilWhenUnconstrained(t *testing.T) {
	require.Nil(t, buildReadFilter(storage.ReadRowsRequest{}))
}

func TestBuildReadFilterNonNilWithColumns(t *testing.T) {
	req := storage.ReadRowsRequest{
		Columns: []storage.ColumnID{storage.AttrParents.Column},
		Range:   storage.TimeRange{Start: time.Unix(0, 1)},
		Limit:   1,
	}
	require.NotNil(t, buildReadFilter(req))
}
