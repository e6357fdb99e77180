package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitTableRef(t *testing.T) {
	schema, table := SplitTableRef("hydrofabric.flowpaths")
	assert.Equal(t, "hydrofabric", schema)
	assert.Equal(t, "flowpaths", table)

	schema, table = SplitTableRef(" flowpaths ")
	assert.Empty(t, schema)
	assert.Equal(t, "flowpaths", table)
}

func TestFlowpathsSQL(t *testing.T) {
	got := flowpathsSQL(GeometryColumn{Schema: "hf", Table: "flow\"paths", Column: "geom"})
	assert.Equal(t,
		`SELECT id::text, toid::text, mainstem::text, divide_id::text, ST_AsBinary("geom") FROM "hf"."flow""paths" ORDER BY id`,
		got,
	)

	got = flowpathsSQL(GeometryColumn{Table: "flowpaths", Column: "geometry"})
	assert.Contains(t, got, `FROM "flowpaths"`)
}
