package importer

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "shop-lifecycle/internal/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCatalog_JSON(t *testing.T) {
	products, err := ParseCatalog(filepath.Join("testdata", "catalog.json"))
	require.NoError(t, err)
	require.Len(t, products, 3)

	juice := products[0]
	assert.Equal(t, "Classic Vape Juice", juice.Name)
	assert.True(t, juice.Price.Equal(decimal.NewFromInt(100)))
	require.Len(t, juice.Flavors, 3)
	assert.Equal(t, "6mg", juice.Flavors[1].Value)
	assert.True(t, juice.Flavors[2].PriceModifier.Equal(decimal.NewFromInt(-5)))

	kit := products[1]
	assert.Equal(t, "249.90", kit.Price.StringFixed(2))
	assert.Empty(t, kit.Flavors)

	coil := products[2]
	assert.Equal(t, "0.8ohm", coil.Flavors[0].DisplayName())
}

func TestParseCatalog_YAMLMatchesJSON(t *testing.T) {
	fromYAML, err := ParseCatalog(filepath.Join("testdata", "catalog.yaml"))
	require.NoError(t, err)
	fromJSON, err := ParseCatalog(filepath.Join("testdata", "catalog.json"))
	require.NoError(t, err)

	require.Len(t, fromYAML, 2)
	for i := range fromYAML {
		assert.Equal(t, fromJSON[i].Name, fromYAML[i].Name)
		assert.True(t, fromJSON[i].Price.Equal(fromYAML[i].Price), "price of %s", fromYAML[i].Name)
		assert.Equal(t, len(fromJSON[i].Flavors), len(fromYAML[i].Flavors))
	}
}

func TestParseLocations(t *testing.T) {
	fromList, err := ParseLocations(filepath.Join("testdata", "locations.json"))
	require.NoError(t, err)
	require.Len(t, fromList, 2)
	assert.Equal(t, []string{"pickup", "returns"}, fromList[0].ServiceTags)
	assert.Nil(t, fromList[1].ServiceTags)

	fromObject, err := ParseLocations(filepath.Join("testdata", "locations.yaml"))
	require.NoError(t, err)
	require.Len(t, fromObject, 1)
	assert.Equal(t, fromList[0], fromObject[0])
}

func TestParseLocations_NumericIDs(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		want    []LocationID
	}{
		{
			name:    "yaml integers",
			file:    "numeric.yaml",
			content: "locations:\n  - {id: 1001, name: Central}\n  - {id: \"loc-2\", name: Harbour}\n",
			want:    []LocationID{"1001", "loc-2"},
		},
		{
			name:    "json numbers",
			file:    "numeric.json",
			content: `[{"id": 1001, "name": "Central"}, {"id": "0042", "name": "Harbour"}]`,
			want:    []LocationID{"1001", "0042"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			locations, err := ParseLocations(path)
			require.NoError(t, err)
			require.Len(t, locations, len(tt.want))
			for i, want := range tt.want {
				assert.Equal(t, want, locations[i].ID)
			}
		})
	}
}

func TestParse_Failures(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	tests := []struct {
		name string
		path string
		fn   func(string) error
	}{
		{
			name: "missing file",
			path: filepath.Join(dir, "absent.json"),
			fn:   parseCatalogErr,
		},
		{
			name: "truncated json",
			path: filepath.Join("testdata", "malformed.json"),
			fn:   parseCatalogErr,
		},
		{
			name: "empty document",
			path: write("empty.json", "  \n"),
			fn:   parseCatalogErr,
		},
		{
			name: "scalar top level",
			path: write("scalar.json", `"products"`),
			fn:   parseCatalogErr,
		},
		{
			name: "object without key",
			path: write("wrong-key.json", `{"items": []}`),
			fn:   parseCatalogErr,
		},
		{
			name: "unsupported extension",
			path: write("catalog.csv", "name,price"),
			fn:   parseCatalogErr,
		},
		{
			name: "product without name",
			path: write("nameless.json", `[{"price": 1}]`),
			fn:   parseCatalogErr,
		},
		{
			name: "negative price after modifier",
			path: write("negative.json", `[{"name": "x", "price": 1, "flavors": [{"value": "a", "price_modifier": -2}]}]`),
			fn:   parseCatalogErr,
		},
		{
			name: "location without id",
			path: write("no-id.json", `[{"name": "somewhere"}]`),
			fn:   parseLocationsErr,
		},
		{
			name: "boolean location id",
			path: write("bool-id.json", `[{"id": true, "name": "somewhere"}]`),
			fn:   parseLocationsErr,
		},
		{
			name: "latitude out of range",
			path: write("lat.yaml", "- {id: a, lat: 91}"),
			fn:   parseLocationsErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn(tt.path)
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.GetErrorType(err))
		})
	}
}

func parseCatalogErr(path string) error {
	_, err := ParseCatalog(path)
	return err
}

func parseLocationsErr(path string) error {
	_, err := ParseLocations(path)
	return err
}
