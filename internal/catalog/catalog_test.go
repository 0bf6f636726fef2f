package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_ConfigOverridesDocument(t *testing.T) {
	doc := Document{
		ID:    "bmw-x5",
		Brand: "BMW",
		Name:  "X5",
		Price: 65000,
		Specs: map[string]any{"seats": 5, "fuel": "petrol"},
	}
	cfg := &Config{
		ID:    "bmw-x5-45e",
		Name:  "xDrive45e",
		Price: 72000,
		Specs: map[string]any{"fuel": "hybrid"},
	}

	r := Resolve(doc, cfg)

	assert.Equal(t, "bmw-x5", r.DocumentID)
	assert.Equal(t, "bmw-x5-45e", r.ConfigID)
	assert.Equal(t, "xDrive45e", r.Variant)
	assert.Equal(t, 72000.0, r.Price)
	assert.Equal(t, map[string]any{"seats": 5, "fuel": "hybrid"}, r.Specs)
	assert.Equal(t, "BMW X5 xDrive45e", r.DisplayText())

	// The document itself is untouched.
	assert.Equal(t, "petrol", doc.Specs["fuel"])
}

func TestResolve_UnsetConfigFieldsFallBack(t *testing.T) {
	doc := Document{ID: "d", Brand: "Audi", Name: "A4", Price: 41000}

	r := Resolve(doc, &Config{ID: "c", Name: "Base"})
	assert.Equal(t, 41000.0, r.Price)
	assert.Nil(t, r.Specs)

	r = Resolve(doc, nil)
	assert.Empty(t, r.ConfigID)
	assert.Equal(t, "Audi A4", r.DisplayText())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		doc         Document
		wantErr     string
		wantConfigs []Config
		wantDropped int
	}{
		{
			name:    "missing id",
			doc:     Document{Brand: "BMW", Name: "X5"},
			wantErr: "no id",
		},
		{
			name:    "missing name",
			doc:     Document{ID: "x", Brand: "BMW", Name: "  "},
			wantErr: "no name",
		},
		{
			name:    "missing brand",
			doc:     Document{ID: "x", Name: "X5"},
			wantErr: "no brand",
		},
		{
			name: "configs cleaned",
			doc: Document{ID: "x", Brand: "BMW", Name: "X5", Configs: []Config{
				{Name: " xDrive40i ", Price: 1},
				{Name: "", Price: 2},
				{ID: "keep", Name: "M60i", Price: 3},
			}},
			wantConfigs: []Config{
				{ID: "x#0", Name: "xDrive40i", Price: 1},
				{ID: "keep", Name: "M60i", Price: 3},
			},
			wantDropped: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, dropped, err := Normalize(tt.doc)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantConfigs, got.Configs)
			assert.Equal(t, tt.wantDropped, dropped)
		})
	}
}

func TestDocument_Config(t *testing.T) {
	doc := Document{ID: "d", Configs: []Config{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}}

	c, ok := doc.Config("b")
	require.True(t, ok)
	assert.Equal(t, "B", c.Name)

	_, ok = doc.Config("z")
	assert.False(t, ok)
}

func TestFingerprint(t *testing.T) {
	docs := []Document{
		{ID: "a", Brand: "BMW", Name: "X5", Specs: map[string]any{"b": 1, "a": 2}},
		{ID: "b", Brand: "Audi", Name: "A4", Configs: []Config{{ID: "c", Name: "Base", Price: 1}}},
	}

	fp := Fingerprint(docs)
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, Fingerprint(docs), "stable for identical input")

	changed := []Document{docs[0], docs[1]}
	changed[1].Configs = []Config{{ID: "c", Name: "Base", Price: 2}}
	assert.NotEqual(t, fp, Fingerprint(changed))

	reordered := []Document{docs[1], docs[0]}
	assert.NotEqual(t, fp, Fingerprint(reordered))

	assert.NotEqual(t, Fingerprint(nil), fp)
}
