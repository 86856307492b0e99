package manifest

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/solpm/internal/ir"
)

func sampleManifest() *Manifest {
	m := New()
	m.Set(Regular, "vault", Record{Version: "1.2.3", Address: "EEYLfrY1aj4e6CuUvaMyAuvHZG3sG7cpVbCBLUk54BQF", Network: ir.Mainnet})
	m.Set(Regular, "feedana", Record{
		Version:      "0.1.0",
		Address:      "GYVb4hWw8D22pkScWSZZB1QjT7jmuFkPCR1a9DCe1GjY",
		Network:      ir.Devnet,
		DocumentPath: "program/idl/feedana.json",
	})
	m.Set(Development, "counter", Record{
		Version:      "0.3.0",
		Address:      "EEYLfrY1aj4e6CuUvaMyAuvHZG3sG7cpVbCBLUk54BQF",
		Network:      ir.Localnet,
		DocumentPath: "program/idl/counter.json",
	})
	return m
}

func TestMarshalGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, format := range []Format{JSON, YAML} {
		t.Run(format.String(), func(t *testing.T) {
			data, err := Marshal(sampleManifest(), format)
			require.NoError(t, err)
			g.Assert(t, "manifest."+format.String(), data)
		})
	}
}

func TestRoundTripIsByteIdentical(t *testing.T) {
	for _, format := range []Format{JSON, YAML} {
		t.Run(format.String(), func(t *testing.T) {
			first, err := Marshal(sampleManifest(), format)
			require.NoError(t, err)

			m, err := Unmarshal(first, format)
			require.NoError(t, err)
			assert.True(t, sampleManifest().Equal(m))

			second, err := Marshal(m, format)
			require.NoError(t, err)
			assert.Equal(t, string(first), string(second))
		})
	}
}

func TestMarshalEmpty(t *testing.T) {
	data, err := Marshal(New(), JSON)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"programs\": {},\n  \"devPrograms\": {}\n}\n", string(data))

	m, err := Unmarshal(data, JSON)
	require.NoError(t, err)
	assert.Zero(t, m.Len())
}

func TestUnmarshalOriginalToolDocument(t *testing.T) {
	// Written by the original tool: mainnet-beta tag, missing devPrograms.
	data := []byte(`{"programs":{"vault":{"version":"1.0.0","program_id":"EEYLfrY1aj4e6CuUvaMyAuvHZG3sG7cpVbCBLUk54BQF","network":"mainnet-beta"}}}`)

	m, err := Unmarshal(data, JSON)
	require.NoError(t, err)
	rec, ok := m.Get(Regular, "vault")
	require.True(t, ok)
	assert.Equal(t, ir.Mainnet, rec.Network)
	assert.Empty(t, m.Names(Development))
}

func TestUnmarshalRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"not json", `{"programs": `, JSON},
		{"array", `[]`, JSON},
		{"programs is a list", `{"programs": []}`, JSON},
		{"missing version", `{"programs": {"a": {"program_id": "x", "network": "devnet"}}}`, JSON},
		{"empty version", `{"programs": {"a": {"version": "", "program_id": "x", "network": "devnet"}}}`, JSON},
		{"unknown record field", `{"programs": {"a": {"version": "1.0.0", "program_id": "x", "network": "devnet", "extra": 1}}}`, JSON},
		{"bad network", `{"programs": {"a": {"version": "1.0.0", "program_id": "x", "network": "moon"}}}`, JSON},
		{"yaml scalar", "just text\n", YAML},
		{"yaml empty", "", YAML},
		{"yaml bad record", "programs:\n  a:\n    version: 1.0.0\n", YAML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.data), tt.format)
			assert.Error(t, err)
		})
	}
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, JSON, FormatFor("SolanaPrograms.json"))
	assert.Equal(t, YAML, FormatFor("SolanaPrograms.yaml"))
	assert.Equal(t, YAML, FormatFor("deps.YML"))
	assert.Equal(t, JSON, FormatFor("manifest"))
}
