package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/revstore/internal/codec"
	"github.com/roach88/revstore/internal/resource"
)

// tag appends a version marker to the payload so tests can see which steps
// ran and in what order.
func tag(marker string) MigrateFunc {
	return func(data []byte) (any, error) {
		return append(append([]byte{}, data...), marker...), nil
	}
}

func mustNotRun(t *testing.T) MigrateFunc {
	return func(data []byte) (any, error) {
		t.Fatal("migration step should not run")
		return nil, nil
	}
}

func TestAddChain_AppliesStepsInOrder(t *testing.T) {
	s := New("v3")
	require.NoError(t, s.AddChain(
		Step{From: "v1", Fn: tag("->v2")},
		Step{From: "v2", Fn: tag("->v3")},
	))

	steps, err := s.Resolve("v1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "v2", steps[0].To, "To defaults to the next step's From")
	assert.Equal(t, "v3", steps[1].To, "last step defaults to the target")

	out, err := s.Migrate(codec.JSON, "v1", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "x->v2->v3", string(out))

	out, err = s.Migrate(codec.JSON, "v2", []byte("y"))
	require.NoError(t, err)
	assert.Equal(t, "y->v3", string(out))
}

func TestMigrate_TargetVersionIsUntouched(t *testing.T) {
	s := New("v2")
	require.NoError(t, s.AddChain(Step{From: "v1", Fn: mustNotRun(t)}))

	out, err := s.Migrate(codec.JSON, "v2", []byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(out))
	assert.False(t, s.NeedsMigration("v2"))
	assert.True(t, s.NeedsMigration("v1"))
}

func TestResolve_NoPath(t *testing.T) {
	s := New("v3")
	require.NoError(t, s.AddChain(Step{From: "v1", To: "v2", Fn: tag("")}))

	_, err := s.Resolve("v1")
	assert.True(t, resource.IsMigrationPath(err), "got %v", err)

	_, err = s.Resolve("v0")
	assert.True(t, resource.IsMigrationPath(err), "got %v", err)
	assert.ErrorIs(t, err, resource.ErrMigrationPath)
}

func TestResolve_PrefersShortestPath(t *testing.T) {
	s := New("v4")
	require.NoError(t, s.AddChain(
		Step{From: "v1", Fn: tag("->v2")},
		Step{From: "v2", Fn: tag("->v3")},
		Step{From: "v3", Fn: tag("->v4")},
	))
	require.NoError(t, s.AddChain(
		Step{From: "v1", To: "v3", Fn: tag("->v3!")},
	))

	out, err := s.Migrate(codec.JSON, "v1", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "x->v3!->v4", string(out))
}

func TestLegacy(t *testing.T) {
	s := New("v2")
	require.NoError(t, s.AddChain(Step{From: "v1", Fn: tag("->v2")}))
	require.NoError(t, s.Legacy("", tag("(unversioned)->v2")))

	out, err := s.Migrate(codec.JSON, "", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "x(unversioned)->v2", string(out))
}

func TestMigrate_ReencodesDocuments(t *testing.T) {
	for _, c := range []codec.Codec{codec.JSON, codec.CBOR} {
		t.Run(c.Name(), func(t *testing.T) {
			s := New("v2")
			require.NoError(t, s.AddChain(Step{From: "v1", Fn: Doc(c, func(doc map[string]any) (any, error) {
				doc["hp"] = doc["health"]
				delete(doc, "health")
				return doc, nil
			})}))

			in, err := c.Marshal(map[string]any{"name": "orc", "health": 12})
			require.NoError(t, err)

			out, err := s.Migrate(c, "v1", in)
			require.NoError(t, err)

			var got struct {
				Name   string `json:"name"`
				HP     int    `json:"hp"`
				Health *int   `json:"health"`
			}
			require.NoError(t, c.Unmarshal(out, &got))
			assert.Equal(t, "orc", got.Name)
			assert.Equal(t, 12, got.HP)
			assert.Nil(t, got.Health)
		})
	}
}

func TestMigrate_StepError(t *testing.T) {
	boom := errors.New("boom")
	s := New("v2")
	require.NoError(t, s.AddChain(Step{From: "v1", Fn: func([]byte) (any, error) { return nil, boom }}))

	_, err := s.Migrate(codec.JSON, "v1", []byte("{}"))
	assert.ErrorIs(t, err, boom)
}

func TestAddChain_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(s *Schema) error
	}{
		{"missing from", func(s *Schema) error {
			return s.AddChain(Step{Fn: tag("")})
		}},
		{"missing function", func(s *Schema) error {
			return s.AddChain(Step{From: "v1"})
		}},
		{"self loop", func(s *Schema) error {
			return s.AddChain(Step{From: "v2", To: "v2", Fn: tag("")})
		}},
		{"duplicate edge", func(s *Schema) error {
			if err := s.AddChain(Step{From: "v1", Fn: tag("")}); err != nil {
				return err
			}
			return s.Legacy("v1", tag(""))
		}},
		{"legacy without function", func(s *Schema) error {
			return s.Legacy("v0", nil)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.build(New("v2"))
			assert.True(t, resource.IsConfiguration(err), "got %v", err)
		})
	}
}
