package refint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/revstore/internal/resource"
)

func cascade(source, target string) resource.Relationship {
	return resource.Relationship{SourceType: source, SourceField: "ref", TargetType: target, Kind: resource.RefResource, OnDelete: resource.Cascade}
}

func TestAnalyzeCascades_DAG(t *testing.T) {
	rels := []resource.Relationship{
		cascade("Character", "Zone"),
		cascade("Item", "Character"),
		{SourceType: "Zone", SourceField: "owner", TargetType: "Item", OnDelete: resource.SetNull},
	}
	assert.Empty(t, AnalyzeCascades(rels), "set_null edges do not close a cascade cycle")
}

func TestAnalyzeCascades_ThreeModelCycle(t *testing.T) {
	rels := []resource.Relationship{
		cascade("B", "A"), // deleting A cascades into B
		cascade("C", "B"),
		cascade("A", "C"),
		cascade("D", "A"),
	}
	warnings := AnalyzeCascades(rels)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"A", "B", "C", "A"}, warnings[0].Path)
	assert.Equal(t, "cascade cycle: A → B → C → A", warnings[0].Message)
}

func TestAnalyzeCascades_Empty(t *testing.T) {
	assert.Empty(t, AnalyzeCascades(nil))
}
