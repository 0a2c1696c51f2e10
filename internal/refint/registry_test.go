package refint

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/revstore/internal/resource"
)

func newTestRegistry() (*Registry, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewRegistry(logger), &buf
}

func TestRegistry_WarnsOnceAboutUnregisteredTargets(t *testing.T) {
	reg, logs := newTestRegistry()

	_, err := reg.Register("Character", reflect.TypeFor[Character]())
	require.NoError(t, err)
	// zone, guild, snapshot and stats.home; self references are known.
	assert.Equal(t, 4, strings.Count(logs.String(), "reference to unregistered type"))

	logs.Reset()
	_, err = reg.Register("Zone", reflect.TypeFor[Zone]())
	require.NoError(t, err)
	_, err = reg.Register("Guild", reflect.TypeFor[Guild]())
	require.NoError(t, err)
	assert.NotContains(t, logs.String(), "reference to unregistered type")
}

func TestRegistry_Relationships(t *testing.T) {
	reg, _ := newTestRegistry()
	for name, typ := range map[string]reflect.Type{
		"Zone":      reflect.TypeFor[Zone](),
		"Guild":     reflect.TypeFor[Guild](),
		"Character": reflect.TypeFor[Character](),
	} {
		_, err := reg.Register(name, typ)
		require.NoError(t, err)
	}

	var got []string
	for _, rel := range reg.Dependents("Zone") {
		got = append(got, rel.String())
	}
	assert.Equal(t, []string{
		"Character.zone -> Zone (resource, on_delete=cascade)",
		"Character.snapshot -> Zone (revision, on_delete=dangling)",
		"Character.stats.home -> Zone (resource, on_delete=dangling)",
	}, got)

	out := reg.Outgoing("Guild")
	require.Len(t, out, 1)
	assert.Equal(t, resource.Relationship{
		SourceType:  "Guild",
		SourceField: "members",
		TargetType:  "Character",
		Kind:        resource.RefResource,
		OnDelete:    resource.SetNull,
		Nullable:    true,
		IsList:      true,
	}, out[0])

	name, ok := reg.ModelOf(reflect.TypeFor[Guild]())
	assert.True(t, ok)
	assert.Equal(t, "Guild", name)
	assert.Len(t, reg.Refs("Character"), 6)
	assert.Len(t, reg.Relationships(), 7)
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	reg, _ := newTestRegistry()
	_, err := reg.Register("Zone", reflect.TypeFor[Zone]())
	require.NoError(t, err)

	_, err = reg.Register("Zone", reflect.TypeFor[Guild]())
	assert.True(t, resource.IsConfiguration(err))

	_, err = reg.Register("Area", reflect.TypeFor[*Zone]())
	assert.True(t, resource.IsConfiguration(err))
}

type Folder struct {
	Parent *resource.ResourceRef[Folder] `json:"parent" revstore:"on_delete=cascade"`
}

type Ping struct {
	Pong resource.ResourceRef[Pong] `json:"pong" revstore:"on_delete=cascade"`
}

type Pong struct {
	Ping resource.ResourceRef[Ping] `json:"ping" revstore:"on_delete=cascade"`
}

func TestRegistry_LogsCascadeCycles(t *testing.T) {
	reg, logs := newTestRegistry()
	for name, typ := range map[string]reflect.Type{
		"Folder": reflect.TypeFor[Folder](),
		"Ping":   reflect.TypeFor[Ping](),
		"Pong":   reflect.TypeFor[Pong](),
	} {
		_, err := reg.Register(name, typ)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, strings.Count(logs.String(), "cascade cycle between models"))

	cycles := reg.CascadeCycles()
	require.Len(t, cycles, 2)
	assert.Equal(t, []string{"Folder", "Folder"}, cycles[0].Path)
	assert.Equal(t, []string{"Ping", "Pong", "Ping"}, cycles[1].Path)
}
