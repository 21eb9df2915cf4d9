package manifest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"pgregory.net/rapid"
)

func TestDependencies_SetKeepsPosition(t *testing.T) {
	d := NewDependencies("b:b", "1.0.0", "a:a", "2.0.0")
	d.Set("b:b", "^3.0.0")
	d.Set("c:c", "*")

	assert.Equal(t, []string{"b:b", "a:a", "c:c"}, d.Keys())
	rng, ok := d.Get("b:b")
	assert.True(t, ok)
	assert.Equal(t, "^3.0.0", rng)
}

func TestDependencies_NilIsEmpty(t *testing.T) {
	var d *Dependencies
	assert.Equal(t, 0, d.Len())
	assert.Nil(t, d.Keys())
	_, ok := d.Get("a:b")
	assert.False(t, ok)
	for range d.All() {
		t.Fatal("nil map yielded a pair")
	}
	assert.Equal(t, 0, d.Clone().Len())
}

func TestDependencies_JSON(t *testing.T) {
	d := NewDependencies("z:z", ">=1.0.0", "a:a", "<2.0.0")
	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"z:z":">=1.0.0","a:a":"<2.0.0"}`, string(out))

	var back Dependencies
	require.NoError(t, json.Unmarshal([]byte(`{"z:z":"1.0.0","m:m":"*","a:a":"~1.0.0"}`), &back))
	assert.Equal(t, []string{"z:z", "m:m", "a:a"}, back.Keys())

	assert.Error(t, json.Unmarshal([]byte(`["a:b"]`), &back))
	assert.Error(t, json.Unmarshal([]byte(`{"a:b": 1}`), &back))
}

func TestDependencies_YAML(t *testing.T) {
	var holder struct {
		Deps *Dependencies `yaml:"deps"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("deps:\n  z:z: ^1.0.0\n  a:a: \"*\"\n"), &holder))
	assert.Equal(t, []string{"z:z", "a:a"}, holder.Deps.Keys())

	out, err := yaml.Marshal(holder)
	require.NoError(t, err)
	assert.Contains(t, string(out), "z:z")

	assert.Error(t, yaml.Unmarshal([]byte("deps: [a]\n"), &holder))
	assert.Error(t, yaml.Unmarshal([]byte("deps:\n  a:b: [1]\n"), &holder))
}

func TestDependencies_JSONOrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ids := rapid.SliceOfDistinct(rapid.StringMatching(`[a-z]{1,6}:[a-z]{1,6}`), rapid.ID[string]).Draw(t, "ids")
		d := &Dependencies{}
		for _, id := range ids {
			d.Set(id, "*")
		}

		out, err := json.Marshal(d)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var back Dependencies
		if err := json.Unmarshal(out, &back); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(ids) == 0 {
			if back.Len() != 0 {
				t.Fatalf("expected empty map, got %v", back.Keys())
			}
			return
		}
		assert.Equal(t, ids, back.Keys())
	})
}

func TestDependencyKind_String(t *testing.T) {
	assert.Equal(t, "dependencies", Required.String())
	assert.Equal(t, "optionalDependencies", Optional.String())
	assert.Equal(t, "loadBefore", LoadBefore.String())
	assert.Equal(t, "unknown", DependencyKind(9).String())
}
