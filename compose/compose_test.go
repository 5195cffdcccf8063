package compose

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"sglocations.io/ner/types"
)

var (
	trained = types.ModelConfig{
		Name:   "model_v2_0",
		Title:  "Trained Model v2.0",
		Kind:   types.RemoteModel,
		Order:  3,
		Remote: &types.RemoteParams{URL: "http://ner:8080/ner", TimeoutSeconds: 10},
	}
	locER = types.ModelConfig{
		Name:       "loc_er",
		Title:      "Dictionary of Locations",
		Kind:       types.DictionaryModel,
		Order:      1,
		Dictionary: &types.DictionaryParams{Patterns: "combined_locations.json"},
	}
)

func TestCompose(t *testing.T) {
	composed, err := Compose(trained, locER, "model_v2_1", "")
	require.NoError(t, err)

	expected := types.ModelConfig{
		Name:       "model_v2_1",
		Title:      "Trained Model v2.0 with Dictionary of Locations",
		Kind:       types.CompositeModel,
		Order:      4,
		Components: []string{"loc_er", "model_v2_0"},
	}
	if diff := cmp.Diff(expected, composed); diff != "" {
		t.Errorf("unexpected composed model (-want +got):\n%s", diff)
	}

	composed, err = Compose(trained, locER, "model_v2_1", "Model v2.1")
	require.NoError(t, err)
	require.Equal(t, "Model v2.1", composed.Title)
}

func TestComposeErrors(t *testing.T) {
	_, err := Compose(locER, trained, "model_v2_1", "")
	require.True(t, errors.Is(err, ErrNotADictionary))

	_, err = Compose(trained, locER, "", "")
	require.Error(t, err)

	_, err = Compose(trained, locER, "model_v2_0", "")
	require.Error(t, err)

	_, err = Compose(locER, locER, "loc_er_twice", "")
	require.Error(t, err)
}

func TestComposeDir(t *testing.T) {
	dir := t.TempDir()
	_, err := types.WriteModelConfig(dir, trained)
	require.NoError(t, err)
	_, err = types.WriteModelConfig(dir, locER)
	require.NoError(t, err)

	filePath, err := ComposeDir(dir, "model_v2_0", "loc_er", "model_v2_1", "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "model_v2_1.yaml"), filePath)

	configs, err := types.LoadModelConfigs(dir)
	require.NoError(t, err)
	require.Len(t, configs, 3)
	last := configs[len(configs)-1]
	require.Equal(t, "model_v2_1", last.Name)
	require.Equal(t, types.CompositeModel, last.Kind)
	require.Equal(t, []string{"loc_er", "model_v2_0"}, last.Components)
	require.Nil(t, last.Remote)

	_, err = ComposeDir(dir, "model_v3_0", "loc_er", "model_v3_1", "")
	require.Error(t, err)
	_, err = os.Stat(filepath.Join(dir, "model_v3_1.yaml"))
	require.True(t, os.IsNotExist(err))
}
