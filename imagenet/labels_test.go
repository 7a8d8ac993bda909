package imagenet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClassIndexJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "imagenet_class_index.json")
	body := `{"0": ["n01440764", "tench"], "2": ["n07753592", "banana"], "1": ["n07742313", "Granny_Smith"]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	idx, err := LoadClassIndex(path)
	require.NoError(t, err)
	require.Equal(t, 3, idx.Len())
	assert.Equal(t, Class{ID: "n01440764", Label: "tench"}, idx.At(0))
	assert.Equal(t, Class{ID: "n07742313", Label: "Granny_Smith"}, idx.At(1))
	assert.Equal(t, Class{ID: "n07753592", Label: "banana"}, idx.At(2))
}

func TestLoadClassIndexJSONBadKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"5": ["n0", "x"]}`), 0o644))

	_, err := LoadClassIndex(path)
	require.Error(t, err)
}

func TestLoadClassIndexText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte("# imagenet\ntench\n\n goldfish \n"), 0o644))

	idx, err := LoadClassIndex(path)
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())
	assert.Equal(t, "goldfish", idx.At(1).Label)
	assert.Empty(t, idx.At(1).ID)
}

func TestAtOutOfRange(t *testing.T) {
	idx := NewClassIndex([]Class{{Label: "tench"}})
	assert.Equal(t, "class_7", idx.At(7).Label)
	assert.Equal(t, "class_-1", idx.At(-1).Label)
}

func TestDisplayLabel(t *testing.T) {
	assert.Equal(t, "Granny Smith", DisplayLabel("Granny_Smith"))
	assert.Equal(t, "Banana", DisplayLabel("banana"))
	assert.Equal(t, "Custard Apple", DisplayLabel("custard_apple"))
	assert.Equal(t, "Bell Pepper", DisplayLabel("bell_pepper"))
}
