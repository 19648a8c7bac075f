package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCensoredLoader_LoadAll(t *testing.T) {
	req := require.New(t)

	data, err := NewCensoredLoader().LoadAll("censored")
	req.NoError(err)
	req.NotEmpty(data.Words)
	req.ElementsMatch([]string{"en", "es"}, data.Languages)
	req.Contains(data.Words, "idiota")
}

func TestCensoredLoader_Unknown_Path(t *testing.T) {
	req := require.New(t)

	_, err := NewCensoredLoader().LoadAll("missing")
	req.Error(err)
}
