package swagger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var routerAnnotation = regexp.MustCompile(`@Router\s+(\S+)\s+\[(\w+)\]`)

func TestDocCoversEveryAnnotatedRoute(t *testing.T) {
	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(SwaggerInfo.ReadDoc()), &doc))

	files, err := filepath.Glob("../../internal/handler/*_handler.go")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	routes := 0
	for _, f := range files {
		src, err := os.ReadFile(f)
		require.NoError(t, err)
		for _, m := range routerAnnotation.FindAllStringSubmatch(string(src), -1) {
			routes++
			path, method := m[1], strings.ToLower(m[2])
			_, ok := doc.Paths[path][method]
			assert.True(t, ok, "%s %s missing from swagger doc (%s)", method, path, filepath.Base(f))
		}
	}
	assert.Positive(t, routes)
}
