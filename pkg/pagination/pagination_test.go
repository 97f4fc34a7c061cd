package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func parseQuery(query string) Params {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+query, nil)
	return Parse(c)
}

func TestParse(t *testing.T) {
	cases := []struct {
		query string
		want  Params
	}{
		{"", Params{Page: 1, Limit: 20}},
		{"page=3&limit=10", Params{Page: 3, Limit: 10}},
		{"page=0&limit=0", Params{Page: 1, Limit: 20}},
		{"page=abc&limit=-5", Params{Page: 1, Limit: 20}},
		{"limit=1000", Params{Page: 1, Limit: MaxLimit}},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			assert.Equal(t, tc.want, parseQuery(tc.query))
		})
	}
}

func TestOffset(t *testing.T) {
	assert.Equal(t, 0, New(1, 20).Offset())
	assert.Equal(t, 40, New(3, 20).Offset())
	assert.Equal(t, 0, New(-2, 20).Offset())
}
