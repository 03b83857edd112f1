package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestSwaggerDocRegistered(t *testing.T) {
	doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	require.NoError(t, err)

	var parsed struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(doc), &parsed))
	assert.Equal(t, SwaggerInfo.Title, parsed.Info.Title)
	for _, p := range []string{"/health", "/api/v1/status", "/api/v1/readings", "/api/v1/logs", "/api/v1/faults", "/api/v1/users", "/auth/enroll", "/auth/sign-in"} {
		assert.Contains(t, parsed.Paths, p)
	}
}
