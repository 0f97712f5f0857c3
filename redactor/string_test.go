package redactor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordMarshalsToNothing(t *testing.T) {
	result, err := json.Marshal(String("testing"))
	require.NoError(t, err)
	assert.Equal(t, "null", string(result))
}

func TestPasswordMarshalsToSomething(t *testing.T) {
	var buf bytes.Buffer
	encoder := NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	require.NoError(t, encoder.Encode(struct {
		Password String `json:"password"`
	}{Password: "testing"}))
	assert.JSONEq(t, `{"password": "testing"}`, buf.String())
}

func TestPasswordUnmarshals(t *testing.T) {
	var p String
	err := json.Unmarshal([]byte(`"hey there"`), &p)
	require.NoError(t, err)
	assert.Equal(t, String("hey there"), p)

	someStruct := struct {
		Username string
		Password String
	}{}
	err = json.Unmarshal([]byte(`{"Username":"username", "Password":"password"}`), &someStruct)
	require.NoError(t, err)

	assert.Equal(t, "username", someStruct.Username)
	assert.Equal(t, String("password"), someStruct.Password)
}

func TestPasswordPrintsRedacted(t *testing.T) {
	assert.Equal(t, "REDACTED", String("app-password").String())
	assert.Equal(t, "REDACTED", fmt.Sprintf("%v", String("app-password")))
	assert.Equal(t, "", String("").String())
	assert.Equal(t, "app-password", String("app-password").Reveal())
}
