package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostOf(t *testing.T) {
	assert.Equal(t, "www.instagram.com", hostOf("https://www.instagram.com"))
	assert.Equal(t, "localhost", hostOf("http://localhost:8080/base"))
	assert.Equal(t, "example.com", hostOf("example.com/path"))
}

func TestNodeHandle(t *testing.T) {
	n, err := node(nil)
	assert.NoError(t, err)
	assert.Nil(t, n)

	_, err = node("not a node")
	assert.Error(t, err)
}

func TestBaseURL(t *testing.T) {
	b := &Browser{}
	assert.Equal(t, "https://www.instagram.com", b.baseURL())

	b.cfg.BaseURL = "http://localhost:9000/"
	assert.Equal(t, "http://localhost:9000", b.baseURL())
}
