package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Info()
	for _, field := range []string{"name", "version", "gitCommit", "buildTime", "goVersion"} {
		assert.NotEmpty(t, info[field], field)
	}
	assert.Equal(t, "erpnext-importer", info["name"])
}

func TestString(t *testing.T) {
	s := String()
	assert.True(t, strings.HasPrefix(s, "erpnext-importer "), s)
	assert.Contains(t, s, Version)
}
