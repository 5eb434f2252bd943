package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	old := Version
	Version = "v1.2.3"
	t.Cleanup(func() { Version = old })

	assert.Equal(t, "v1.2.3", Short())
	assert.Contains(t, Info(), "llmnote v1.2.3")
	assert.Contains(t, Info(), runtime.Version())

	b := Get()
	assert.Equal(t, "v1.2.3", b.Version)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, b.Platform)
}
