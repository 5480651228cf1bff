package app

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVendorHTTPClientBoundsHeaderWait(t *testing.T) {
	c := vendorHTTPClient(45 * time.Second)
	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 45*time.Second, tr.ResponseHeaderTimeout)
	assert.Zero(t, c.Timeout)
	assert.NotSame(t, http.DefaultTransport, c.Transport)
}
