package s3archive

import (
	"testing"
	"time"

	"github.com/alecthomas/assert"
)

func TestConfigValidate(t *testing.T) {
	var c *Config
	assert.Error(t, c.Validate())
	assert.Error(t, (&Config{Access: "a", Secret: "s", Bucket: "b"}).Validate())
	assert.NoError(t, (&Config{Access: "a", Secret: "s", Bucket: "b", Endpoint: "localhost:9000"}).Validate())

	_, err := New(&Config{Bucket: "b"})
	assert.Error(t, err)
	_, err = New(nil)
	assert.Error(t, err)
}

func TestRemotePathFor(t *testing.T) {
	tm := time.Date(2024, time.March, 7, 23, 59, 1, 0, time.UTC)
	p := RemotePathFor("archives", "/data/points.bin", tm, ".zst")
	assert.Equal(t, "archives/points.bin-20240307-235901.zst", p)
	p = RemotePathFor("", "points.bin", tm, ".br")
	assert.Equal(t, "points.bin-20240307-235901.br", p)
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "application/zstd", contentTypeFor("a/points.bin-1.zst"))
	assert.Equal(t, "application/x-brotli", contentTypeFor("a/points.bin-1.BR"))
	assert.Equal(t, "application/gzip", contentTypeFor("points.gz"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("points.unknownext"))
}
