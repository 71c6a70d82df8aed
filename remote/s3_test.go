package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestS3MirrorKeyAndBase(t *testing.T) {
	m := &S3Mirror{bucket: "releases", prefix: "repo/v1"}
	assert.Equal(t, "s3://releases/repo/v1", m.Base())
	assert.Equal(t, "repo/v1/root.json", m.key("/root.json"))
	assert.Equal(t, "repo/v1/root.json", m.key("root.json"))
}

func TestS3MirrorKeyWithoutPrefix(t *testing.T) {
	m := &S3Mirror{bucket: "releases"}
	assert.Equal(t, "root.json", m.key("/root.json"))
}
