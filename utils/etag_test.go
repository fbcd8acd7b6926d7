package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGenerateETag(t *testing.T) {
	id := primitive.NewObjectID()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	first := GenerateETag(id, at)
	assert.Equal(t, first, GenerateETag(id, at), "same inputs give same tag")
	assert.NotEqual(t, first, GenerateETag(id, at.Add(time.Second)))
	assert.NotEqual(t, first, GenerateETag(primitive.NewObjectID(), at))

	assert.Regexp(t, `^"[0-9a-f]{40}"$`, first)
}
