package mculink

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestDescriptors(t *testing.T) {
	w := WriteRequest(0x0102, []byte{0xAA, 0xBB})
	assert.Equal(t, []byte{OpWrite, 0, 0, 0x01, 0x02, 0, 2, 0xAA, 0xBB}, w)

	r := ReadRequest(0x0102, 300)
	assert.Equal(t, []byte{OpRead, 0, 0, 0x01, 0x02, 0x01, 0x2C}, r)
}
