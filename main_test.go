package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunArguments(t *testing.T) {
	assert.Equal(t, 0, run([]string{"-h"}))
	assert.Equal(t, 0, run([]string{"--help"}))
	assert.Equal(t, 2, run([]string{"--port", "80"}))
	assert.Equal(t, 2, run([]string{"serve"}))
}
