package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvString(t *testing.T) {
	t.Setenv("TEST_STR", "")
	assert.Equal(t, "d", GetEnvString("TEST_STR", "d"))
	t.Setenv("TEST_STR", "v")
	assert.Equal(t, "v", GetEnvString("TEST_STR", "d"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	assert.Equal(t, 42, GetEnvInt("TEST_INT", 1))
	t.Setenv("TEST_INT", "4x")
	assert.Equal(t, 1, GetEnvInt("TEST_INT", 1))
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "TRUE")
	assert.True(t, GetEnvBool("TEST_BOOL", false))
	t.Setenv("TEST_BOOL", "yes")
	assert.False(t, GetEnvBool("TEST_BOOL", false))
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "45s")
	assert.Equal(t, 45*time.Second, GetEnvDuration("TEST_DUR", time.Minute))
	t.Setenv("TEST_DUR", "45")
	assert.Equal(t, time.Minute, GetEnvDuration("TEST_DUR", time.Minute))
}

func TestGetEnvStringList(t *testing.T) {
	t.Setenv("TEST_LIST", " a, ,b ,")
	assert.Equal(t, []string{"a", "b"}, GetEnvStringList("TEST_LIST", nil))
	t.Setenv("TEST_LIST", " , ")
	assert.Equal(t, []string{"x"}, GetEnvStringList("TEST_LIST", []string{"x"}))
}

func TestGetEnvInt64List(t *testing.T) {
	t.Setenv("TEST_IDS", "123456789, -1001234567890, bob")
	assert.Equal(t, []int64{123456789, -1001234567890}, GetEnvInt64List("TEST_IDS"))
	t.Setenv("TEST_IDS", "")
	assert.Empty(t, GetEnvInt64List("TEST_IDS"))
}
