package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateCronSchedule(t *testing.T) {
	for _, ok := range []string{"@every 60s", "@hourly", "30 5 * * *", "*/15 * * * 1-5"} {
		assert.NoError(t, ValidateCronSchedule(ok), ok)
	}
	for _, bad := range []string{"", "@every", "61 * * * *", "* * * *", "every minute"} {
		assert.Error(t, ValidateCronSchedule(bad), bad)
	}
}

func TestValidateTimezone(t *testing.T) {
	assert.NoError(t, ValidateTimezone("UTC"))
	assert.Error(t, ValidateTimezone(""))
	assert.Error(t, ValidateTimezone("Mars/Olympus_Mons"))
}

func TestValidateRanges(t *testing.T) {
	assert.NoError(t, ValidateDuration(time.Second, 0, time.Minute))
	assert.Error(t, ValidateDuration(-time.Second, 0, time.Minute))
	assert.Error(t, ValidatePositiveDuration(0))
	assert.NoError(t, ValidateIntRange(3, 1, 10))
	assert.Error(t, ValidateIntRange(11, 1, 10))
}

func TestValidatePort(t *testing.T) {
	assert.NoError(t, ValidatePort(0))
	assert.NoError(t, ValidatePort(8080))
	assert.Error(t, ValidatePort(80))
	assert.Error(t, ValidatePort(70000))
}

func TestValidateHTTPURL(t *testing.T) {
	assert.NoError(t, ValidateHTTPURL("https://subsplease.org/rss/?t&r=720"))
	assert.Error(t, ValidateHTTPURL("ftp://example.org"))
	assert.Error(t, ValidateHTTPURL("https://"))
	assert.Error(t, ValidateHTTPURL("::"))
}
