package auth

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCheck(t *testing.T) {
	tokenChecks.Reset()
	start := time.Now()

	observeCheck(RoleAdmin, "DELETE", outcomeAllowed, start)
	observeCheck(RoleAdmin, "DELETE", outcomeAllowed, start)
	observeCheck(RoleViewer, "POST", outcomeForbidden, start)
	observeCheck(RoleAdmin, "GET", outcomeInvalid, start)

	assert.Equal(t, 2.0, testutil.ToFloat64(tokenChecks.WithLabelValues(RoleAdmin, "DELETE", outcomeAllowed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(tokenChecks.WithLabelValues(RoleViewer, "POST", outcomeForbidden)))
	assert.Equal(t, 1.0, testutil.ToFloat64(tokenChecks.WithLabelValues("none", "GET", outcomeInvalid)),
		"claims from a rejected token are not used as a label")
	assert.Equal(t, 1, testutil.CollectAndCount(tokenCheckSeconds))
}
