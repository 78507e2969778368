package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryantbiggs/aws-for-fluent-bit/internal/validation"
)

func observedCase(missing, duplicate string) *validation.Case {
	return &validation.Case{
		LoggerName: "stdstream",
		Throughput: "10m",
		Output: validation.Output{
			validation.KeyMissing:   missing,
			validation.KeyDuplicate: duplicate,
		},
	}
}

func TestObserveCase(t *testing.T) {
	t.Run("records counts and outcome", func(t *testing.T) {
		c := NewCollector()
		c.ObserveCase(observedCase("9000", "12"), true)

		assert.Equal(t, 1.0, testutil.ToFloat64(c.cases.WithLabelValues("stdstream", "10m", "fail")))
		assert.Equal(t, 9000.0, testutil.ToFloat64(c.missing.WithLabelValues("stdstream", "10m")))
		assert.Equal(t, 12.0, testutil.ToFloat64(c.duplicate.WithLabelValues("stdstream", "10m")))
	})

	t.Run("skips unparsable counts", func(t *testing.T) {
		c := NewCollector()
		c.ObserveCase(&validation.Case{LoggerName: "tcp", Throughput: "20m", Output: validation.Output{}}, false)

		assert.Equal(t, 1.0, testutil.ToFloat64(c.cases.WithLabelValues("tcp", "20m", "pass")))
		assert.Equal(t, 0, testutil.CollectAndCount(c.missing))
		assert.Equal(t, 0, testutil.CollectAndCount(c.duplicate))
	})
}

func TestSetRunPassed(t *testing.T) {
	c := NewCollector()

	c.SetRunPassed(true)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.passed))

	c.SetRunPassed(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.passed))
}

func TestPush(t *testing.T) {
	var path, body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewCollector()
	c.ObserveCase(observedCase("0", "0"), false)
	c.SetRunPassed(true)

	require.NoError(t, c.Push(context.Background(), server.URL, "ecs", "cloudwatch"))

	assert.Contains(t, path, "/job/fluent-bit-load-test")
	assert.Contains(t, path, "platform/ecs")
	assert.Contains(t, path, "plugin/cloudwatch")
	assert.Contains(t, body, "load_test_run_passed")
}

func TestPushFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no", http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewCollector()
	err := c.Push(context.Background(), server.URL, "ecs", "cloudwatch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "push to")
}
