package rxcore_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xinjiayu/rxcore"
)

// collectSync 订阅并收集同步结束的序列
func collectSync(t *testing.T, o rxcore.Observable) ([]interface{}, error) {
	t.Helper()
	var values []interface{}
	var err error
	done := false
	o.SubscribeWithCallbacks(func(v interface{}) {
		values = append(values, v)
	}, func(e error) {
		err = e
		done = true
	}, func() {
		done = true
	})
	require.True(t, done, "sequence did not terminate synchronously")
	return values, err
}

// valuesOf 收集同步完成的序列，出错即失败
func valuesOf(t *testing.T, o rxcore.Observable) []interface{} {
	t.Helper()
	values, err := collectSync(t, o)
	require.NoError(t, err)
	return values
}

func sum(values ...interface{}) (interface{}, error) {
	total := 0
	for _, v := range values {
		total += v.(int)
	}
	return total, nil
}

func add(a, b interface{}) (interface{}, error) {
	return a.(int) + b.(int), nil
}
