package marble

import (
	"fmt"
	"sort"
	"time"

	"github.com/xinjiayu/rxcore"
	"github.com/xinjiayu/rxcore/rxtest"
)

// operator 把场景的输入序列与整数参数组装成被测序列
type operator struct {
	// sources 需要的输入序列个数，-1 表示至少一个
	sources int
	// args 需要的整数参数个数
	args  int
	build func(s *rxtest.TestScheduler, in []rxcore.Observable, args []int) rxcore.Observable
}

func (op operator) check(in []rxcore.Observable, args []int) error {
	switch {
	case op.sources < 0 && len(in) == 0:
		return fmt.Errorf("needs at least one source")
	case op.sources >= 0 && len(in) != op.sources:
		return fmt.Errorf("needs %d sources, got %d", op.sources, len(in))
	case len(args) != op.args:
		return fmt.Errorf("needs %d args, got %d", op.args, len(args))
	}
	return nil
}

func ticks(n int) time.Duration { return time.Duration(n) }

// sum 把 int 值相加，用作 zip 与 combineLatest 的结果函数
func sum(values ...interface{}) (interface{}, error) {
	total := 0
	for _, v := range values {
		n, ok := v.(int)
		if !ok {
			return nil, fmt.Errorf("sum: %v is %T, not int", v, v)
		}
		total += n
	}
	return total, nil
}

func unary(build func(o rxcore.Observable, args []int) rxcore.Observable, args int) operator {
	return operator{sources: 1, args: args, build: func(_ *rxtest.TestScheduler, in []rxcore.Observable, a []int) rxcore.Observable {
		return build(in[0], a)
	}}
}

func timed(build func(o rxcore.Observable, d time.Duration, s rxcore.Scheduler) rxcore.Observable) operator {
	return operator{sources: 1, args: 1, build: func(s *rxtest.TestScheduler, in []rxcore.Observable, a []int) rxcore.Observable {
		return build(in[0], ticks(a[0]), s)
	}}
}

func variadic(build func(in ...rxcore.Observable) rxcore.Observable) operator {
	return operator{sources: -1, build: func(_ *rxtest.TestScheduler, in []rxcore.Observable, _ []int) rxcore.Observable {
		return build(in...)
	}}
}

func binary(build func(a, b rxcore.Observable) rxcore.Observable) operator {
	return operator{sources: 2, build: func(_ *rxtest.TestScheduler, in []rxcore.Observable, _ []int) rxcore.Observable {
		return build(in[0], in[1])
	}}
}

var operators = map[string]operator{
	"merge":  variadic(rxcore.Merge),
	"concat": variadic(rxcore.Concat),
	"amb":    variadic(rxcore.Amb),
	"catch":  variadic(rxcore.Catch),
	"onErrorResumeNext": variadic(rxcore.OnErrorResumeNext),
	"zip": variadic(func(in ...rxcore.Observable) rxcore.Observable {
		return rxcore.Zip(in, sum)
	}),
	"combineLatest": variadic(func(in ...rxcore.Observable) rxcore.Observable {
		return rxcore.CombineLatest(in, sum)
	}),
	"switch": binary(func(a, b rxcore.Observable) rxcore.Observable {
		return rxcore.Just(a, b).SwitchLatest()
	}),
	"takeUntil": binary(func(a, b rxcore.Observable) rxcore.Observable { return a.TakeUntil(b) }),
	"skipUntil": binary(func(a, b rxcore.Observable) rxcore.Observable { return a.SkipUntil(b) }),

	"take":     unary(func(o rxcore.Observable, a []int) rxcore.Observable { return o.Take(a[0]) }, 1),
	"skip":     unary(func(o rxcore.Observable, a []int) rxcore.Observable { return o.Skip(a[0]) }, 1),
	"takeLast": unary(func(o rxcore.Observable, a []int) rxcore.Observable { return o.TakeLast(a[0]) }, 1),
	"skipLast": unary(func(o rxcore.Observable, a []int) rxcore.Observable { return o.SkipLast(a[0]) }, 1),
	"retry":    unary(func(o rxcore.Observable, a []int) rxcore.Observable { return o.Retry(a[0]) }, 1),
	"repeat":   unary(func(o rxcore.Observable, a []int) rxcore.Observable { return o.Repeat(a[0]) }, 1),
	"bufferWithCount": unary(func(o rxcore.Observable, a []int) rxcore.Observable {
		return o.BufferWithCount(a[0], a[1])
	}, 2),
	"distinct":             unary(func(o rxcore.Observable, _ []int) rxcore.Observable { return o.Distinct(nil) }, 0),
	"distinctUntilChanged": unary(func(o rxcore.Observable, _ []int) rxcore.Observable { return o.DistinctUntilChanged(nil, nil) }, 0),
	"count":                unary(func(o rxcore.Observable, _ []int) rxcore.Observable { return o.Count() }, 0),
	"toSlice":              unary(func(o rxcore.Observable, _ []int) rxcore.Observable { return o.ToSlice() }, 0),
	"ignoreElements":       unary(func(o rxcore.Observable, _ []int) rxcore.Observable { return o.IgnoreElements() }, 0),

	"delay":    timed(func(o rxcore.Observable, d time.Duration, s rxcore.Scheduler) rxcore.Observable { return o.Delay(d, s) }),
	"debounce": timed(func(o rxcore.Observable, d time.Duration, s rxcore.Scheduler) rxcore.Observable { return o.Debounce(d, s) }),
	"throttle": timed(func(o rxcore.Observable, d time.Duration, s rxcore.Scheduler) rxcore.Observable { return o.Throttle(d, s) }),
	"sample":   timed(func(o rxcore.Observable, d time.Duration, s rxcore.Scheduler) rxcore.Observable { return o.Sample(d, s) }),
	"timeout": timed(func(o rxcore.Observable, d time.Duration, s rxcore.Scheduler) rxcore.Observable {
		return o.Timeout(d, nil, s)
	}),
}

// Operators 返回可用的操作符名，按字典序
func Operators() []string {
	names := make([]string, 0, len(operators))
	for name := range operators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
