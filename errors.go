package rxcore

import (
	"errors"
	"fmt"
	"strings"
)

// ErrContractViolation 所有编程契约违规错误都匹配该哨兵
var ErrContractViolation = errors.New("rxcore: contract violation")

type contractError struct {
	msg string
}

func (e *contractError) Error() string { return e.msg }

func (e *contractError) Is(target error) bool { return target == ErrContractViolation }

var (
	// ErrDisposableAlreadyAssigned 单次赋值资源被重复赋值
	ErrDisposableAlreadyAssigned error = &contractError{"rxcore: disposable has already been assigned"}
	// ErrReentrancy 观察者被重入调用
	ErrReentrancy error = &contractError{"rxcore: re-entrancy detected"}
	// ErrObserverTerminated 观察者在终止后仍被调用
	ErrObserverTerminated error = &contractError{"rxcore: observer has already terminated"}
	// ErrObjectDisposed 对象已释放
	ErrObjectDisposed error = &contractError{"rxcore: object has been disposed"}
	// ErrArgumentOutOfRange 参数越界，例如虚拟时间倒退
	ErrArgumentOutOfRange error = &contractError{"rxcore: argument out of range"}
	// ErrSchedulerWouldBlock 立即调度器不允许延迟执行
	ErrSchedulerWouldBlock error = &contractError{"rxcore: immediate scheduler cannot block for a positive due time"}
)

var (
	// ErrSequenceEmpty 序列不包含任何元素
	ErrSequenceEmpty = errors.New("rxcore: sequence contains no elements")
	// ErrNotObservable 高阶操作符收到的元素不是 Observable
	ErrNotObservable = errors.New("rxcore: element is not an Observable")
	// ErrKeyNotComparable 键不可作为映射键
	ErrKeyNotComparable = errors.New("rxcore: key is not comparable")
	// ErrNotNotification Dematerialize 收到的元素不是通知
	ErrNotNotification = errors.New("rxcore: element is not a Notification")
	// ErrTimeout Timeout 在期限内没有收到通知
	ErrTimeout = errors.New("rxcore: sequence timed out")
)

// IsContractViolation 判断错误是否为契约违规
func IsContractViolation(err error) bool {
	return errors.Is(err, ErrContractViolation)
}

// CompositeError 聚合多个错误，例如组合资源释放时多个成员失败
type CompositeError struct {
	Errors []error
}

// NewCompositeError 创建组合错误
func NewCompositeError(errs ...error) *CompositeError {
	return &CompositeError{Errors: errs}
}

func (e *CompositeError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("rxcore: %d errors occurred: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *CompositeError) Unwrap() []error {
	return e.Errors
}

// panicToError 将 recover 得到的值转换为错误
func panicToError(r interface{}) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("rxcore: panic: %v", r)
}
