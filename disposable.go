package rxcore

import (
	"sync"
	"sync/atomic"
)

// ============================================================================
// 可释放资源
// ============================================================================

// Disposable 可释放资源的接口，Dispose 必须幂等
type Disposable interface {
	Dispose()
}

type emptyDisposable struct{}

func (emptyDisposable) Dispose() {}

// EmptyDisposable 什么也不做的可释放资源
var EmptyDisposable Disposable = emptyDisposable{}

// baseDisposable 基于回调的可释放资源
type baseDisposable struct {
	disposed int32
	action   func()
}

// NewDisposable 创建在首次释放时执行 action 的资源
func NewDisposable(action func()) *baseDisposable {
	return &baseDisposable{
		action: action,
	}
}

// Dispose 释放资源
func (d *baseDisposable) Dispose() {
	if atomic.CompareAndSwapInt32(&d.disposed, 0, 1) {
		if d.action != nil {
			d.action()
		}
	}
}

// IsDisposed 检查是否已释放
func (d *baseDisposable) IsDisposed() bool {
	return atomic.LoadInt32(&d.disposed) == 1
}

// disposeAll 释放全部资源；某个成员 panic 不会阻止其余成员释放，
// 结束后重新抛出第一个失败或组合错误
func disposeAll(resources []Disposable) {
	var failures []interface{}
	for _, resource := range resources {
		func() {
			defer func() {
				if r := recover(); r != nil {
					failures = append(failures, r)
				}
			}()
			resource.Dispose()
		}()
	}

	switch len(failures) {
	case 0:
	case 1:
		panic(failures[0])
	default:
		errs := make([]error, len(failures))
		for i, r := range failures {
			errs[i] = panicToError(r)
		}
		panic(NewCompositeError(errs...))
	}
}

// ============================================================================
// CompositeDisposable
// ============================================================================

// CompositeDisposable 组合式资源管理器，成员必须是可比较的类型（通常为指针）
type CompositeDisposable struct {
	mu        sync.Mutex
	disposed  bool
	resources []Disposable
}

// NewCompositeDisposable 创建组合式资源管理器
func NewCompositeDisposable(resources ...Disposable) *CompositeDisposable {
	cd := &CompositeDisposable{
		resources: make([]Disposable, 0, len(resources)),
	}
	for _, resource := range resources {
		if resource != nil {
			cd.resources = append(cd.resources, resource)
		}
	}
	return cd
}

// Add 添加可释放资源，若已释放则立即释放该资源
func (cd *CompositeDisposable) Add(disposable Disposable) {
	if disposable == nil {
		return
	}

	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		disposable.Dispose()
		return
	}
	cd.resources = append(cd.resources, disposable)
	cd.mu.Unlock()
}

// Remove 移除并释放一个匹配的资源
func (cd *CompositeDisposable) Remove(disposable Disposable) bool {
	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		return false
	}

	index := -1
	for i, resource := range cd.resources {
		if resource == disposable {
			index = i
			break
		}
	}
	if index < 0 {
		cd.mu.Unlock()
		return false
	}
	cd.resources = append(cd.resources[:index], cd.resources[index+1:]...)
	cd.mu.Unlock()

	disposable.Dispose()
	return true
}

// Contains 是否包含该资源
func (cd *CompositeDisposable) Contains(disposable Disposable) bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()

	for _, resource := range cd.resources {
		if resource == disposable {
			return true
		}
	}
	return false
}

// Len 当前持有的资源数量
func (cd *CompositeDisposable) Len() int {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return len(cd.resources)
}

// Clear 释放并移除所有资源，但不标记为已释放
func (cd *CompositeDisposable) Clear() {
	cd.mu.Lock()
	resources := cd.resources
	cd.resources = nil
	cd.mu.Unlock()

	disposeAll(resources)
}

// Dispose 释放所有资源
func (cd *CompositeDisposable) Dispose() {
	cd.mu.Lock()
	if cd.disposed {
		cd.mu.Unlock()
		return
	}
	cd.disposed = true
	resources := cd.resources
	cd.resources = nil
	cd.mu.Unlock()

	disposeAll(resources)
}

// IsDisposed 检查是否已释放
func (cd *CompositeDisposable) IsDisposed() bool {
	cd.mu.Lock()
	defer cd.mu.Unlock()
	return cd.disposed
}

// ============================================================================
// SerialDisposable
// ============================================================================

// SerialDisposable 至多持有一个资源，替换时释放旧资源
type SerialDisposable struct {
	mu       sync.Mutex
	disposed bool
	current  Disposable
}

// NewSerialDisposable 创建串行资源
func NewSerialDisposable() *SerialDisposable {
	return &SerialDisposable{}
}

// Disposable 返回当前持有的资源
func (sd *SerialDisposable) Disposable() Disposable {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	return sd.current
}

// SetDisposable 替换当前资源
func (sd *SerialDisposable) SetDisposable(value Disposable) {
	sd.mu.Lock()
	if sd.disposed {
		sd.mu.Unlock()
		if value != nil {
			value.Dispose()
		}
		return
	}
	old := sd.current
	sd.current = value
	sd.mu.Unlock()

	if old != nil {
		old.Dispose()
	}
}

// Dispose 释放当前资源，之后设置的资源会被立即释放
func (sd *SerialDisposable) Dispose() {
	sd.mu.Lock()
	if sd.disposed {
		sd.mu.Unlock()
		return
	}
	sd.disposed = true
	old := sd.current
	sd.current = nil
	sd.mu.Unlock()

	if old != nil {
		old.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (sd *SerialDisposable) IsDisposed() bool {
	sd.mu.Lock()
	defer sd.mu.Unlock()
	return sd.disposed
}

// ============================================================================
// SingleAssignmentDisposable
// ============================================================================

// SingleAssignmentDisposable 只能赋值一次的资源
type SingleAssignmentDisposable struct {
	mu       sync.Mutex
	disposed bool
	assigned bool
	current  Disposable
}

// NewSingleAssignmentDisposable 创建单次赋值资源
func NewSingleAssignmentDisposable() *SingleAssignmentDisposable {
	return &SingleAssignmentDisposable{}
}

// Disposable 返回已赋值的资源
func (sad *SingleAssignmentDisposable) Disposable() Disposable {
	sad.mu.Lock()
	defer sad.mu.Unlock()
	return sad.current
}

// SetDisposable 赋值；重复赋值会 panic(ErrDisposableAlreadyAssigned)
func (sad *SingleAssignmentDisposable) SetDisposable(value Disposable) {
	sad.mu.Lock()
	if sad.assigned {
		sad.mu.Unlock()
		panic(ErrDisposableAlreadyAssigned)
	}
	sad.assigned = true
	if sad.disposed {
		sad.mu.Unlock()
		if value != nil {
			value.Dispose()
		}
		return
	}
	sad.current = value
	sad.mu.Unlock()
}

// Dispose 释放资源
func (sad *SingleAssignmentDisposable) Dispose() {
	sad.mu.Lock()
	if sad.disposed {
		sad.mu.Unlock()
		return
	}
	sad.disposed = true
	old := sad.current
	sad.current = nil
	sad.mu.Unlock()

	if old != nil {
		old.Dispose()
	}
}

// IsDisposed 检查是否已释放
func (sad *SingleAssignmentDisposable) IsDisposed() bool {
	sad.mu.Lock()
	defer sad.mu.Unlock()
	return sad.disposed
}

// ============================================================================
// RefCountDisposable
// ============================================================================

// RefCountDisposable 主句柄请求释放且所有依赖句柄都释放后，才释放底层资源
type RefCountDisposable struct {
	mu              sync.Mutex
	underlying      Disposable
	disposed        bool
	primaryDisposed bool
	count           int
}

// NewRefCountDisposable 创建引用计数资源
func NewRefCountDisposable(disposable Disposable) *RefCountDisposable {
	return &RefCountDisposable{underlying: disposable}
}

// Dispose 释放主句柄
func (r *RefCountDisposable) Dispose() {
	r.mu.Lock()
	if r.disposed || r.primaryDisposed {
		r.mu.Unlock()
		return
	}
	r.primaryDisposed = true
	if r.count > 0 {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	underlying := r.underlying
	r.mu.Unlock()

	underlying.Dispose()
}

// GetDisposable 获取一个依赖句柄；已释放时返回空资源
func (r *RefCountDisposable) GetDisposable() Disposable {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.disposed {
		return EmptyDisposable
	}
	r.count++
	return NewDisposable(r.release)
}

func (r *RefCountDisposable) release() {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	r.count--
	if r.count > 0 || !r.primaryDisposed {
		r.mu.Unlock()
		return
	}
	r.disposed = true
	underlying := r.underlying
	r.mu.Unlock()

	underlying.Dispose()
}

// IsDisposed 底层资源是否已释放
func (r *RefCountDisposable) IsDisposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}

// ============================================================================
// ScheduledDisposable
// ============================================================================

// ScheduledDisposable 在指定调度器上执行底层资源的释放
type ScheduledDisposable struct {
	scheduler  Scheduler
	disposable Disposable
	disposed   int32
}

// NewScheduledDisposable 创建调度释放资源
func NewScheduledDisposable(scheduler Scheduler, disposable Disposable) *ScheduledDisposable {
	return &ScheduledDisposable{scheduler: scheduler, disposable: disposable}
}

// Dispose 调度释放
func (sd *ScheduledDisposable) Dispose() {
	Schedule(sd.scheduler, func() {
		if atomic.CompareAndSwapInt32(&sd.disposed, 0, 1) {
			sd.disposable.Dispose()
		}
	})
}

// IsDisposed 底层资源是否已释放
func (sd *ScheduledDisposable) IsDisposed() bool {
	return atomic.LoadInt32(&sd.disposed) == 1
}
