// Package rxcore provides a push-based asynchronous sequence engine for Go
// 基于推送模型的异步序列引擎：可观察序列、观察者、可释放资源与调度器
package rxcore

import (
	"fmt"
	"log/slog"
	"time"
)

// ============================================================================
// 函数类型定义
// ============================================================================

// OnNext 处理下一个值的函数
type OnNext func(value interface{})

// OnError 处理错误的函数
type OnError func(err error)

// OnComplete 处理完成的函数
type OnComplete func()

// Predicate 谓词函数，返回的错误会成为序列错误
type Predicate func(value interface{}) (bool, error)

// Transformer 转换函数，用于映射
type Transformer func(value interface{}) (interface{}, error)

// Reducer 归约函数，用于聚合
type Reducer func(accumulator, current interface{}) (interface{}, error)

// KeySelector 键选择函数
type KeySelector func(value interface{}) (interface{}, error)

// Comparer 相等比较函数
type Comparer func(a, b interface{}) (bool, error)

// ============================================================================
// 通知
// ============================================================================

// NotificationKind 通知类型
type NotificationKind byte

const (
	// KindNext 值通知
	KindNext NotificationKind = 'N'
	// KindError 错误通知
	KindError NotificationKind = 'E'
	// KindComplete 完成通知
	KindComplete NotificationKind = 'C'
)

// Notification 观察者三种调用之一的具体化表示
type Notification struct {
	Kind  NotificationKind
	Value interface{}
	Err   error
}

// NewNextNotification 创建值通知
func NewNextNotification(value interface{}) Notification {
	return Notification{Kind: KindNext, Value: value}
}

// NewErrorNotification 创建错误通知
func NewErrorNotification(err error) Notification {
	return Notification{Kind: KindError, Err: err}
}

// NewCompleteNotification 创建完成通知
func NewCompleteNotification() Notification {
	return Notification{Kind: KindComplete}
}

// HasValue 是否携带值
func (n Notification) HasValue() bool {
	return n.Kind == KindNext
}

// Accept 将通知投递给观察者
func (n Notification) Accept(observer Observer) {
	switch n.Kind {
	case KindNext:
		observer.OnNext(n.Value)
	case KindError:
		observer.OnError(n.Err)
	case KindComplete:
		observer.OnComplete()
	}
}

func (n Notification) String() string {
	switch n.Kind {
	case KindNext:
		return fmt.Sprintf("OnNext(%v)", n.Value)
	case KindError:
		return fmt.Sprintf("OnError(%v)", n.Err)
	case KindComplete:
		return "OnCompleted()"
	}
	return fmt.Sprintf("Notification(%c)", n.Kind)
}

// ============================================================================
// 配置选项
// ============================================================================

// Option 配置选项接口
type Option interface {
	Apply(config *Config)
}

// Config 配置结构
type Config struct {
	Scheduler Scheduler
	Logger    *slog.Logger
	Timer     TimerFunc
	Clock     func() time.Time
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Logger: slog.Default(),
		Timer:  afterFunc,
		Clock:  time.Now,
	}
}

type optionFunc func(config *Config)

func (f optionFunc) Apply(config *Config) { f(config) }

// WithScheduler 指定调度器
func WithScheduler(scheduler Scheduler) Option {
	return optionFunc(func(config *Config) {
		config.Scheduler = scheduler
	})
}

// WithLogger 指定日志记录器
func WithLogger(logger *slog.Logger) Option {
	return optionFunc(func(config *Config) {
		if logger != nil {
			config.Logger = logger
		}
	})
}

// WithTimer 指定平台定时器，仅超时调度器使用
func WithTimer(timer TimerFunc) Option {
	return optionFunc(func(config *Config) {
		if timer != nil {
			config.Timer = timer
		}
	})
}

// WithClock 指定时钟
func WithClock(clock func() time.Time) Option {
	return optionFunc(func(config *Config) {
		if clock != nil {
			config.Clock = clock
		}
	})
}

func newConfig(options []Option) *Config {
	config := DefaultConfig()
	for _, option := range options {
		option.Apply(config)
	}
	return config
}

// schedulerOrDefault 取选项中的调度器，未指定时使用默认调度器
func schedulerOrDefault(options []Option, fallback Scheduler) Scheduler {
	config := newConfig(options)
	if config.Scheduler != nil {
		return config.Scheduler
	}
	return fallback
}
