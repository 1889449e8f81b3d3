package marble

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/xinjiayu/rxcore"
	"github.com/xinjiayu/rxcore/rxtest"
)

// Result 一个场景的运行结果
type Result struct {
	Name   string    `yaml:"name"`
	Passed bool      `yaml:"passed"`
	Diff   string    `yaml:"diff,omitempty"`
	Actual []Message `yaml:"actual"`
}

// Runner 在虚拟时间上运行场景
type Runner struct {
	log *slog.Logger
}

// NewRunner 创建运行器，log 为空时使用 slog.Default()
func NewRunner(log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{log: log}
}

// Run 运行一个场景。场景本身无法运行时返回错误，结果不符只体现在 Result 中
func (r *Runner) Run(s Scenario) (result Result, err error) {
	op, ok := operators[s.Operator]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s: unknown operator %q", errInvalidScenario, s.Name, s.Operator)
	}

	scheduler := rxtest.NewTestScheduler()
	inputs := make([]rxcore.Observable, len(s.Sources))
	logs := make([]func() []rxtest.Subscription, len(s.Sources))
	for i, source := range s.Sources {
		recorded := toRecorded(source.Messages)
		if source.Kind == "hot" {
			h := scheduler.CreateHotObservable(recorded...)
			inputs[i], logs[i] = h, h.Subscriptions
		} else {
			c := scheduler.CreateColdObservable(recorded...)
			inputs[i], logs[i] = c, c.Subscriptions
		}
	}
	if err := op.check(inputs, s.Args); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %s: %v", errInvalidScenario, s.Name, s.Operator, err)
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("marble: %s: operator panicked: %v", s.Name, p)
		}
	}()

	created, subscribed, disposed := timing(s)
	observer := scheduler.StartWithTiming(func() rxcore.Observable {
		return op.build(scheduler, inputs, s.Args)
	}, created, subscribed, disposed)

	result = Result{Name: s.Name, Actual: fromRecorded(observer.Messages())}
	var diffs []string
	if d := cmp.Diff(normalize(s.Expected), result.Actual, cmpopts.EquateEmpty()); d != "" {
		diffs = append(diffs, fmt.Sprintf("messages (-want +got):\n%s", d))
	}
	for i, source := range s.Sources {
		if source.Subscriptions == nil {
			continue
		}
		actual := fromSubscriptions(logs[i]())
		if d := cmp.Diff(source.Subscriptions, actual, cmpopts.EquateEmpty()); d != "" {
			diffs = append(diffs, fmt.Sprintf("source %q subscriptions (-want +got):\n%s", source.Name, d))
		}
	}
	result.Passed = len(diffs) == 0
	result.Diff = strings.Join(diffs, "\n")

	r.log.Debug("scenario finished", "name", s.Name, "operator", s.Operator, "passed", result.Passed, "messages", len(result.Actual))
	return result, nil
}

// RunAll 依次运行场景，遇到无法运行的场景时停止
func (r *Runner) RunAll(scenarios []Scenario) ([]Result, error) {
	results := make([]Result, 0, len(scenarios))
	for _, s := range scenarios {
		result, err := r.Run(s)
		if err != nil {
			return results, err
		}
		if !result.Passed {
			r.log.Info("scenario failed", "name", s.Name, "operator", s.Operator)
		}
		results = append(results, result)
	}
	return results, nil
}

func timing(s Scenario) (created, subscribed, disposed int64) {
	created, subscribed, disposed = rxtest.Created, rxtest.Subscribed, rxtest.Disposed
	if s.Created != 0 {
		created = s.Created
	}
	if s.Subscribed != 0 {
		subscribed = s.Subscribed
	}
	if s.Disposed != 0 {
		disposed = s.Disposed
	}
	return created, subscribed, disposed
}

func toRecorded(messages []Message) []rxtest.Recorded {
	recorded := make([]rxtest.Recorded, len(messages))
	for i, m := range messages {
		switch m.On {
		case onNext:
			recorded[i] = rxtest.OnNext(m.Time, m.Value)
		case onError:
			recorded[i] = rxtest.OnError(m.Time, errors.New(m.Error))
		default:
			recorded[i] = rxtest.OnCompleted(m.Time)
		}
	}
	return recorded
}

// fromRecorded 错误按文本比较
func fromRecorded(recorded []rxtest.Recorded) []Message {
	messages := make([]Message, len(recorded))
	for i, r := range recorded {
		m := Message{Time: r.Time}
		switch r.Value.Kind {
		case rxcore.KindNext:
			m.On, m.Value = onNext, r.Value.Value
		case rxcore.KindError:
			m.On, m.Error = onError, r.Value.Err.Error()
		default:
			m.On = onCompleted
		}
		messages[i] = m
	}
	return messages
}

// normalize 去掉非 next 通知上多余的 value
func normalize(messages []Message) []Message {
	out := make([]Message, len(messages))
	for i, m := range messages {
		if m.On != onNext {
			m.Value = nil
		}
		if m.On != onError {
			m.Error = ""
		}
		out[i] = m
	}
	return out
}

func fromSubscriptions(subscriptions []rxtest.Subscription) []Subscription {
	out := make([]Subscription, len(subscriptions))
	for i, s := range subscriptions {
		out[i] = Subscription{Subscribe: s.Subscribe}
		if s.Unsubscribe != rxtest.Infinite {
			unsubscribe := s.Unsubscribe
			out[i].Unsubscribe = &unsubscribe
		}
	}
	return out
}
