// Package marble runs virtual-time scenarios described in YAML against rxcore operators
// 以 YAML 描述的虚拟时间场景：输入序列、操作符与期望的通知
package marble

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Message 场景中的一个通知；On 为 next、error 或 completed
type Message struct {
	Time  int64       `yaml:"t"`
	On    string      `yaml:"on"`
	Value interface{} `yaml:"value,omitempty"`
	Error string      `yaml:"error,omitempty"`
}

// Subscription 期望的订阅区间，Unsubscribe 为空表示从未退订
type Subscription struct {
	Subscribe   int64  `yaml:"subscribe"`
	Unsubscribe *int64 `yaml:"unsubscribe,omitempty"`
}

// Source 场景的输入序列；Kind 为 hot 或 cold
type Source struct {
	Name          string         `yaml:"name"`
	Kind          string         `yaml:"kind"`
	Messages      []Message      `yaml:"messages"`
	Subscriptions []Subscription `yaml:"subscriptions,omitempty"`
}

// Scenario 一个完整的测试场景
type Scenario struct {
	Name       string    `yaml:"name"`
	Operator   string    `yaml:"operator"`
	Args       []int     `yaml:"args,omitempty"`
	Sources    []Source  `yaml:"sources"`
	Created    int64     `yaml:"created,omitempty"`
	Subscribed int64     `yaml:"subscribed,omitempty"`
	Disposed   int64     `yaml:"disposed,omitempty"`
	Expected   []Message `yaml:"expected"`
}

const (
	onNext      = "next"
	onError     = "error"
	onCompleted = "completed"
)

var errInvalidScenario = errors.New("marble: invalid scenario")

// Validate 检查场景的结构
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: missing name", errInvalidScenario)
	}
	if _, ok := operators[s.Operator]; !ok {
		return fmt.Errorf("%w: %s: unknown operator %q", errInvalidScenario, s.Name, s.Operator)
	}
	for _, source := range s.Sources {
		if source.Kind != "hot" && source.Kind != "cold" {
			return fmt.Errorf("%w: %s: source %q has kind %q, want hot or cold", errInvalidScenario, s.Name, source.Name, source.Kind)
		}
		if err := validateMessages(source.Messages); err != nil {
			return fmt.Errorf("%w: %s: source %q: %v", errInvalidScenario, s.Name, source.Name, err)
		}
	}
	if err := validateMessages(s.Expected); err != nil {
		return fmt.Errorf("%w: %s: expected: %v", errInvalidScenario, s.Name, err)
	}
	return nil
}

func validateMessages(messages []Message) error {
	for i, m := range messages {
		switch m.On {
		case onNext, onCompleted:
		case onError:
			if m.Error == "" {
				return fmt.Errorf("message %d: error without text", i)
			}
		default:
			return fmt.Errorf("message %d: unknown kind %q", i, m.On)
		}
	}
	return nil
}

// Load 读取一个或多个以 --- 分隔的场景
func Load(r io.Reader) ([]Scenario, error) {
	var scenarios []Scenario
	dec := yaml.NewDecoder(r)
	for {
		var s Scenario
		err := dec.Decode(&s)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("marble: decoding scenario %d: %w", len(scenarios), err)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// LoadFile 从文件读取场景
func LoadFile(path string) ([]Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}
