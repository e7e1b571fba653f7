package automod

import (
	"strings"
	"time"

	"github.com/Gopher0727/automod/internal/models"
)

const (
	DefaultSpamWindow    = 10 * time.Second
	DefaultSpamThreshold = 5
)

// Matcher decides whether a single trigger fires for a message. It holds no
// state besides its parameters and is safe for concurrent use.
type Matcher struct {
	SpamWindow    time.Duration
	SpamThreshold int
	Now           func() time.Time
}

// NewMatcher 非正数参数退回默认值
func NewMatcher(window time.Duration, threshold int) *Matcher {
	if window <= 0 {
		window = DefaultSpamWindow
	}
	if threshold <= 0 {
		threshold = DefaultSpamThreshold
	}
	return &Matcher{SpamWindow: window, SpamThreshold: threshold, Now: time.Now}
}

var defaultMatcher = NewMatcher(DefaultSpamWindow, DefaultSpamThreshold)

// Matches uses the default spam window and threshold.
func Matches(trigger *models.Trigger, msg *models.Message, recent []models.Message) bool {
	return defaultMatcher.Matches(trigger, msg, recent)
}

// Matches 判断触发器是否命中消息
// recent 为频道最近消息窗口，只有 Spam 类型会用到；nil 表示窗口不可用
func (m *Matcher) Matches(trigger *models.Trigger, msg *models.Message, recent []models.Message) bool {
	if trigger == nil || msg == nil {
		return false
	}
	switch trigger.Type {
	case models.TriggerBlacklist:
		return matchBlacklist(trigger.TriggerWords, msg.Content)
	case models.TriggerCommand:
		return matchCommand(trigger.TriggerWords, msg.Content)
	case models.TriggerSpam:
		return m.matchSpam(msg, recent)
	default:
		// Join 只在加入流程里评估
		return false
	}
}

func matchBlacklist(words, content string) bool {
	if strings.TrimSpace(words) == "" || content == "" {
		return false
	}
	lower := strings.ToLower(content)
	for _, word := range strings.Split(words, ",") {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(word)) {
			return true
		}
	}
	return false
}

func matchCommand(command, content string) bool {
	command = strings.TrimSpace(command)
	body := strings.TrimSpace(content)
	if command == "" || body == "" {
		return false
	}
	return strings.HasPrefix(strings.ToLower(body), "/"+strings.ToLower(command))
}

// matchSpam 统计同一作者在窗口内的消息数，当前消息若不在窗口里也算一条
func (m *Matcher) matchSpam(msg *models.Message, recent []models.Message) bool {
	if recent == nil {
		return false
	}
	now := m.now()
	count := 0
	seen := false
	for i := range recent {
		r := &recent[i]
		if r.SenderID != msg.SenderID {
			continue
		}
		if msg.ID != 0 && r.ID == msg.ID {
			seen = true
		}
		if now.Sub(r.CreatedAt) < m.SpamWindow {
			count++
		}
	}
	if !seen {
		count++
	}
	return count >= m.SpamThreshold
}

func (m *Matcher) now() time.Time {
	if m.Now == nil {
		return time.Now()
	}
	return m.Now()
}
