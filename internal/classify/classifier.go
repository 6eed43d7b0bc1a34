package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/pfrederiksen/weekly-events/internal/event"
	"github.com/pfrederiksen/weekly-events/internal/logger"
)

// Classification sources.
const (
	SourceRules     = "rules"
	SourceAssistant = "assistant"
)

const (
	matchConfidence = 0.6
	otherConfidence = 0.3
)

// Classification is the category and ranking metadata of an event.
type Classification struct {
	EventType       string  `json:"event_type"`
	Priority        int     `json:"priority"`
	Confidence      float64 `json:"confidence"`
	ChineseRelevant bool    `json:"chinese_relevant"`
	Source          string  `json:"source"`
}

// Assistant is an optional external classifier, typically AI-backed. Its
// answers override the keyword rules when valid.
type Assistant interface {
	Classify(ctx context.Context, evt *event.Event) (Classification, error)
}

// Classifier assigns event types and priorities.
type Classifier struct {
	rules      Rules
	categories []compiledCategory
	chinese    []string
	assistant  Assistant
	log        *logger.Logger
}

// New compiles rules into a Classifier. assistant may be nil.
func New(rules Rules, assistant Assistant, log *logger.Logger) (*Classifier, error) {
	categories, err := compileCategories(rules.Categories)
	if err != nil {
		return nil, fmt.Errorf("compiling classifier rules: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}

	chinese := make([]string, 0, len(rules.ChineseKeywords))
	for _, kw := range rules.ChineseKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			chinese = append(chinese, kw)
		}
	}

	return &Classifier{
		rules:      rules,
		categories: categories,
		chinese:    chinese,
		assistant:  assistant,
		log:        log,
	}, nil
}

// Classify asks the assistant first, when configured, and falls back to the
// keyword rules on error or an unusable answer. It never fails.
func (c *Classifier) Classify(ctx context.Context, evt *event.Event) Classification {
	if c.assistant != nil {
		cl, err := c.assistant.Classify(ctx, evt)
		if err == nil {
			err = c.validate(cl)
		}
		if err == nil {
			cl.Source = SourceAssistant
			return cl
		}
		c.log.Warn("Assistant classification failed, using rules", logger.Fields{
			"title": evt.Title,
			"error": err.Error(),
		})
	}
	return c.Rules(evt)
}

// Apply classifies evt and stores the result on it.
func (c *Classifier) Apply(ctx context.Context, evt *event.Event) Classification {
	cl := c.Classify(ctx, evt)
	evt.EventType = cl.EventType
	evt.Priority = cl.Priority
	evt.Confidence = cl.Confidence
	evt.ChineseRelevant = cl.ChineseRelevant
	return cl
}

// Rules classifies with the keyword table only.
func (c *Classifier) Rules(evt *event.Event) Classification {
	text := evt.Title + " " + evt.Description + " " + evt.DescriptionDetail

	cl := Classification{
		EventType:  TypeOther,
		Priority:   c.rules.OtherPriority,
		Confidence: otherConfidence,
		Source:     SourceRules,
	}
	for _, cat := range c.categories {
		if cat.pattern.MatchString(text) {
			cl.EventType = cat.Name
			cl.Priority = cat.Priority
			cl.Confidence = matchConfidence
			break
		}
	}

	if evt.Price == event.PriceFree {
		cl.Priority += c.rules.FreeBoost
	}
	cl.ChineseRelevant = c.chineseRelevant(text)
	return cl
}

func (c *Classifier) chineseRelevant(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range c.chinese {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return c.rules.DetectLanguage && isChinese(text)
}

func (c *Classifier) validate(cl Classification) error {
	if cl.EventType == "" {
		return fmt.Errorf("empty event type")
	}
	if !c.knownType(cl.EventType) {
		return fmt.Errorf("unknown event type %q", cl.EventType)
	}
	if cl.Priority < 0 {
		return fmt.Errorf("negative priority %d", cl.Priority)
	}
	if cl.Confidence < 0 || cl.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0, 1]", cl.Confidence)
	}
	return nil
}

func (c *Classifier) knownType(name string) bool {
	if name == TypeOther {
		return true
	}
	for _, cat := range c.categories {
		if cat.Name == name {
			return true
		}
	}
	return false
}
