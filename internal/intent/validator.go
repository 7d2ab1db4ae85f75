package intent

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ValidationRule 标识字段级校验规则。
type ValidationRule string

const (
	RuleRequired       ValidationRule = "required"
	RulePositiveNumber ValidationRule = "positive_number"
	RuleAddress        ValidationRule = "address"
	RuleTokenID        ValidationRule = "token_id"
	RuleTopicID        ValidationRule = "topic_id"
)

// UIHint 告诉展示层应当用哪种控件收集该字段。
type UIHint string

const (
	HintInput    UIHint = "input"
	HintTextarea UIHint = "textarea"
	HintChoice   UIHint = "choice"
)

// Choice 是选择型字段的一个候选项。
type Choice struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Category string `json:"category"`
}

// MissingArgumentSpec 描述一个缺失或非法的字段。每轮校验都会重新生成，
// 不做持久化。
type MissingArgumentSpec struct {
	Name        string         `json:"name"`
	Label       string         `json:"label"`
	Placeholder string         `json:"placeholder,omitempty"`
	Hint        UIHint         `json:"hint"`
	Rule        ValidationRule `json:"rule"`
	Choices     []Choice       `json:"choices,omitempty"`
}

// ValidationResult 是一次校验的输出。
type ValidationResult struct {
	Complete bool
	Missing  []MissingArgumentSpec
}

// fieldSpec 是静态字段表的一项。
type fieldSpec struct {
	name        string
	label       string
	placeholder string
	hint        UIHint
	rule        ValidationRule
}

// requiredFields 是每种动作的必填字段表。顺序即提示顺序。
var requiredFields = map[ActionType][]fieldSpec{
	ActionTransfer: {
		{name: "recipient", label: "收款账户", placeholder: "0.0.1234 或联系人名称", hint: HintChoice, rule: RuleAddress},
		{name: "amount", label: "转账金额 (HBAR)", placeholder: "50", hint: HintInput, rule: RulePositiveNumber},
	},
	ActionTokenTransfer: {
		{name: "recipient", label: "收款账户", placeholder: "0.0.1234 或联系人名称", hint: HintChoice, rule: RuleAddress},
		{name: "token_id", label: "代币", placeholder: "0.0.4567 或代币符号", hint: HintChoice, rule: RuleTokenID},
		{name: "amount", label: "转账数量", placeholder: "100", hint: HintInput, rule: RulePositiveNumber},
	},
	ActionSwap: {
		{name: "token_in", label: "卖出资产", placeholder: "0.0.4567 或代币符号", hint: HintChoice, rule: RuleTokenID},
		{name: "token_out", label: "买入资产", placeholder: "0.0.4567 或代币符号", hint: HintChoice, rule: RuleTokenID},
		{name: "amount", label: "卖出数量", placeholder: "100", hint: HintInput, rule: RulePositiveNumber},
	},
	ActionAssociate: {
		{name: "token_id", label: "代币", placeholder: "0.0.4567 或代币符号", hint: HintChoice, rule: RuleTokenID},
	},
	ActionStake: {
		{name: "target", label: "质押目标账户", placeholder: "0.0.1234 或联系人名称", hint: HintChoice, rule: RuleAddress},
	},
	ActionTopicSubmit: {
		{name: "topic_id", label: "主题 ID", placeholder: "0.0.7890", hint: HintInput, rule: RuleTopicID},
		{name: "message", label: "消息内容", hint: HintTextarea, rule: RuleRequired},
	},
}

var (
	entityIDPattern    = regexp.MustCompile(`^0\.0\.\d+$`)
	contactNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z ]*$`)
	tokenSymbolPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*$`)
)

// Validator 基于静态字段表对参数集做纯函数式校验。目录仅用于生成
// 选择型字段的候选列表，不参与规则判定。
type Validator struct {
	directory *Directory
}

// NewValidator 构造校验器。directory 允许为 nil。
func NewValidator(directory *Directory) *Validator {
	return &Validator{directory: directory}
}

// Validate 检查指定动作的参数集，返回缺失或非法字段的描述。
// "存在但非法" 与 "缺失" 的处理完全一致，交互回路只需要一条重入路径。
func (v *Validator) Validate(action ActionType, args map[string]string) ValidationResult {
	specs, ok := requiredFields[action]
	if !ok {
		return ValidationResult{Complete: false}
	}

	missing := make([]MissingArgumentSpec, 0, len(specs))
	for _, spec := range specs {
		value := strings.TrimSpace(args[spec.name])
		if CheckRule(spec.rule, value) {
			continue
		}
		missing = append(missing, MissingArgumentSpec{
			Name:        spec.name,
			Label:       spec.label,
			Placeholder: spec.placeholder,
			Hint:        spec.hint,
			Rule:        spec.rule,
			Choices:     v.choicesFor(spec.rule),
		})
	}
	return ValidationResult{Complete: len(missing) == 0, Missing: missing}
}

// CheckRule 判断单个值是否满足规则。
func CheckRule(rule ValidationRule, value string) bool {
	value = strings.TrimSpace(value)
	switch rule {
	case RuleRequired:
		return value != ""
	case RulePositiveNumber:
		parsed, err := strconv.ParseFloat(value, 64)
		return err == nil && !math.IsInf(parsed, 0) && !math.IsNaN(parsed) && parsed > 0
	case RuleAddress:
		return entityIDPattern.MatchString(value) || contactNamePattern.MatchString(value)
	case RuleTokenID:
		return entityIDPattern.MatchString(value) || tokenSymbolPattern.MatchString(value)
	case RuleTopicID:
		return entityIDPattern.MatchString(value)
	default:
		return false
	}
}

// RequiredFieldNames 返回动作的必填字段名，主要用于测试与文档。
func RequiredFieldNames(action ActionType) []string {
	specs := requiredFields[action]
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, spec.name)
	}
	return names
}

func (v *Validator) choicesFor(rule ValidationRule) []Choice {
	if v == nil || v.directory == nil {
		return nil
	}
	switch rule {
	case RuleAddress:
		return v.directory.ContactChoices()
	case RuleTokenID:
		return v.directory.TokenChoices()
	default:
		return nil
	}
}
