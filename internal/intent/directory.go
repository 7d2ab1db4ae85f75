package intent

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DirectoryFile models the structure of configs/directory.yaml.
type DirectoryFile struct {
	Contacts map[string]ContactEntry `yaml:"contacts"`
	Tokens   map[string]TokenEntry   `yaml:"tokens"`
}

// ContactEntry describes a known counterparty account.
type ContactEntry struct {
	AccountID string `yaml:"account_id"`
	Note      string `yaml:"note"`
}

// TokenEntry describes a known token symbol.
type TokenEntry struct {
	TokenID  string `yaml:"token_id"`
	Decimals int    `yaml:"decimals"`
	Note     string `yaml:"note"`
}

// Directory 保存联系人与代币目录，用于把人类可读的名称解析成账户/代币 ID，
// 并为选择型字段生成分组候选列表。
type Directory struct {
	contacts map[string]ContactEntry
	tokens   map[string]TokenEntry
}

// LoadDirectory parses the YAML file containing contact and token metadata.
// An empty path yields an empty directory rather than an error.
func LoadDirectory(path string) (*Directory, error) {
	if strings.TrimSpace(path) == "" {
		return NewDirectory(nil, nil), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取目录文件失败: %w", err)
	}

	var file DirectoryFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("解析目录文件失败: %w", err)
	}
	return NewDirectory(file.Contacts, file.Tokens), nil
}

// NewDirectory 从内存数据构造目录，主要用于测试。
func NewDirectory(contacts map[string]ContactEntry, tokens map[string]TokenEntry) *Directory {
	dir := &Directory{
		contacts: make(map[string]ContactEntry, len(contacts)),
		tokens:   make(map[string]TokenEntry, len(tokens)),
	}
	for name, entry := range contacts {
		dir.contacts[strings.ToLower(strings.TrimSpace(name))] = entry
	}
	for symbol, entry := range tokens {
		dir.tokens[strings.ToUpper(strings.TrimSpace(symbol))] = entry
	}
	return dir
}

// ResolveAccount 把 "0.0.N" 或联系人名称解析为账户 ID。
func (d *Directory) ResolveAccount(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if entityIDPattern.MatchString(value) {
		return value, true
	}
	if d == nil {
		return "", false
	}
	entry, ok := d.contacts[strings.ToLower(value)]
	if !ok || strings.TrimSpace(entry.AccountID) == "" {
		return "", false
	}
	return entry.AccountID, true
}

// ResolveToken 把 "0.0.N" 或代币符号解析为代币 ID。
func (d *Directory) ResolveToken(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if entityIDPattern.MatchString(value) {
		return value, true
	}
	if d == nil {
		return "", false
	}
	entry, ok := d.tokens[strings.ToUpper(value)]
	if !ok || strings.TrimSpace(entry.TokenID) == "" {
		return "", false
	}
	return entry.TokenID, true
}

// TokenDecimals 返回代币的最小单位位数，未知代币返回 false。
// value 可以是代币符号，也可以是 "0.0.N" 形式的代币 ID。
func (d *Directory) TokenDecimals(value string) (int, bool) {
	if d == nil {
		return 0, false
	}
	value = strings.TrimSpace(value)
	if entry, ok := d.tokens[strings.ToUpper(value)]; ok {
		return entry.Decimals, true
	}
	for _, entry := range d.tokens {
		if entry.TokenID == value {
			return entry.Decimals, true
		}
	}
	return 0, false
}

// KnownTokens 返回符号到代币 ID 的映射，供余额查询列出代币持仓。
func (d *Directory) KnownTokens() map[string]string {
	if d == nil || len(d.tokens) == 0 {
		return nil
	}
	known := make(map[string]string, len(d.tokens))
	for symbol, entry := range d.tokens {
		if strings.TrimSpace(entry.TokenID) != "" {
			known[symbol] = entry.TokenID
		}
	}
	return known
}

// ContactChoices 按目录生成 "个人联系人" 分组的候选列表。
func (d *Directory) ContactChoices() []Choice {
	if d == nil || len(d.contacts) == 0 {
		return nil
	}
	choices := make([]Choice, 0, len(d.contacts))
	for name, entry := range d.contacts {
		choices = append(choices, Choice{
			Value:    entry.AccountID,
			Label:    fmt.Sprintf("%s (%s)", name, entry.AccountID),
			Category: "personal contacts",
		})
	}
	sort.Slice(choices, func(i, j int) bool { return choices[i].Label < choices[j].Label })
	return choices
}

// TokenChoices 按目录生成 "tokens" 分组的候选列表。
func (d *Directory) TokenChoices() []Choice {
	if d == nil || len(d.tokens) == 0 {
		return nil
	}
	choices := make([]Choice, 0, len(d.tokens))
	for symbol, entry := range d.tokens {
		choices = append(choices, Choice{
			Value:    entry.TokenID,
			Label:    fmt.Sprintf("%s (%s)", symbol, entry.TokenID),
			Category: "tokens",
		})
	}
	sort.Slice(choices, func(i, j int) bool { return choices[i].Label < choices[j].Label })
	return choices
}
