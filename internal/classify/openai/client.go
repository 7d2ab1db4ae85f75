package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"IntentChain/internal/classify"
)

// Config 描述了调用 OpenAI 兼容 Chat Completions API 所需的信息。
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func (cfg Config) normalized() (Config, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return cfg, errors.New("未提供 API Key")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return cfg, nil
}

// Client 通过 HTTP 调用 OpenAI 兼容接口完成意图分类与参数抽取。
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient 根据配置创建分类客户端。
func NewClient(cfg Config) (*Client, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Classify 调用分类服务并解析结构化结果。
func (c *Client) Classify(ctx context.Context, req classify.Request) (*classify.Result, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.New("待分类的消息不能为空")
	}

	content, err := c.complete(ctx, buildUserPrompt(req))
	if err != nil {
		return nil, err
	}

	var structured struct {
		ClassificationType string            `json:"classification_type"`
		Confidence         float64           `json:"confidence"`
		Reasoning          string            `json:"reasoning"`
		ExtractedArgs      map[string]string `json:"extracted_args"`
	}
	if err := json.Unmarshal([]byte(content), &structured); err != nil {
		return nil, fmt.Errorf("分类结果不是合法的 JSON: %w", err)
	}
	if strings.TrimSpace(structured.ClassificationType) == "" {
		return nil, errors.New("分类结果缺少 classification_type")
	}
	if structured.ExtractedArgs == nil {
		structured.ExtractedArgs = map[string]string{}
	}
	return &classify.Result{
		ClassificationType: structured.ClassificationType,
		Confidence:         structured.Confidence,
		Reasoning:          structured.Reasoning,
		ExtractedArgs:      structured.ExtractedArgs,
	}, nil
}

// complete 发送一次对话补全请求并返回首个 choice 的文本内容。
func (c *Client) complete(ctx context.Context, userPrompt string) (string, error) {
	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	body.ResponseFormat.Type = "json_object"

	encoded, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("序列化分类请求失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("构建分类请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("请求分类服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("分类服务返回错误状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("解析分类响应失败: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("分类响应中没有有效的 choices")
	}
	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("分类响应内容为空")
	}
	return content, nil
}

const systemPrompt = "" +
	"You are the intent classifier for a Hedera wallet assistant. " +
	"Classify the user message into one of: transfer, token_transfer, swap, associate, stake, topic_submit. " +
	"Extract any arguments you can find (recipient, amount, token_id, token_in, token_out, target, topic_id, message). " +
	"Always respond with a compact JSON object: " +
	`{"classification_type": string, "confidence": number, "reasoning": string, "extracted_args": object}. ` +
	"Leave out arguments you are not sure about instead of guessing."

func buildUserPrompt(req classify.Request) string {
	var builder strings.Builder
	builder.WriteString("## 用户消息\n")
	builder.WriteString(strings.TrimSpace(req.Message))
	builder.WriteString("\n")
	if user := strings.TrimSpace(req.UserID); user != "" {
		builder.WriteString(fmt.Sprintf("\n(user: %s)\n", user))
	}
	builder.WriteString("\n请给出分类结果 JSON。")
	return builder.String()
}
