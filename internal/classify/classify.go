package classify

import "context"

// Request 描述送往分类服务的一条用户消息。
type Request struct {
	Message string
	UserID  string
}

// Result 是分类服务的结构化输出。Confidence 与 Reasoning 是透传的
// 元数据，不参与任何控制流。
type Result struct {
	ClassificationType string
	Confidence         float64
	Reasoning          string
	ExtractedArgs      map[string]string
}

// Classifier 定义了调用意图分类/参数抽取服务的统一接口。
type Classifier interface {
	Classify(ctx context.Context, req Request) (*Result, error)
}
