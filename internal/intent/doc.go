// Package intent 定义意图的结构化表示与字段级校验。校验是一次纯函数：
// 给定动作类型与当前参数集，输出缺失或非法字段的描述，供交互式补全
// 回路渲染提示。
package intent
