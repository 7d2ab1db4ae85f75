// Package conversation 是意图处理的编排层：一条消息进来，经过分类、
// 校验、交互式补全与执行，最终以一条带类别标签的回复出去。
package conversation
