// Package executor 把完全解析的意图转换为账本交易并归一化执行结果。
// 前置检查失败时不会产生任何账本写入，已提交的交易失败后绝不自动重试。
package executor
