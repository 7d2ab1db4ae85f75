// Package api 暴露 IntentChain 的 REST 接口。
package api
