package main

// CLI 退出码，脚本依赖这些值区分未命中与故障。
const (
	exitSuccess     = 0
	exitNotFound    = 1
	exitCacheError  = 2
	exitInvalidKey  = 3
	exitConfigError = 4
)

// exitPutFailed 与 exitNotFound 同值：PUT 未写入任何后端时返回 1。
const exitPutFailed = exitNotFound
