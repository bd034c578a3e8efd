package config

// 布局在各自子包的 init() 中注册，配置校验前必须确保它们已加载。
import (
	_ "github.com/any-hub/artifact-hub/internal/layout/legacy"
	_ "github.com/any-hub/artifact-hub/internal/layout/maven2"
)
