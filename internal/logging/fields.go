package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供仓库/源站/命中状态字段，供代理请求日志复用。
func RequestFields(repository, path, origin string, cacheHit, stale bool) logrus.Fields {
	return logrus.Fields{
		"repository": repository,
		"path":       path,
		"origin":     origin,
		"cache_hit":  cacheHit,
		"stale":      stale,
	}
}

// OriginFields 描述一次源站尝试，供级联日志复用。
func OriginFields(repository, origin, policy, authMode string) logrus.Fields {
	return logrus.Fields{
		"repository": repository,
		"origin":     origin,
		"policy":     policy,
		"auth_mode":  authMode,
	}
}
