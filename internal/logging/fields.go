package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// RequestFields 提供 operation/request_id/path/命中状态字段，供文档打开流程日志复用。
func RequestFields(operation, requestID, path string, cacheHit bool) logrus.Fields {
	fields := logrus.Fields{
		"action":    "open_document",
		"operation": operation,
		"path":      path,
		"cache_hit": cacheHit,
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}
