package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// CommandFields 提供 CLI 命令与 key 字段，供 get/put 日志复用。
func CommandFields(command, hash string) logrus.Fields {
	return logrus.Fields{
		"action": command,
		"hash":   hash,
	}
}

// BackendFields 描述单个缓存后端，供注册表与诊断日志复用。
func BackendFields(name, kind string) logrus.Fields {
	return logrus.Fields{
		"backend": name,
		"kind":    kind,
	}
}
