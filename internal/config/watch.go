package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Watch 监听配置文件变化：每次写入后重新解析并校验，成功时回调 onChange，
// 失败时回调 onError 且不影响调用方持有的旧配置。监听持续到进程退出。
func Watch(path string, onChange func(*Config), onError func(error)) error {
	if path == "" {
		path = DefaultPath
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("读取配置失败: %w", err)
	}

	v.OnConfigChange(func(event fsnotify.Event) {
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("重新加载 %s 失败: %w", event.Name, err))
			}
			return
		}
		if onChange != nil {
			onChange(cfg)
		}
	})
	v.WatchConfig()
	return nil
}
