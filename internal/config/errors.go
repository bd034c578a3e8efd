package config

import "fmt"

// FieldError 提供字段路径与错误原因，便于 CLI 向用户反馈。
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// newFieldError 创建包含字段路径与原因的 error，便于 CLI 定位。
func newFieldError(field, reason string) error {
	return FieldError{Field: field, Reason: reason}
}

// repositoryField 拼接仓库级字段路径，输出 Repository[xxx].Field 形式。
func repositoryField(id, field string) string {
	return indexedField("Repository", id, field)
}

// proxyField 拼接源站级字段路径，输出 ProxiedRepository[xxx].Field 形式。
func proxyField(id, field string) string {
	return indexedField("ProxiedRepository", id, field)
}

func indexedField(table, id, field string) string {
	if id == "" {
		return fmt.Sprintf("%s[].%s", table, field)
	}
	return fmt.Sprintf("%s[%s].%s", table, id, field)
}
