// Package layout 负责制品坐标与仓库相对路径之间的双向转换。
//
// 具体布局位于子包（maven2、legacy），在 init() 中通过 Register 注册；
// 配置层按 Repository.Layout 字段选择布局，代理与诊断接口只依赖本包的 Layout 接口。
package layout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/any-hub/artifact-hub/internal/artifact"
)

// MetadataFilename 是项目级与版本级 metadata 共用的固定文件名。
const MetadataFilename = "maven-metadata.xml"

// Layout 描述一种坐标 ↔ 路径语法。实现必须是无状态、并发安全的。
type Layout interface {
	// ID 返回布局键，例如 "default"。
	ID() string
	// ToPath 将坐标转换为仓库相对路径；BaseVersion 为空时仅输出 group/artifact 目录前缀。
	ToPath(c artifact.Coordinate) string
	// ProjectReferenceToPath 返回项目级 metadata 路径。
	ProjectReferenceToPath(ref artifact.ProjectReference) string
	// VersionedReferenceToPath 返回版本级 metadata 路径，Version 为空时退化为项目级。
	VersionedReferenceToPath(ref artifact.VersionedReference) string
	// ToCoordinate 解析路径；strict=false 时文件名无法拆分会返回仅含 group/artifact/baseVersion 的部分结果。
	ToCoordinate(path string, strict bool) (artifact.Coordinate, error)
	// ToProjectReference 解析以 metadata 文件名结尾的路径。
	ToProjectReference(path string) (artifact.ProjectReference, error)
	// ToVersionedReference 解析 metadata 路径，允许缺少版本目录。
	ToVersionedReference(path string) (artifact.VersionedReference, error)
	// IsValidPath 等价于非严格解析是否成功。
	IsValidPath(path string) bool
}

// Error 表示路径不符合布局语法。
type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.Path, e.Reason)
}

// Errorf 构造带路径的布局错误。
func Errorf(path, format string, args ...interface{}) error {
	return &Error{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// IsLayoutError 判断 err 链中是否包含 *Error。
func IsLayoutError(err error) bool {
	var target *Error
	return errors.As(err, &target)
}

// NormalizePath 统一分隔符并去掉首尾的 '/'。
func NormalizePath(raw string) string {
	p := strings.ReplaceAll(raw, "\\", "/")
	return strings.Trim(p, "/")
}

// SplitPath 返回规范化后的非空路径片段。
func SplitPath(raw string) []string {
	normalized := NormalizePath(raw)
	if normalized == "" {
		return nil
	}
	parts := strings.Split(normalized, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsMetadataFilename 判断文件名是否为 metadata 本体。
func IsMetadataFilename(name string) bool {
	return name == MetadataFilename
}
