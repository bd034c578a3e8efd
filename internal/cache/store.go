package cache

import (
	"errors"
	"io"
	"time"
)

// Entry 描述仓库中的一个文件。Path 为仓库相对路径（URL 风格），
// FilePath 为底层文件系统中的绝对路径，便于 HTTP 层直接发送文件。
type Entry struct {
	Path      string    `json:"path"`
	FilePath  string    `json:"file_path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

// ReadResult 组合 Entry 与正文 Reader，便于上层直接流式返回。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

// StagingDir 是暂存目录相对仓库根的名称，不会作为制品对外暴露。
const StagingDir = ".staging"

var (
	// ErrNotFound 表示条目不存在。
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalidPath 表示相对路径越界或指向保留目录。
	ErrInvalidPath = errors.New("invalid repository path")
)
