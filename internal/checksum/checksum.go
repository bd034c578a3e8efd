// Package checksum 提供 MD5/SHA1 摘要计算以及校验文件（side file）的读写格式。
//
// 校验文件写出格式固定为 "<小写十六进制>  <文件名>\n"；解析时兼容裸摘要、
// "hex *name" 二进制标记以及 BSD 风格 "SHA1 (name) = hex"。
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"regexp"
	"strings"
)

// Algorithm 表示受支持的摘要算法。
type Algorithm string

const (
	MD5  Algorithm = "MD5"
	SHA1 Algorithm = "SHA1"
)

// ErrMalformed 表示校验文件内容无法解析出摘要。
var ErrMalformed = errors.New("malformed checksum file")

// Algorithms 返回所有受支持算法，顺序固定（SHA1 优先）。
func Algorithms() []Algorithm {
	return []Algorithm{SHA1, MD5}
}

// Extension 返回算法对应的校验文件扩展名（含点）。
func (a Algorithm) Extension() string {
	switch a {
	case MD5:
		return ".md5"
	case SHA1:
		return ".sha1"
	}
	return ""
}

func (a Algorithm) hexLen() int {
	switch a {
	case MD5:
		return md5.Size * 2
	case SHA1:
		return sha1.Size * 2
	}
	return 0
}

func (a Algorithm) newHash() (hash.Hash, error) {
	switch a {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	}
	return nil, fmt.Errorf("unsupported checksum algorithm %q", string(a))
}

// SideFile 返回 name 对应算法的校验文件名。
func SideFile(name string, a Algorithm) string {
	return name + a.Extension()
}

// IsChecksumFile 判断路径是否本身就是校验文件。
func IsChecksumFile(name string) bool {
	lower := strings.ToLower(name)
	for _, a := range Algorithms() {
		if strings.HasSuffix(lower, a.Extension()) {
			return true
		}
	}
	return strings.HasSuffix(lower, ".asc")
}

// Compute 单次读取 r，同时计算多个算法的小写十六进制摘要。
func Compute(r io.Reader, algorithms ...Algorithm) (map[Algorithm]string, error) {
	if len(algorithms) == 0 {
		algorithms = Algorithms()
	}
	hashes := make(map[Algorithm]hash.Hash, len(algorithms))
	writers := make([]io.Writer, 0, len(algorithms))
	for _, a := range algorithms {
		h, err := a.newHash()
		if err != nil {
			return nil, err
		}
		hashes[a] = h
		writers = append(writers, h)
	}
	if _, err := io.Copy(io.MultiWriter(writers...), r); err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}

	out := make(map[Algorithm]string, len(hashes))
	for a, h := range hashes {
		out[a] = hex.EncodeToString(h.Sum(nil))
	}
	return out, nil
}

// Format 生成校验文件正文。
func Format(digest, filename string) string {
	return strings.ToLower(digest) + "  " + filename + "\n"
}

var bsdPattern = regexp.MustCompile(`^([A-Za-z0-9-]+)\s*\((.*)\)\s*=\s*([0-9A-Fa-f]+)$`)

// Parse 从校验文件正文中取出摘要（小写），并检查长度与算法一致。
func Parse(a Algorithm, content string) (string, error) {
	line := strings.TrimSpace(content)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	if line == "" {
		return "", ErrMalformed
	}

	var digest string
	if m := bsdPattern.FindStringSubmatch(line); m != nil {
		digest = m[3]
	} else {
		digest = strings.Fields(line)[0]
	}

	digest = strings.ToLower(digest)
	if want := a.hexLen(); want > 0 && len(digest) != want {
		return "", fmt.Errorf("%w: expected %d hex characters for %s, got %d", ErrMalformed, want, a, len(digest))
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return digest, nil
}
