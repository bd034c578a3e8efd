package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testConfigPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join("testdata", name)
}

// writeTempConfig 写入临时配置；未声明 StoragePath 时指向同一临时目录，避免落到包目录下。
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if !strings.Contains(content, "StoragePath") {
		content = fmt.Sprintf("StoragePath = %q\n", filepath.Join(dir, "storage")) + content
	}
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("写入临时配置失败: %v", err)
	}
	return path
}

func findRepository(cfg *Config, id string) (RepositoryConfig, bool) {
	for _, repo := range cfg.Repositories {
		if repo.ID == id {
			return repo, true
		}
	}
	return RepositoryConfig{}, false
}
