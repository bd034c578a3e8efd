// Package artifact 定义制品坐标及其版本规则，被 layout、proxy 与诊断接口共享。
package artifact

import (
	"fmt"
	"strings"
)

// Coordinate 是制品的逻辑身份。值类型，构造后不再修改。
type Coordinate struct {
	GroupID     string `json:"group_id"`
	ArtifactID  string `json:"artifact_id"`
	BaseVersion string `json:"base_version"`
	Version     string `json:"version"`
	Classifier  string `json:"classifier"`
	Type        string `json:"type"`
}

// NewCoordinate 根据完整版本推导 BaseVersion，classifier 统一去除首尾空白。
func NewCoordinate(groupID, artifactID, version, classifier, typ string) Coordinate {
	return Coordinate{
		GroupID:     groupID,
		ArtifactID:  artifactID,
		BaseVersion: BaseVersion(version),
		Version:     version,
		Classifier:  strings.TrimSpace(classifier),
		Type:        typ,
	}
}

// HasClassifier 判断 classifier 是否非空白。
func (c Coordinate) HasClassifier() bool {
	return strings.TrimSpace(c.Classifier) != ""
}

// IsSnapshot 以 BaseVersion 或完整版本判断快照。
func (c Coordinate) IsSnapshot() bool {
	return IsSnapshot(c.Version) || IsSnapshot(c.BaseVersion)
}

// VersionedReference 返回去掉文件维度后的版本引用。
func (c Coordinate) VersionedReference() VersionedReference {
	return VersionedReference{GroupID: c.GroupID, ArtifactID: c.ArtifactID, Version: c.BaseVersion}
}

// ProjectReference 返回项目级引用。
func (c Coordinate) ProjectReference() ProjectReference {
	return ProjectReference{GroupID: c.GroupID, ArtifactID: c.ArtifactID}
}

func (c Coordinate) String() string {
	var b strings.Builder
	b.WriteString(c.GroupID)
	b.WriteByte(':')
	b.WriteString(c.ArtifactID)
	b.WriteByte(':')
	if c.Version != "" {
		b.WriteString(c.Version)
	} else {
		b.WriteString(c.BaseVersion)
	}
	if c.HasClassifier() {
		b.WriteByte(':')
		b.WriteString(c.Classifier)
	}
	if c.Type != "" {
		b.WriteByte(':')
		b.WriteString(c.Type)
	}
	return b.String()
}

// ProjectReference 指向 group + artifact 级别的 metadata。
type ProjectReference struct {
	GroupID    string `json:"group_id"`
	ArtifactID string `json:"artifact_id"`
}

func (r ProjectReference) String() string {
	return fmt.Sprintf("%s:%s", r.GroupID, r.ArtifactID)
}

// VersionedReference 指向某个版本目录；Version 为空表示项目级 metadata。
type VersionedReference struct {
	GroupID    string `json:"group_id"`
	ArtifactID string `json:"artifact_id"`
	Version    string `json:"version,omitempty"`
}

func (r VersionedReference) String() string {
	if r.Version == "" {
		return fmt.Sprintf("%s:%s", r.GroupID, r.ArtifactID)
	}
	return fmt.Sprintf("%s:%s:%s", r.GroupID, r.ArtifactID, r.Version)
}
