package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun_MissingMode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run(nil, &stdout, &stderr); code != exitError {
		t.Errorf("期望退出码 %d，实际 %d", exitError, code)
	}
	if !strings.Contains(stderr.String(), "timetable | messages | serve") {
		t.Errorf("应输出用法说明，实际 %q", stderr.String())
	}
}

func TestRun_UnknownMode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"calendar"}, &stdout, &stderr); code != exitError {
		t.Errorf("期望退出码 %d，实际 %d", exitError, code)
	}
	if stdout.Len() != 0 {
		t.Error("stdout 不应有输出")
	}
}

func TestRun_MissingConfigFile(t *testing.T) {
	var stdout, stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "missing.yaml")
	if code := run([]string{"timetable", path}, &stdout, &stderr); code != exitError {
		t.Errorf("期望退出码 %d，实际 %d", exitError, code)
	}
	if !strings.Contains(stderr.String(), path) {
		t.Errorf("错误信息应包含路径，实际 %q", stderr.String())
	}
}

func TestValidMode(t *testing.T) {
	for _, m := range []string{"timetable", "messages", "serve"} {
		if !validMode(m) {
			t.Errorf("%s 应为有效模式", m)
		}
	}
	if validMode("Timetable") {
		t.Error("模式区分大小写")
	}
}
