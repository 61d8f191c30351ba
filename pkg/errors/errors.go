package errors

import "errors"

var (
	// ErrNoResultData WebUntis 响应中缺少课表数据，本课表跳过
	ErrNoResultData = errors.New("响应中没有课表数据")
	// ErrPersonNotFound pageconfig 中找不到配置的姓名
	ErrPersonNotFound = errors.New("未找到配置的人员")
)
