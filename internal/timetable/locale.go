package timetable

import (
	"strings"
	"time"

	"golang.org/x/text/language"
)

// DefaultLocale 默认渲染语言
const DefaultLocale = "de_DE"

var weekdayAbbreviations = map[string][7]string{
	"de": {"So", "Mo", "Di", "Mi", "Do", "Fr", "Sa"},
	"en": {"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
	"fr": {"dim.", "lun.", "mar.", "mer.", "jeu.", "ven.", "sam."},
	"nl": {"zo", "ma", "di", "wo", "do", "vr", "za"},
}

// weekdayNames 根据 locale（如 de_DE、en-GB）选择星期缩写表
// 无法识别的语言回退到德语
func weekdayNames(locale string) [7]string {
	if locale == "" {
		locale = DefaultLocale
	}
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err == nil {
		base, _ := tag.Base()
		if names, ok := weekdayAbbreviations[base.String()]; ok {
			return names
		}
	}
	return weekdayAbbreviations["de"]
}

// WeekdayAbbrev 返回日期在指定 locale 下的星期缩写
func WeekdayAbbrev(t time.Time, locale string) string {
	return weekdayNames(locale)[t.Weekday()]
}
